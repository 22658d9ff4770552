package refit

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// StateKind labels output states by origin.
type StateKind string

const (
	StateExtracted    StateKind = "extracted"
	StateInterpolated StateKind = "interpolated"
)

// Recorder receives refit observations.
type Recorder interface {
	IncOutcome(outcome Outcome)
	ObserveFitDuration(d time.Duration)
	AddStates(kind StateKind, n int)
	IncInterpolationFailures(n int)
	IncRotationFailure()
}

// NoopRecorder discards observations.
type NoopRecorder struct{}

func (NoopRecorder) IncOutcome(Outcome)               {}
func (NoopRecorder) ObserveFitDuration(time.Duration) {}
func (NoopRecorder) AddStates(StateKind, int)         {}
func (NoopRecorder) IncInterpolationFailures(int)     {}
func (NoopRecorder) IncRotationFailure()              {}

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	outcomes              *prom.CounterVec
	fitDuration           prom.Histogram
	states                *prom.CounterVec
	interpolationFailures prom.Counter
	rotationFailures      prom.Counter
}

// NewPrometheusRecorder creates the refit collectors and registers them
// with reg, or with a private registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		outcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "refit",
			Name:      "candidates_total",
			Help:      "Track candidates by refit outcome",
		}, []string{"outcome"}),
		fitDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "refit",
			Name:      "fit_duration_seconds",
			Help:      "Duration of single engine fits",
			Buckets:   prom.ExponentialBuckets(1e-5, 4, 10),
		}),
		states: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "refit",
			Name:      "states_total",
			Help:      "Output track states by origin",
		}, []string{"kind"}),
		interpolationFailures: prom.NewCounter(prom.CounterOpts{
			Namespace: "refit",
			Name:      "interpolation_failures_total",
			Help:      "Disabled-layer clusters that could not be interpolated",
		}),
		rotationFailures: prom.NewCounter(prom.CounterOpts{
			Namespace: "refit",
			Name:      "dca_rotation_failures_total",
			Help:      "Tracks whose 3D DCA could not be split into xy and z",
		}),
	}
	reg.MustRegister(pr.outcomes, pr.fitDuration, pr.states, pr.interpolationFailures, pr.rotationFailures)
	return pr
}

func (p *PrometheusRecorder) IncOutcome(outcome Outcome) {
	p.outcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveFitDuration(d time.Duration) {
	p.fitDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddStates(kind StateKind, n int) {
	p.states.WithLabelValues(string(kind)).Add(float64(n))
}

func (p *PrometheusRecorder) IncInterpolationFailures(n int) {
	p.interpolationFailures.Add(float64(n))
}

func (p *PrometheusRecorder) IncRotationFailure() {
	p.rotationFailures.Inc()
}
