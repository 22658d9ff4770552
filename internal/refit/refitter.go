package refit

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/config"
	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/measure"
	"github.com/banshee-data/trackrefit/internal/monitoring"
	"github.com/banshee-data/trackrefit/internal/timeutil"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

// Options holds the refit parameters.
type Options struct {
	DisabledLayers  []int   // excluded from the fit, interpolated afterwards
	FitSiliconMMs   bool    // silicon + micromegas only fit
	UseMicromegas   bool    // require micromegas clusters in silicon + MM mode
	MinPT           float64 // candidates must have pt above this (GeV)
	CandidateFilter string  // optional boolean expression
	VertexMinNDF    float64 // tracks with more ndf are vertexing candidates
	PrimaryPID      int     // particle hypothesis (PDG code)
	SeedMomentum    float64 // GeV
	SeedCovariance  float64

	Corrections   trkr.CorrectionSet
	DriftVelocity float64 // cm/ns

	// Clock times the fits. Nil means timeutil.RealClock.
	Clock timeutil.Clock
}

// OptionsFromConfig builds Options from a loaded RefitConfig.
func OptionsFromConfig(cfg *config.RefitConfig) Options {
	return Options{
		DisabledLayers:  cfg.GetDisabledLayers(),
		FitSiliconMMs:   cfg.GetFitSiliconMMs(),
		UseMicromegas:   cfg.GetUseMicromegas(),
		MinPT:           cfg.GetFitMinPT(),
		CandidateFilter: cfg.GetCandidateFilter(),
		VertexMinNDF:    cfg.GetVertexMinNDF(),
		PrimaryPID:      cfg.GetPrimaryPIDGuess(),
		SeedMomentum:    cfg.GetSeedMomentum(),
		SeedCovariance:  cfg.GetSeedCovariance(),
		Corrections: trkr.CorrectionSet{
			ModuleEdge:  !cfg.GetDisableModuleEdgeCorr(),
			Static:      !cfg.GetDisableStaticCorr(),
			Average:     !cfg.GetDisableAverageCorr(),
			Fluctuation: !cfg.GetDisableFluctuationCorr(),
		},
		DriftVelocity: cfg.GetTPCDriftVelocity(),
	}
}

// DefaultOptions returns Options built from the built-in defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultRefitConfig())
}

// EventSummary counts what happened to an event's candidates.
type EventSummary struct {
	Event      int
	Candidates int
	Refit      int
	Rejected   int
	Failed     int
	// VertexCandidates counts refitted tracks with ndf above VertexMinNDF.
	VertexCandidates int
	Outcomes         map[Outcome]int
}

func (s *EventSummary) record(o Outcome) {
	if s.Outcomes == nil {
		s.Outcomes = make(map[Outcome]int)
	}
	s.Outcomes[o]++
	switch {
	case o == OutcomeRefit:
		s.Refit++
	case o.Rejected():
		s.Rejected++
	default:
		s.Failed++
	}
}

// Refitter refits the track candidates of one event at a time.
type Refitter struct {
	opts    Options
	engine  fitengine.Engine
	filter  *CandidateFilter
	metrics Recorder
	clock   timeutil.Clock

	vertex    r3.Vec
	vertexCov *mat.SymDense
}

// NewRefitter returns a Refitter using engine. A nil recorder discards
// metrics.
func NewRefitter(opts Options, engine fitengine.Engine, rec Recorder) (*Refitter, error) {
	if engine == nil {
		return nil, errors.New("refit: nil engine")
	}
	filter, err := CompileFilter(opts.CandidateFilter)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = NoopRecorder{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Refitter{
		opts:      opts,
		engine:    engine,
		filter:    filter,
		metrics:   rec,
		clock:     clock,
		vertex:    geom.Origin,
		vertexCov: mat.NewSymDense(3, nil),
	}, nil
}

// ProcessEvent builds candidates from ev and refits them. The returned map
// holds only refitted tracks.
func (r *Refitter) ProcessEvent(ev *trkr.Event) (*TrackMap, EventSummary) {
	monitoring.Debugf(2, "[refit] processing event %d", ev.Number)

	tracks, skipped := BuildCandidates(ev)
	for _, err := range skipped {
		monitoring.Debugf(2, "[refit] event %d: %v", ev.Number, err)
	}

	clusters := ev.ClusterStore(r.opts.Corrections, r.opts.DriftVelocity)
	monitoring.Debugf(2, "[refit] event %d: %d candidates, %d clusters", ev.Number, tracks.Len(), clusters.Len())
	summary := r.RefitTracks(tracks, clusters, ev.Geometry())
	summary.Event = ev.Number
	summary.Candidates += len(skipped)
	for range skipped {
		summary.record(OutcomeMissingSeed)
		r.metrics.IncOutcome(OutcomeMissingSeed)
	}
	return tracks, summary
}

// RefitTracks refits every track in tracks in id order, replacing each with
// its refitted version or erasing it on rejection or failure.
func (r *Refitter) RefitTracks(tracks *TrackMap, clusters trkr.ClusterStore, geometry trkr.Geometry) EventSummary {
	builder := measure.NewBuilder(clusters, geometry, measure.Options{
		DisabledLayers: r.opts.DisabledLayers,
		FitSiliconMMs:  r.opts.FitSiliconMMs,
		UseMicromegas:  r.opts.UseMicromegas,
	})

	var summary EventSummary
	for _, id := range tracks.IDs() {
		cand, _ := tracks.Get(id)
		summary.Candidates++

		out, err := r.refitTrack(cand, builder)
		outcome := OutcomeOf(err)
		summary.record(outcome)
		r.metrics.IncOutcome(outcome)

		if err != nil {
			if outcome.Rejected() {
				monitoring.Debugf(1, "[refit] track %d rejected: %v", id, err)
			} else {
				monitoring.Logf("[refit] WARNING: failed refitting input track %d: %v", id, err)
			}
			tracks.Erase(id)
			continue
		}

		if err := tracks.Replace(id, out); err != nil {
			monitoring.Logf("[refit] replace track %d: %v", id, err)
			continue
		}
		if out.NDF > r.opts.VertexMinNDF {
			summary.VertexCandidates++
		}
		if monitoring.Verbosity() >= 1 {
			dumpStates(out)
		}
	}
	return summary
}

func (r *Refitter) refitTrack(cand *Track, builder *measure.Builder) (*Track, error) {
	if !(cand.PT() > r.opts.MinPT) {
		return nil, fmt.Errorf("%w: pt %.4f <= %.4f", ErrBelowMinPT, cand.PT(), r.opts.MinPT)
	}
	if ok, err := r.filter.Match(cand); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFilteredOut, err)
	} else if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFilteredOut, r.filter)
	}

	res, err := builder.Build(cand.ClusterKeys, cand.Crossing)
	if err != nil {
		return nil, err
	}

	seed := NewSeed(res.Measurements[0], r.opts.SeedMomentum, r.opts.SeedCovariance)
	start := r.clock.Now()
	traj, err := fitTrack(r.engine, seed, res.Measurements, r.opts.PrimaryPID)
	r.metrics.ObserveFitDuration(r.clock.Since(start))
	if err != nil {
		return nil, err
	}
	monitoring.Debugf(10, "[refit] track %d chi2 %.4f ndf %.0f", cand.ID, traj.ChiSquare(), traj.NDF())

	dca, err := computeDCA(traj, r.vertex, r.vertexCov)
	if err != nil {
		return nil, err
	}
	if dca.RotationErr != nil {
		r.metrics.IncRotationFailure()
	}

	extracted := extractStates(traj, r.vertex)
	interpolated, failed := interpolateSkipped(traj, res.Skipped, r.vertex)
	r.metrics.AddStates(StateExtracted, len(extracted))
	r.metrics.AddStates(StateInterpolated, len(interpolated))
	if failed > 0 {
		r.metrics.IncInterpolationFailures(failed)
	}

	return assemble(cand, traj, dca, extracted, interpolated)
}
