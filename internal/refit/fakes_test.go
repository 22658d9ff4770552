package refit

import (
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/fitengine/lineengine"
	"github.com/banshee-data/trackrefit/internal/measure"
	"github.com/banshee-data/trackrefit/internal/timeutil"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

// stubTrajectory has one fit point per state, with overridable
// extrapolation results. Forward and backward updates equal the fitted
// states unless overridden per point.
type stubTrajectory struct {
	lineengine.StraightLine
	states []fitengine.MeasuredState

	forward   map[int]fitengine.MeasuredState
	backward  map[int]fitengine.MeasuredState
	fittedErr map[int]error

	beam     *fitengine.MeasuredState
	beamErr  error
	pointErr error
}

func stubState(pos, mom r3.Vec) fitengine.MeasuredState {
	cov := mat.NewSymDense(fitengine.StateDim, nil)
	for i := 0; i < fitengine.StateDim; i++ {
		cov.SetSym(i, i, 1e-4)
	}
	return fitengine.MeasuredState{
		Pos:   pos,
		Mom:   mom,
		Cov:   cov,
		Plane: fitengine.PlaneFromNormal(pos, mom),
	}
}

// stateWithCov is a state whose position covariance is diagonal with the
// given variances and whose momentum is exact.
func stateWithCov(pos, mom, posVar r3.Vec) fitengine.MeasuredState {
	cov := mat.NewSymDense(fitengine.StateDim, nil)
	cov.SetSym(0, 0, posVar.X)
	cov.SetSym(1, 1, posVar.Y)
	cov.SetSym(2, 2, posVar.Z)
	return fitengine.MeasuredState{
		Pos:   pos,
		Mom:   mom,
		Cov:   cov,
		Plane: fitengine.PlaneFromNormal(pos, mom),
	}
}

func newStubTrajectory(pos, mom r3.Vec) *stubTrajectory {
	return &stubTrajectory{states: []fitengine.MeasuredState{stubState(pos, mom)}}
}

// newLineStub places one fit point at each of points, all with momentum mom.
func newLineStub(mom r3.Vec, points ...r3.Vec) *stubTrajectory {
	st := &stubTrajectory{}
	for _, p := range points {
		st.states = append(st.states, stubState(p, mom))
	}
	return st
}

func (s *stubTrajectory) NumPoints() int                   { return len(s.states) }
func (s *stubTrajectory) ClusterKey(i int) trkr.ClusterKey { return tpcKey(uint8(7 + i)) }
func (s *stubTrajectory) ChiSquare() float64               { return 0 }
func (s *stubTrajectory) NDF() float64                     { return 1 }
func (s *stubTrajectory) Charge() float64                  { return -1 }

func (s *stubTrajectory) FittedState(i int) (fitengine.MeasuredState, error) {
	if i < 0 || i >= len(s.states) {
		return fitengine.MeasuredState{}, fitengine.ErrIndex
	}
	if err := s.fittedErr[i]; err != nil {
		return fitengine.MeasuredState{}, err
	}
	return s.states[i].Clone(), nil
}

func (s *stubTrajectory) ForwardUpdate(i int) (fitengine.MeasuredState, error) {
	if st, ok := s.forward[i]; ok {
		return st.Clone(), nil
	}
	return s.FittedState(i)
}

func (s *stubTrajectory) BackwardUpdate(i int) (fitengine.MeasuredState, error) {
	if st, ok := s.backward[i]; ok {
		return st.Clone(), nil
	}
	return s.FittedState(i)
}

func (s *stubTrajectory) ExtrapolateToLine(point, dir r3.Vec) (fitengine.MeasuredState, float64, error) {
	if s.beamErr != nil {
		return fitengine.MeasuredState{}, 0, s.beamErr
	}
	if s.beam != nil {
		return s.beam.Clone(), 0, nil
	}
	return s.PropagateToLine(s.states[0], point, dir)
}

func (s *stubTrajectory) ExtrapolateToPoint(p r3.Vec) (fitengine.MeasuredState, float64, error) {
	if s.pointErr != nil {
		return fitengine.MeasuredState{}, 0, s.pointErr
	}
	return s.PropagateToPoint(s.states[0], p)
}

// countingEngine forwards to a line engine and counts calls.
type countingEngine struct {
	calls atomic.Int32
	inner fitengine.Engine
}

func (c *countingEngine) Fit(seed fitengine.Seed, meas []measure.Measurement, pid int) (fitengine.Trajectory, error) {
	c.calls.Add(1)
	return c.inner.Fit(seed, meas, pid)
}

type panicEngine struct{}

func (panicEngine) Fit(fitengine.Seed, []measure.Measurement, int) (fitengine.Trajectory, error) {
	panic("singular matrix in gain")
}

type errEngine struct{ err error }

func (e errEngine) Fit(fitengine.Seed, []measure.Measurement, int) (fitengine.Trajectory, error) {
	return nil, e.err
}

type stubEngine struct{ traj fitengine.Trajectory }

// slowEngine advances clock by cost on every fit.
type slowEngine struct {
	stubEngine
	clock *timeutil.MockClock
	cost  time.Duration
}

func (e slowEngine) Fit(seed fitengine.Seed, m []measure.Measurement, pid int) (fitengine.Trajectory, error) {
	e.clock.Advance(e.cost)
	return e.stubEngine.Fit(seed, m, pid)
}

// durationRecorder keeps the observed fit durations.
type durationRecorder struct {
	NoopRecorder
	fits []time.Duration
}

func (r *durationRecorder) ObserveFitDuration(d time.Duration) {
	r.fits = append(r.fits, d)
}

func (e stubEngine) Fit(fitengine.Seed, []measure.Measurement, int) (fitengine.Trajectory, error) {
	return e.traj, nil
}
