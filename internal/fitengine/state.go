package fitengine

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/measure"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

var (
	// ErrParallel is returned when a track cannot reach a line or plane
	// because it runs parallel to it.
	ErrParallel = errors.New("track parallel to target")
	// ErrIndex is returned for fit point indices out of range.
	ErrIndex = errors.New("fit point index out of range")
	// ErrSingular is returned when a matrix cannot be inverted.
	ErrSingular = errors.New("singular matrix")
	// ErrNonFinite is returned when a state has NaN or infinite entries.
	ErrNonFinite = errors.New("non-finite state")
)

// StateDim is the dimension of a global track state.
const StateDim = 6

// Plane is a detector or virtual surface with orthonormal axes U and V.
type Plane struct {
	Origin r3.Vec
	U      r3.Vec
	V      r3.Vec
}

// Normal returns U × V.
func (p Plane) Normal() r3.Vec {
	return r3.Cross(p.U, p.V)
}

// PlaneFromMeasurement returns the plane of m.
func PlaneFromMeasurement(m measure.Measurement) Plane {
	return Plane{Origin: m.Position, U: m.U, V: m.V}
}

// PlaneFromNormal builds a plane through origin perpendicular to n. U is
// n × ẑ, or x̂ when n is parallel to the beam, and V completes the frame.
func PlaneFromNormal(origin, n r3.Vec) Plane {
	n = r3.Unit(n)
	u := r3.Cross(n, geom.BeamAxis)
	if r3.Norm(u) < geom.MinTransverseNorm {
		u = r3.Vec{X: 1}
	}
	u = r3.Unit(u)
	return Plane{Origin: origin, U: u, V: r3.Cross(n, u)}
}

// MeasuredState is a track state with covariance on a plane.
type MeasuredState struct {
	Pos   r3.Vec
	Mom   r3.Vec
	Cov   *mat.SymDense
	Plane Plane
}

// Vector returns (x, y, z, px, py, pz).
func (s MeasuredState) Vector() *mat.VecDense {
	return mat.NewVecDense(StateDim, []float64{s.Pos.X, s.Pos.Y, s.Pos.Z, s.Mom.X, s.Mom.Y, s.Mom.Z})
}

// SetVector overwrites position and momentum from a 6-vector.
func (s *MeasuredState) SetVector(v mat.Vector) {
	s.Pos = r3.Vec{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)}
	s.Mom = r3.Vec{X: v.AtVec(3), Y: v.AtVec(4), Z: v.AtVec(5)}
}

// Clone returns a deep copy of s.
func (s MeasuredState) Clone() MeasuredState {
	out := s
	if s.Cov != nil {
		out.Cov = mat.NewSymDense(StateDim, nil)
		out.Cov.CopySym(s.Cov)
	}
	return out
}

// LocalUV returns the position of s in the plane coordinates.
func (s MeasuredState) LocalUV() (u, v float64) {
	d := r3.Sub(s.Pos, s.Plane.Origin)
	return r3.Dot(d, s.Plane.U), r3.Dot(d, s.Plane.V)
}

// LocalCov returns the position covariance projected on the plane axes.
func (s MeasuredState) LocalCov() (uu, vv, uv float64) {
	if s.Cov == nil {
		return 0, 0, 0
	}
	pos := s.Cov.SliceSym(0, 3)
	u := mat.NewVecDense(3, []float64{s.Plane.U.X, s.Plane.U.Y, s.Plane.U.Z})
	v := mat.NewVecDense(3, []float64{s.Plane.V.X, s.Plane.V.Y, s.Plane.V.Z})
	return mat.Inner(u, pos, u), mat.Inner(v, pos, v), mat.Inner(u, pos, v)
}

// Validate checks dimensions and finiteness.
func (s MeasuredState) Validate() error {
	if s.Cov == nil || s.Cov.SymmetricDim() != StateDim {
		return fmt.Errorf("state covariance must be %dx%d", StateDim, StateDim)
	}
	if !geom.IsFinite(s.Pos) || !geom.IsFinite(s.Mom) {
		return ErrNonFinite
	}
	for i := 0; i < StateDim; i++ {
		for j := 0; j <= i; j++ {
			if f := s.Cov.At(i, j); math.IsNaN(f) || math.IsInf(f, 0) {
				return ErrNonFinite
			}
		}
	}
	return nil
}

// Seed is the initial state handed to an engine.
type Seed struct {
	Pos r3.Vec
	Mom r3.Vec
	Cov *mat.SymDense
}

// Propagator moves states along the track model. Each method returns the
// state on the target and the signed path length travelled.
type Propagator interface {
	// PropagateToPoint moves s to its point of closest approach to p.
	PropagateToPoint(s MeasuredState, p r3.Vec) (MeasuredState, float64, error)
	// PropagateToLine moves s to its point of closest approach to the line
	// through point along dir.
	PropagateToLine(s MeasuredState, point, dir r3.Vec) (MeasuredState, float64, error)
	// PropagateToPlane moves s onto plane.
	PropagateToPlane(s MeasuredState, plane Plane) (MeasuredState, float64, error)
}

// Trajectory is a fitted track. Fit points are indexed in measurement
// order. State accessors return copies.
type Trajectory interface {
	Propagator

	NumPoints() int
	ClusterKey(i int) trkr.ClusterKey
	// FittedState is the smoothed state at point i.
	FittedState(i int) (MeasuredState, error)
	// ForwardUpdate is the filtered state at point i using points 0..i.
	ForwardUpdate(i int) (MeasuredState, error)
	// BackwardUpdate is the filtered state at point i using points i..N-1.
	BackwardUpdate(i int) (MeasuredState, error)

	// ExtrapolateToLine propagates the first fitted state to the line.
	ExtrapolateToLine(point, dir r3.Vec) (MeasuredState, float64, error)
	// ExtrapolateToPoint propagates the first fitted state to p.
	ExtrapolateToPoint(p r3.Vec) (MeasuredState, float64, error)

	ChiSquare() float64
	NDF() float64
	Charge() float64
}

// Engine fits measurements starting from a seed under a particle
// hypothesis given as a PDG code.
type Engine interface {
	Fit(seed Seed, measurements []measure.Measurement, pid int) (Trajectory, error)
}
