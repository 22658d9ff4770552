package lineengine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/geom"
)

// parallelTolerance bounds |cos| between the track direction and a target
// plane (or 1 − cos² for a target line) below which propagation fails.
const parallelTolerance = 1e-9

// StraightLine propagates states along field-free straight lines. The
// covariance is transported with the Jacobian of the plane intersection.
type StraightLine struct{}

var _ fitengine.Propagator = StraightLine{}

func direction(s fitengine.MeasuredState) (r3.Vec, float64, error) {
	p := r3.Norm(s.Mom)
	if p == 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return r3.Vec{}, 0, fmt.Errorf("%w: momentum magnitude %v", fitengine.ErrNonFinite, p)
	}
	return r3.Scale(1/p, s.Mom), p, nil
}

// PropagateToPlane implements fitengine.Propagator.
func (StraightLine) PropagateToPlane(s fitengine.MeasuredState, plane fitengine.Plane) (fitengine.MeasuredState, float64, error) {
	if err := s.Validate(); err != nil {
		return fitengine.MeasuredState{}, 0, err
	}
	d, p, err := direction(s)
	if err != nil {
		return fitengine.MeasuredState{}, 0, err
	}

	n := r3.Unit(plane.Normal())
	dn := r3.Dot(d, n)
	if math.Abs(dn) < parallelTolerance {
		return fitengine.MeasuredState{}, 0, fitengine.ErrParallel
	}
	path := r3.Dot(r3.Sub(plane.Origin, s.Pos), n) / dn

	jac := transportJacobian(d, n, dn, p, path)
	var jc, cov mat.Dense
	jc.Mul(jac, s.Cov)
	cov.Mul(&jc, jac.T())

	out := fitengine.MeasuredState{
		Pos:   r3.Add(s.Pos, r3.Scale(path, d)),
		Mom:   s.Mom,
		Cov:   geom.Symmetrize(&cov),
		Plane: plane,
	}
	if err := out.Validate(); err != nil {
		return fitengine.MeasuredState{}, 0, err
	}
	return out, path, nil
}

// PropagateToPoint implements fitengine.Propagator. The target plane goes
// through p perpendicular to the track direction.
func (sl StraightLine) PropagateToPoint(s fitengine.MeasuredState, p r3.Vec) (fitengine.MeasuredState, float64, error) {
	d, _, err := direction(s)
	if err != nil {
		return fitengine.MeasuredState{}, 0, err
	}
	return sl.PropagateToPlane(s, fitengine.PlaneFromNormal(p, d))
}

// PropagateToLine implements fitengine.Propagator. The target plane goes
// through the point of closest approach on the line with U = d × l and
// V = l, so the local u coordinate is the signed transverse distance.
func (sl StraightLine) PropagateToLine(s fitengine.MeasuredState, point, dir r3.Vec) (fitengine.MeasuredState, float64, error) {
	d, _, err := direction(s)
	if err != nil {
		return fitengine.MeasuredState{}, 0, err
	}
	l := r3.Unit(dir)
	b := r3.Dot(d, l)
	denom := 1 - b*b
	if denom < parallelTolerance {
		return fitengine.MeasuredState{}, 0, fitengine.ErrParallel
	}

	w0 := r3.Sub(s.Pos, point)
	t := (r3.Dot(l, w0) - b*r3.Dot(d, w0)) / denom
	plane := fitengine.Plane{
		Origin: r3.Add(point, r3.Scale(t, l)),
		U:      r3.Unit(r3.Cross(d, l)),
		V:      l,
	}
	return sl.PropagateToPlane(s, plane)
}

// transportJacobian returns ∂(pos', mom)/∂(pos, mom) for a straight line
// intersecting the plane with unit normal n after path s:
//
//	A = I − d nᵀ/(d·n)    D = (I − d dᵀ)/|p|
//	J = [[A, s·A·D], [0, I]]
func transportJacobian(d, n r3.Vec, dn, p, s float64) *mat.Dense {
	dv := []float64{d.X, d.Y, d.Z}
	nv := []float64{n.X, n.Y, n.Z}

	a := mat.NewDense(3, 3, nil)
	dd := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var delta float64
			if i == j {
				delta = 1
			}
			a.Set(i, j, delta-dv[i]*nv[j]/dn)
			dd.Set(i, j, (delta-dv[i]*dv[j])/p)
		}
	}
	var ad mat.Dense
	ad.Mul(a, dd)
	ad.Scale(s, &ad)

	jac := mat.NewDense(fitengine.StateDim, fitengine.StateDim, nil)
	jac.Slice(0, 3, 0, 3).(*mat.Dense).Copy(a)
	jac.Slice(0, 3, 3, 6).(*mat.Dense).Copy(&ad)
	for i := 3; i < 6; i++ {
		jac.Set(i, i, 1)
	}
	return jac
}
