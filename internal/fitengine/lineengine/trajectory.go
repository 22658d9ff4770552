package lineengine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/measure"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

// solution is an estimate of the frame parameters with their covariance.
type solution struct {
	params *mat.VecDense
	cov    *mat.SymDense
}

type trajectory struct {
	StraightLine

	measurements []measure.Measurement
	frame        frame
	prior        prior
	pmag         float64
	charge       float64

	smoothed *solution
	fitted   []fitengine.MeasuredState
	forward  []*fitengine.MeasuredState
	backward []*fitengine.MeasuredState

	chi2 float64
	ndf  float64
}

var _ fitengine.Trajectory = (*trajectory)(nil)

// crossing is the line at some parameters intersecting a measurement plane.
type crossing struct {
	pos r3.Vec
	// posJac is ∂pos/∂params (3x4).
	posJac *mat.Dense
}

// intersect crosses the line of p with the plane of m. For a line a + s·d
// and a plane with normal n through o,
//
//	s = (o − a)·n / (d·n)    ∂pos/∂a = A    ∂pos/∂d = s·A
//	A = I − d nᵀ/(d·n)
func (tr *trajectory) intersect(p mat.Vector, m measure.Measurement) (crossing, error) {
	a, d := tr.frame.line(p)
	n := m.Normal()
	dn := r3.Dot(d, n)
	if math.Abs(dn) < parallelTolerance*r3.Norm(d) {
		return crossing{}, fmt.Errorf("%w: cluster %s", fitengine.ErrParallel, m.Key)
	}
	s := r3.Dot(r3.Sub(m.Position, a), n) / dn
	pos := r3.Add(a, r3.Scale(s, d))

	proj := func(v r3.Vec) r3.Vec {
		return r3.Sub(v, r3.Scale(r3.Dot(n, v)/dn, d))
	}
	jac := mat.NewDense(3, numParams, nil)
	for k, ax := range [2]r3.Vec{tr.frame.e1, tr.frame.e2} {
		c := proj(ax)
		jac.Set(0, k, c.X)
		jac.Set(1, k, c.Y)
		jac.Set(2, k, c.Z)
		jac.Set(0, k+2, s*c.X)
		jac.Set(1, k+2, s*c.Y)
		jac.Set(2, k+2, s*c.Z)
	}
	return crossing{pos: pos, posJac: jac}, nil
}

// normalEquations accumulates the information matrix and the gradient of
// points [from, to) plus the prior, linearised at p.
func (tr *trajectory) normalEquations(from, to int, p *mat.VecDense) (*mat.SymDense, *mat.VecDense, error) {
	info := mat.NewSymDense(numParams, nil)
	info.CopySym(tr.prior.info)
	grad := mat.NewVecDense(numParams, nil)
	var diff mat.VecDense
	diff.SubVec(tr.prior.mean, p)
	grad.MulVec(tr.prior.info, &diff)

	h := mat.NewVecDense(numParams, nil)
	for i := from; i < to; i++ {
		m := tr.measurements[i]
		c, err := tr.intersect(p, m)
		if err != nil {
			return nil, nil, err
		}
		res := r3.Sub(m.Position, c.pos)
		for _, axis := range []struct {
			w     r3.Vec
			sigma float64
		}{{m.U, m.SigmaU}, {m.V, m.SigmaV}} {
			wv := mat.NewVecDense(3, []float64{axis.w.X, axis.w.Y, axis.w.Z})
			h.MulVec(c.posJac.T(), wv)
			weight := 1 / (axis.sigma * axis.sigma)
			info.SymRankOne(info, weight, h)
			grad.AddScaledVec(grad, weight*r3.Dot(axis.w, res), h)
		}
	}
	return info, grad, nil
}

// solve fits the frame parameters to points [from, to) plus the prior by
// Gauss-Newton iteration starting at start.
func (tr *trajectory) solve(from, to int, start mat.Vector) (*solution, error) {
	p := mat.VecDenseCopyOf(start)
	var chol mat.Cholesky
	step := mat.NewVecDense(numParams, nil)
	converged := false
	for iter := 0; iter < maxIterations; iter++ {
		info, grad, err := tr.normalEquations(from, to, p)
		if err != nil {
			return nil, err
		}
		if ok := chol.Factorize(info); !ok {
			return nil, fmt.Errorf("%w: information matrix for points [%d, %d)", fitengine.ErrSingular, from, to)
		}
		if err := chol.SolveVecTo(step, grad); err != nil {
			return nil, fmt.Errorf("%w: %v", fitengine.ErrSingular, err)
		}
		p.AddVec(p, step)
		if mat.Norm(step, math.Inf(1)) < convergence {
			converged = true
			break
		}
	}
	for i := 0; i < numParams; i++ {
		if v := p.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fitengine.ErrNonFinite
		}
	}
	if !converged {
		return nil, fmt.Errorf("%w: points [%d, %d) after %d iterations", ErrNotConverged, from, to, maxIterations)
	}

	info, _, err := tr.normalEquations(from, to, p)
	if err != nil {
		return nil, err
	}
	if ok := chol.Factorize(info); !ok {
		return nil, fmt.Errorf("%w: information matrix for points [%d, %d)", fitengine.ErrSingular, from, to)
	}
	cov := mat.NewSymDense(numParams, nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, fmt.Errorf("%w: %v", fitengine.ErrSingular, err)
	}
	return &solution{params: p, cov: cov}, nil
}

func (tr *trajectory) chiSquare(p mat.Vector) (float64, error) {
	var chi2 float64
	for _, m := range tr.measurements {
		c, err := tr.intersect(p, m)
		if err != nil {
			return 0, err
		}
		res := r3.Sub(c.pos, m.Position)
		ru := r3.Dot(res, m.U) / m.SigmaU
		rv := r3.Dot(res, m.V) / m.SigmaV
		chi2 += ru*ru + rv*rv
	}
	return chi2, nil
}

// stateAt evaluates sol where its line crosses the plane of point i.
func (tr *trajectory) stateAt(sol *solution, i int) (fitengine.MeasuredState, error) {
	m := tr.measurements[i]
	c, err := tr.intersect(sol.params, m)
	if err != nil {
		return fitengine.MeasuredState{}, err
	}
	_, d := tr.frame.line(sol.params)
	dn := r3.Norm(d)
	dhat := r3.Scale(1/dn, d)

	// ∂mom/∂d = |p|/|d| (I − d̂d̂ᵀ)
	jac := mat.NewDense(fitengine.StateDim, numParams, nil)
	jac.Slice(0, 3, 0, numParams).(*mat.Dense).Copy(c.posJac)
	for k, ax := range [2]r3.Vec{tr.frame.e1, tr.frame.e2} {
		dm := r3.Scale(tr.pmag/dn, r3.Sub(ax, r3.Scale(r3.Dot(dhat, ax), dhat)))
		jac.Set(3, k+2, dm.X)
		jac.Set(4, k+2, dm.Y)
		jac.Set(5, k+2, dm.Z)
	}
	var jc, cov mat.Dense
	jc.Mul(jac, sol.cov)
	cov.Mul(&jc, jac.T())

	s := fitengine.MeasuredState{
		Pos:   c.pos,
		Mom:   r3.Scale(tr.pmag, dhat),
		Cov:   geom.Symmetrize(&cov),
		Plane: fitengine.PlaneFromMeasurement(m),
	}
	if err := s.Validate(); err != nil {
		return fitengine.MeasuredState{}, err
	}
	return s, nil
}

func (tr *trajectory) checkIndex(i int) error {
	if i < 0 || i >= len(tr.measurements) {
		return fmt.Errorf("%w: %d of %d", fitengine.ErrIndex, i, len(tr.measurements))
	}
	return nil
}

func (tr *trajectory) NumPoints() int {
	return len(tr.measurements)
}

func (tr *trajectory) ClusterKey(i int) trkr.ClusterKey {
	if tr.checkIndex(i) != nil {
		return trkr.InvalidClusterKey
	}
	return tr.measurements[i].Key
}

func (tr *trajectory) FittedState(i int) (fitengine.MeasuredState, error) {
	if err := tr.checkIndex(i); err != nil {
		return fitengine.MeasuredState{}, err
	}
	return tr.fitted[i].Clone(), nil
}

func (tr *trajectory) ForwardUpdate(i int) (fitengine.MeasuredState, error) {
	return tr.partial(tr.forward, i, 0, i+1)
}

func (tr *trajectory) BackwardUpdate(i int) (fitengine.MeasuredState, error) {
	return tr.partial(tr.backward, i, i, len(tr.measurements))
}

func (tr *trajectory) partial(cache []*fitengine.MeasuredState, i, from, to int) (fitengine.MeasuredState, error) {
	if err := tr.checkIndex(i); err != nil {
		return fitengine.MeasuredState{}, err
	}
	if cache[i] == nil {
		sol, err := tr.solve(from, to, tr.smoothed.params)
		if err != nil {
			return fitengine.MeasuredState{}, err
		}
		s, err := tr.stateAt(sol, i)
		if err != nil {
			return fitengine.MeasuredState{}, err
		}
		cache[i] = &s
	}
	return cache[i].Clone(), nil
}

func (tr *trajectory) ExtrapolateToLine(point, dir r3.Vec) (fitengine.MeasuredState, float64, error) {
	return tr.PropagateToLine(tr.fitted[0], point, dir)
}

func (tr *trajectory) ExtrapolateToPoint(p r3.Vec) (fitengine.MeasuredState, float64, error) {
	return tr.PropagateToPoint(tr.fitted[0], p)
}

func (tr *trajectory) ChiSquare() float64 { return tr.chi2 }
func (tr *trajectory) NDF() float64       { return tr.ndf }
func (tr *trajectory) Charge() float64    { return tr.charge }
