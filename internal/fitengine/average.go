package fitengine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/trackrefit/internal/geom"
)

// pinvTolerance is the eigenvalue cut, relative to the largest eigenvalue,
// below which directions are treated as unconstrained.
const pinvTolerance = 1e-12

// PseudoInverse returns the Moore-Penrose inverse of a symmetric positive
// semi-definite matrix.
func PseudoInverse(a mat.Symmetric) (*mat.SymDense, error) {
	n := a.SymmetricDim()
	var eig mat.EigenSym
	if !eig.Factorize(a, true) {
		return nil, fmt.Errorf("%w: eigen decomposition failed", ErrSingular)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	var largest float64
	for _, v := range values {
		if v > largest {
			largest = v
		}
	}

	out := mat.NewSymDense(n, nil)
	if largest <= 0 {
		return out, nil
	}
	col := make([]float64, n)
	for k, v := range values {
		if v <= largest*pinvTolerance {
			continue
		}
		mat.Col(col, k, &vectors)
		out.SymRankOne(out, 1/v, mat.NewVecDense(n, col))
	}
	return out, nil
}

// AverageStates combines two estimates of the same track state weighted by
// their precisions. Both states should lie on the same plane; the result
// keeps the plane of a.
//
//	x = x1 + C1 (C1+C2)⁺ (x2 − x1)
//	C = C1 − C1 (C1+C2)⁺ C1
func AverageStates(a, b MeasuredState) (MeasuredState, error) {
	if err := a.Validate(); err != nil {
		return MeasuredState{}, fmt.Errorf("first state: %w", err)
	}
	if err := b.Validate(); err != nil {
		return MeasuredState{}, fmt.Errorf("second state: %w", err)
	}

	var sum mat.SymDense
	sum.AddSym(a.Cov, b.Cov)
	sumInv, err := PseudoInverse(&sum)
	if err != nil {
		return MeasuredState{}, err
	}

	var gain mat.Dense
	gain.Mul(a.Cov, sumInv)

	var diff mat.VecDense
	diff.SubVec(b.Vector(), a.Vector())
	var step mat.VecDense
	step.MulVec(&gain, &diff)
	var x mat.VecDense
	x.AddVec(a.Vector(), &step)

	var reduce mat.Dense
	reduce.Mul(&gain, a.Cov)
	var cov mat.Dense
	cov.Sub(a.Cov, &reduce)

	out := MeasuredState{Cov: geom.Symmetrize(&cov), Plane: a.Plane}
	out.SetVector(&x)
	if err := out.Validate(); err != nil {
		return MeasuredState{}, err
	}
	return out, nil
}
