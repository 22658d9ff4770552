package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// MinTransverseNorm is the smallest |n × ẑ| for which the radial direction
// of a momentum n is considered defined.
const MinTransverseNorm = 1e-5

// ErrParallelToBeam is returned when the momentum is parallel to the beam
// axis and the radial direction is undefined.
var ErrParallelToBeam = errors.New("momentum parallel to beam axis")

// RotationAboutBeam returns the 3x3 rotation by phi about BeamAxis.
func RotationAboutBeam(phi float64) *mat.Dense {
	c, s := math.Cos(phi), math.Sin(phi)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

// XYZToRZ rotates a position difference and its 3x3 covariance about the beam
// axis so that the first axis points along n × ẑ (the transverse DCA
// direction for momentum n) and the third stays longitudinal.
//
// in: X, Y, Z; out: n × ẑ, ẑ × (n × ẑ), ẑ
func XYZToRZ(n, pos r3.Vec, cov mat.Symmetric) (r3.Vec, *mat.SymDense, error) {
	if cov.SymmetricDim() != 3 {
		return r3.Vec{}, nil, errors.New("position covariance must be 3x3")
	}

	// Only the angle of r is used, not its magnitude.
	r := r3.Cross(n, BeamAxis)
	if r3.Norm(r) < MinTransverseNorm {
		return r3.Vec{}, nil, ErrParallelToBeam
	}

	// Rotate r onto the first axis.
	phi := -math.Atan2(r.Y, r.X)
	R := RotationAboutBeam(phi)

	in := mat.NewVecDense(3, []float64{pos.X, pos.Y, pos.Z})
	var out mat.VecDense
	out.MulVec(R, in)

	var rc, rcrt mat.Dense
	rc.Mul(R, cov)
	rcrt.Mul(&rc, R.T())

	return r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}, Symmetrize(&rcrt), nil
}
