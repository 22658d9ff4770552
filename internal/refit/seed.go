package refit

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/measure"
)

// NewSeed returns the loose starting state of a fit: the origin, momentum
// of the given magnitude pointing at the innermost measurement, and a 6x6
// covariance with every entry set to covariance.
func NewSeed(innermost measure.Measurement, momentum, covariance float64) fitengine.Seed {
	pos := innermost.Position
	cov := mat.NewSymDense(fitengine.StateDim, nil)
	for i := 0; i < fitengine.StateDim; i++ {
		for j := i; j < fitengine.StateDim; j++ {
			cov.SetSym(i, j, covariance)
		}
	}
	return fitengine.Seed{
		Pos: geom.Origin,
		Mom: geom.FromSpherical(momentum, geom.Phi(pos), geom.Theta(pos)),
		Cov: cov,
	}
}
