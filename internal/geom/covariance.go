package geom

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Cov6 is a symmetric 6x6 covariance over (x, y, z, px, py, pz). Only the
// lower triangle is stored; reads above the diagonal are mirrored.
// It is a value type so track states can be compared and copied freely.
type Cov6 [21]float64

func packedIndex(i, j int) int {
	if j > i {
		i, j = j, i
	}
	return i*(i+1)/2 + j
}

// At returns element (i, j).
func (c Cov6) At(i, j int) float64 {
	return c[packedIndex(i, j)]
}

// Set sets element (i, j) and, implicitly, (j, i).
func (c *Cov6) Set(i, j int, v float64) {
	c[packedIndex(i, j)] = v
}

// Cov6FromSym packs a 6x6 symmetric matrix.
func Cov6FromSym(s mat.Symmetric) (Cov6, error) {
	var c Cov6
	if n := s.SymmetricDim(); n != 6 {
		return c, fmt.Errorf("covariance must be 6x6, got %dx%d", n, n)
	}
	for i := 0; i < 6; i++ {
		for j := 0; j <= i; j++ {
			c.Set(i, j, s.At(i, j))
		}
	}
	return c, nil
}

// Sym unpacks c into a gonum symmetric matrix.
func (c Cov6) Sym() *mat.SymDense {
	s := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j <= i; j++ {
			s.SetSym(i, j, c.At(i, j))
		}
	}
	return s
}

// Position returns the 3x3 position block.
func (c Cov6) Position() *mat.SymDense {
	s := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j <= i; j++ {
			s.SetSym(i, j, c.At(i, j))
		}
	}
	return s
}

// Trace returns the sum of the diagonal.
func (c Cov6) Trace() float64 {
	var t float64
	for i := 0; i < 6; i++ {
		t += c.At(i, i)
	}
	return t
}

// IsFinite reports whether all stored elements are finite.
func (c Cov6) IsFinite() bool {
	for _, v := range c {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

// Symmetrize returns the symmetric part (A + Aᵀ)/2 of a square matrix. It is
// used after similarity transforms to discard rounding asymmetry.
func Symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return s
}
