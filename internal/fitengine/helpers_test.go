package fitengine

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

func nan() float64 { return math.NaN() }

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
