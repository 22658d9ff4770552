// Package measure turns a track's clusters into detector-typed
// measurements for the fit engine.
package measure

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

// Kind selects the measurement model of a cluster.
type Kind uint8

const (
	// KindPlanar is a 2D measurement on a detector surface with an
	// explicit (u, v) basis: MVTX, INTT and micromegas.
	KindPlanar Kind = iota
	// KindProjective is a TPC measurement on the virtual plane whose
	// normal is the cluster's radial direction.
	KindProjective
)

func (k Kind) String() string {
	switch k {
	case KindPlanar:
		return "planar"
	case KindProjective:
		return "projective"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Measurement is one cluster expressed as a 2D measurement on a plane
// through Position spanned by U and V. SigmaU and SigmaV are the
// resolutions along U (r-phi) and V (z).
type Measurement struct {
	Kind     Kind
	Key      trkr.ClusterKey
	Position r3.Vec
	U        r3.Vec
	V        r3.Vec
	SigmaU   float64
	SigmaV   float64
}

// NewPlanar builds a measurement on a surface with basis (u, v). The basis
// vectors are normalised.
func NewPlanar(key trkr.ClusterKey, pos, u, v r3.Vec, sigmaRPhi, sigmaZ float64) Measurement {
	return Measurement{
		Kind:     KindPlanar,
		Key:      key,
		Position: pos,
		U:        r3.Unit(u),
		V:        r3.Unit(v),
		SigmaU:   sigmaRPhi,
		SigmaV:   sigmaZ,
	}
}

// NewProjective builds a TPC measurement. The plane normal is the radial
// direction (x, y, 0) of pos; u = ẑ × n̂ and v = ẑ.
func NewProjective(key trkr.ClusterKey, pos r3.Vec, sigmaRPhi, sigmaZ float64) Measurement {
	n := r3.Unit(r3.Vec{X: pos.X, Y: pos.Y})
	return Measurement{
		Kind:     KindProjective,
		Key:      key,
		Position: pos,
		U:        r3.Cross(geom.BeamAxis, n),
		V:        geom.BeamAxis,
		SigmaU:   sigmaRPhi,
		SigmaV:   sigmaZ,
	}
}

// Normal returns the unit normal of the measurement plane.
func (m Measurement) Normal() r3.Vec {
	return r3.Unit(r3.Cross(m.U, m.V))
}

// Radius returns the transverse radius of the measured position.
func (m Measurement) Radius() float64 {
	return geom.Radius(m.Position)
}

// Layer returns the detector layer of the underlying cluster.
func (m Measurement) Layer() int {
	return m.Key.Layer()
}
