package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// BeamAxis is the longitudinal detector axis. The beam line is the infinite
// line along BeamAxis through the origin.
var BeamAxis = r3.Vec{Z: 1}

// Origin is the nominal vertex position.
var Origin = r3.Vec{}

// Radius returns the transverse distance of p from the beam axis.
func Radius(p r3.Vec) float64 {
	return math.Hypot(p.X, p.Y)
}

// Phi returns the azimuth of p in (-π, π].
func Phi(p r3.Vec) float64 {
	return math.Atan2(p.Y, p.X)
}

// Theta returns the polar angle of p measured from BeamAxis.
func Theta(p r3.Vec) float64 {
	return math.Atan2(math.Hypot(p.X, p.Y), p.Z)
}

// FromSpherical builds a vector of length mag pointing at (phi, theta).
func FromSpherical(mag, phi, theta float64) r3.Vec {
	sinTheta := math.Sin(theta)
	return r3.Vec{
		X: mag * sinTheta * math.Cos(phi),
		Y: mag * sinTheta * math.Sin(phi),
		Z: mag * math.Cos(theta),
	}
}

// IsFinite reports whether every component of v is finite.
func IsFinite(v r3.Vec) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
