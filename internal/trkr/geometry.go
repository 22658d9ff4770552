package trkr

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Geometry provides detector surface orientations.
type Geometry interface {
	// SurfaceBasis returns the global directions of the local u and v axes
	// of the surface holding the cluster.
	SurfaceBasis(key ClusterKey) (u, v r3.Vec, err error)
}

// ErrNoSurface is returned when no surface is registered for a hit set.
var ErrNoSurface = errors.New("no surface for hit set")

// Surface is the orientation of one detector element.
type Surface struct {
	HitSet HitSetKey
	U      r3.Vec
	V      r3.Vec
}

// MapGeometry is an in-memory Geometry keyed by hit set.
type MapGeometry map[HitSetKey]Surface

// Add registers s.
func (g MapGeometry) Add(s Surface) {
	g[s.HitSet] = s
}

// SurfaceBasis implements Geometry.
func (g MapGeometry) SurfaceBasis(key ClusterKey) (r3.Vec, r3.Vec, error) {
	s, ok := g[key.HitSetKey()]
	if !ok {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("%w: %s", ErrNoSurface, key)
	}
	return s.U, s.V, nil
}
