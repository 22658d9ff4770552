package refit

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

// TrackState is a track state at a path length measured from the vertex.
type TrackState struct {
	PathLength float64
	Pos        r3.Vec
	Mom        r3.Vec
	Cov        geom.Cov6
	ClusterKey trkr.ClusterKey
}

// Radius returns the transverse radius of the state position.
func (s TrackState) Radius() float64 {
	return geom.Radius(s.Pos)
}

// Track is a track candidate before refit and the refitted track after.
type Track struct {
	ID           uint32
	SiliconSeed  int
	TPCSeed      int
	Crossing     int16
	Charge       int
	Pos          r3.Vec
	Mom          r3.Vec
	Cov          geom.Cov6
	ChiSquare    float64
	NDF          float64
	DCA2D        float64
	DCA2DError   float64
	DCA          float64
	DCAError     float64
	DCA3DXY      float64
	DCA3DXYError float64
	DCA3DZ       float64
	DCA3DZError  float64

	// ClusterKeys are unique, silicon seed keys first.
	ClusterKeys []trkr.ClusterKey
	// States are ordered by path length.
	States []TrackState
}

// NewCandidate returns a candidate with unset DCA observables.
func NewCandidate(id uint32) *Track {
	nan := math.NaN()
	return &Track{
		ID:           id,
		SiliconSeed:  trkr.NoSeed,
		TPCSeed:      trkr.NoSeed,
		Crossing:     trkr.CrossingUnset,
		DCA2D:        nan,
		DCA2DError:   nan,
		DCA:          nan,
		DCAError:     nan,
		DCA3DXY:      nan,
		DCA3DXYError: nan,
		DCA3DZ:       nan,
		DCA3DZError:  nan,
	}
}

// PT returns the transverse momentum.
func (t *Track) PT() float64 {
	return geom.Radius(t.Mom)
}

// ClearStates removes every state.
func (t *Track) ClearStates() {
	t.States = nil
}

// InsertState adds s in path length order. A state already stored at the
// same path length is kept and s is dropped; the return value reports
// whether s was inserted.
func (t *Track) InsertState(s TrackState) bool {
	i := sort.Search(len(t.States), func(i int) bool { return t.States[i].PathLength >= s.PathLength })
	if i < len(t.States) && t.States[i].PathLength == s.PathLength {
		return false
	}
	t.States = append(t.States, TrackState{})
	copy(t.States[i+1:], t.States[i:])
	t.States[i] = s
	return true
}

// Clone returns a deep copy of t.
func (t *Track) Clone() *Track {
	out := *t
	out.ClusterKeys = append([]trkr.ClusterKey(nil), t.ClusterKeys...)
	out.States = append([]TrackState(nil), t.States...)
	return &out
}

// ClusterCounts tallies the cluster keys by subsystem.
func (t *Track) ClusterCounts() trkr.DetectorCounts {
	return trkr.CountDetectors(t.ClusterKeys)
}
