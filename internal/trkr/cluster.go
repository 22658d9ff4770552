package trkr

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Correction names one layer of TPC distortion correction applied on top
// of a cluster's raw global position.
type Correction uint8

const (
	CorrectionModuleEdge Correction = iota
	CorrectionStatic
	CorrectionAverage
	CorrectionFluctuation
)

var correctionNames = map[Correction]string{
	CorrectionModuleEdge:  "module_edge",
	CorrectionStatic:      "static",
	CorrectionAverage:     "average",
	CorrectionFluctuation: "fluctuation",
}

func (c Correction) String() string {
	if name, ok := correctionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("correction(%d)", uint8(c))
}

// ParseCorrection maps a correction name back to its value.
func ParseCorrection(name string) (Correction, error) {
	for c, n := range correctionNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown correction %q", name)
}

// CorrectionSet records which corrections are applied.
type CorrectionSet struct {
	ModuleEdge  bool
	Static      bool
	Average     bool
	Fluctuation bool
}

// AllCorrections enables every correction.
func AllCorrections() CorrectionSet {
	return CorrectionSet{ModuleEdge: true, Static: true, Average: true, Fluctuation: true}
}

// Enabled reports whether c is part of the set.
func (s CorrectionSet) Enabled(c Correction) bool {
	switch c {
	case CorrectionModuleEdge:
		return s.ModuleEdge
	case CorrectionStatic:
		return s.Static
	case CorrectionAverage:
		return s.Average
	case CorrectionFluctuation:
		return s.Fluctuation
	}
	return false
}

// Cluster is one reconstructed spatial measurement.
type Cluster struct {
	Key       ClusterKey
	Position  r3.Vec // raw global position, cm
	RPhiError float64
	ZError    float64

	// Corrections holds per-cluster distortion offsets (cm) that are added
	// to Position when enabled.
	Corrections map[Correction]r3.Vec
}

// ClusterStore serves clusters and their corrected global positions.
type ClusterStore interface {
	// Cluster returns the cluster stored under key.
	Cluster(key ClusterKey) (*Cluster, bool)
	// GlobalPosition returns the distortion corrected position of the
	// cluster for the given bunch crossing.
	GlobalPosition(key ClusterKey, crossing int16) (r3.Vec, error)
}

// ErrClusterNotFound is returned for keys missing from a store.
var ErrClusterNotFound = errors.New("cluster not found")

// BunchSpacingNs is the time between bunch crossings.
const BunchSpacingNs = 106.0

// MapClusterStore is an in-memory ClusterStore for one event.
type MapClusterStore struct {
	clusters      map[ClusterKey]*Cluster
	corrections   CorrectionSet
	driftVelocity float64 // cm/ns
}

// NewMapClusterStore creates an empty store applying the given corrections.
// driftVelocity (cm/ns) converts the crossing offset of TPC clusters into a
// z shift.
func NewMapClusterStore(corrections CorrectionSet, driftVelocity float64) *MapClusterStore {
	return &MapClusterStore{
		clusters:      make(map[ClusterKey]*Cluster),
		corrections:   corrections,
		driftVelocity: driftVelocity,
	}
}

// Add stores c, replacing any cluster with the same key.
func (s *MapClusterStore) Add(c Cluster) {
	s.clusters[c.Key] = &c
}

// Len returns the number of stored clusters.
func (s *MapClusterStore) Len() int {
	return len(s.clusters)
}

// Cluster implements ClusterStore.
func (s *MapClusterStore) Cluster(key ClusterKey) (*Cluster, bool) {
	c, ok := s.clusters[key]
	return c, ok
}

// GlobalPosition implements ClusterStore. Enabled corrections are summed in
// a fixed order, then TPC clusters are shifted towards the central membrane
// by the drift distance of the crossing offset.
func (s *MapClusterStore) GlobalPosition(key ClusterKey, crossing int16) (r3.Vec, error) {
	c, ok := s.clusters[key]
	if !ok {
		return r3.Vec{}, fmt.Errorf("%w: %s", ErrClusterNotFound, key)
	}

	pos := c.Position
	for _, corr := range []Correction{CorrectionModuleEdge, CorrectionStatic, CorrectionAverage, CorrectionFluctuation} {
		if !s.corrections.Enabled(corr) {
			continue
		}
		if offset, ok := c.Corrections[corr]; ok {
			pos = r3.Add(pos, offset)
		}
	}

	if key.Detector() == TPC {
		pos.Z = CrossingCorrectedZ(pos.Z, crossing, s.driftVelocity)
	}

	return pos, nil
}

// CrossingShift is the drift distance (cm) accumulated over crossing bunch
// spacings. It is zero for an unset crossing.
func CrossingShift(crossing int16, driftVelocity float64) float64 {
	if crossing == CrossingUnset {
		return 0
	}
	return float64(crossing) * BunchSpacingNs * driftVelocity
}

// CrossingCorrectedZ moves a TPC z coordinate towards the central membrane
// by the crossing drift distance, on the side of the membrane it was
// measured on.
func CrossingCorrectedZ(z float64, crossing int16, driftVelocity float64) float64 {
	shift := CrossingShift(crossing, driftVelocity)
	if z < 0 {
		return z + shift
	}
	return z - shift
}
