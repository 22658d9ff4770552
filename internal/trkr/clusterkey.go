package trkr

import (
	"fmt"
	"math"
)

// DetectorID identifies a tracking subsystem.
type DetectorID uint8

const (
	MVTX       DetectorID = iota // monolithic active pixel vertex detector
	INTT                         // intermediate silicon strip tracker
	TPC                          // time projection chamber
	Micromegas                   // TPC outer tracker
)

func (d DetectorID) String() string {
	switch d {
	case MVTX:
		return "mvtx"
	case INTT:
		return "intt"
	case TPC:
		return "tpc"
	case Micromegas:
		return "micromegas"
	default:
		return fmt.Sprintf("detector(%d)", uint8(d))
	}
}

// IsSilicon reports whether d is one of the silicon vertex detectors.
func (d DetectorID) IsSilicon() bool {
	return d == MVTX || d == INTT
}

// DetectorCounts tallies cluster keys by subsystem.
type DetectorCounts struct {
	Silicon    int
	TPC        int
	Micromegas int
}

// Add counts key.
func (c *DetectorCounts) Add(key ClusterKey) {
	switch d := key.Detector(); {
	case d.IsSilicon():
		c.Silicon++
	case d == TPC:
		c.TPC++
	case d == Micromegas:
		c.Micromegas++
	}
}

// CountDetectors tallies keys by subsystem.
func CountDetectors(keys []ClusterKey) DetectorCounts {
	var c DetectorCounts
	for _, k := range keys {
		c.Add(k)
	}
	return c
}

// HitSetKey identifies one detector element (stave, ladder, sector, tile).
// Layout: detector id in bits 24-31, layer in bits 16-23, subsystem
// specific element bits in 0-15.
type HitSetKey uint32

const (
	hitSetDetectorShift = 24
	hitSetLayerShift    = 16
)

// NewHitSetKey packs a detector element identifier.
func NewHitSetKey(det DetectorID, layer uint8, element uint16) HitSetKey {
	return HitSetKey(uint32(det)<<hitSetDetectorShift | uint32(layer)<<hitSetLayerShift | uint32(element))
}

// Detector returns the subsystem of h.
func (h HitSetKey) Detector() DetectorID {
	return DetectorID(h >> hitSetDetectorShift)
}

// Layer returns the layer number of h.
func (h HitSetKey) Layer() int {
	return int(uint8(h >> hitSetLayerShift))
}

// Element returns the subsystem specific element bits of h.
func (h HitSetKey) Element() uint16 {
	return uint16(h)
}

// ClusterKey uniquely identifies a reconstructed cluster: the hit set key
// in the upper 32 bits and a per-hitset cluster index in the lower 32.
type ClusterKey uint64

// InvalidClusterKey marks a track state without an originating cluster.
const InvalidClusterKey ClusterKey = math.MaxUint64

// NewClusterKey packs a cluster identifier.
func NewClusterKey(h HitSetKey, index uint32) ClusterKey {
	return ClusterKey(uint64(h)<<32 | uint64(index))
}

// HitSetKey returns the detector element of k.
func (k ClusterKey) HitSetKey() HitSetKey {
	return HitSetKey(k >> 32)
}

// Detector returns the subsystem of k.
func (k ClusterKey) Detector() DetectorID {
	return k.HitSetKey().Detector()
}

// Layer returns the layer number of k.
func (k ClusterKey) Layer() int {
	return k.HitSetKey().Layer()
}

// Index returns the per-hitset cluster index of k.
func (k ClusterKey) Index() uint32 {
	return uint32(k)
}

// Valid reports whether k is a real cluster key.
func (k ClusterKey) Valid() bool {
	return k != InvalidClusterKey
}

func (k ClusterKey) String() string {
	if !k.Valid() {
		return "cluster(invalid)"
	}
	return fmt.Sprintf("%s/L%d/%04x#%d", k.Detector(), k.Layer(), k.HitSetKey().Element(), k.Index())
}
