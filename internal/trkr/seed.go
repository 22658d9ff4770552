package trkr

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// CrossingUnset marks a silicon seed whose bunch crossing could not be
// determined.
const CrossingUnset int16 = math.MaxInt16

// NoSeed marks a missing seed index in a SeedLink.
const NoSeed = -1

// SiliconSeed is a track stub found in the silicon detectors.
type SiliconSeed struct {
	ClusterKeys []ClusterKey
	Crossing    int16
	Position    r3.Vec // at the reference surface, cm
}

// TPCSeed is a track stub found in the TPC (and micromegas).
type TPCSeed struct {
	ClusterKeys []ClusterKey
	QOverR      float64 // signed curvature; its sign gives the charge
	Momentum    r3.Vec  // GeV
}

// SeedLink joins one silicon seed and one TPC seed into a track candidate.
type SeedLink struct {
	SiliconIndex int
	TPCIndex     int
}
