package trkr

// Event is everything the refit reads for one event.
type Event struct {
	Number       int
	Clusters     []Cluster
	Surfaces     []Surface
	SiliconSeeds []SiliconSeed
	TPCSeeds     []TPCSeed
	Tracks       []SeedLink
}

// ClusterStore builds a MapClusterStore holding the event's clusters.
func (e *Event) ClusterStore(corrections CorrectionSet, driftVelocity float64) *MapClusterStore {
	store := NewMapClusterStore(corrections, driftVelocity)
	for _, c := range e.Clusters {
		store.Add(c)
	}
	return store
}

// Geometry builds a MapGeometry holding the event's surfaces.
func (e *Event) Geometry() MapGeometry {
	g := make(MapGeometry, len(e.Surfaces))
	for _, s := range e.Surfaces {
		g.Add(s)
	}
	return g
}

// SiliconSeed returns the silicon seed at index i, if any.
func (e *Event) SiliconSeed(i int) (*SiliconSeed, bool) {
	if i < 0 || i >= len(e.SiliconSeeds) {
		return nil, false
	}
	return &e.SiliconSeeds[i], true
}

// TPCSeed returns the TPC seed at index i, if any.
func (e *Event) TPCSeed(i int) (*TPCSeed, bool) {
	if i < 0 || i >= len(e.TPCSeeds) {
		return nil, false
	}
	return &e.TPCSeeds[i], true
}
