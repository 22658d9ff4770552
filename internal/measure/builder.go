package measure

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/monitoring"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

var (
	// ErrNoSiliconClusters rejects a silicon+MM fit without silicon clusters.
	ErrNoSiliconClusters = errors.New("no silicon clusters")
	// ErrNoMicromegasClusters rejects a silicon+MM fit without micromegas
	// clusters when micromegas are in use.
	ErrNoMicromegasClusters = errors.New("no micromegas clusters")
	// ErrMissingGeometry is returned when a planar cluster has no surface.
	ErrMissingGeometry = errors.New("missing surface geometry")
	// ErrNoMeasurements is returned when every cluster was skipped.
	ErrNoMeasurements = errors.New("no measurements")
)

// Options controls which clusters become measurements.
type Options struct {
	// DisabledLayers are excluded from the fit and reported as skipped.
	DisabledLayers []int
	// FitSiliconMMs requires silicon (and, with UseMicromegas, micromegas)
	// clusters on every track.
	FitSiliconMMs bool
	UseMicromegas bool
}

// Skipped is a cluster on a disabled layer, kept for interpolation.
type Skipped struct {
	Key      trkr.ClusterKey
	Position r3.Vec
	Radius   float64
}

// Result is the output of Builder.Build.
type Result struct {
	// Measurements are sorted by radius, ties in input order.
	Measurements []Measurement
	// Skipped holds the disabled-layer clusters sorted by radius.
	Skipped []Skipped

	// Counts tallies the unique input keys, found in the store or not.
	Counts trkr.DetectorCounts
}

// Builder creates measurements from cluster keys.
type Builder struct {
	clusters trkr.ClusterStore
	geometry trkr.Geometry
	disabled map[int]struct{}
	opts     Options
}

// NewBuilder returns a Builder reading clusters and surfaces from the given
// services.
func NewBuilder(clusters trkr.ClusterStore, geometry trkr.Geometry, opts Options) *Builder {
	disabled := make(map[int]struct{}, len(opts.DisabledLayers))
	for _, l := range opts.DisabledLayers {
		disabled[l] = struct{}{}
	}
	return &Builder{clusters: clusters, geometry: geometry, disabled: disabled, opts: opts}
}

// LayerDisabled reports whether layer is excluded from the fit.
func (b *Builder) LayerDisabled(layer int) bool {
	_, ok := b.disabled[layer]
	return ok
}

type located struct {
	key     trkr.ClusterKey
	cluster *trkr.Cluster
	pos     r3.Vec
	radius  float64
}

// Build converts keys into measurements using positions corrected for
// crossing. Duplicate keys are dropped. Clusters missing from the store are
// logged and skipped.
func (b *Builder) Build(keys []trkr.ClusterKey, crossing int16) (*Result, error) {
	res := &Result{}

	seen := make(map[trkr.ClusterKey]struct{}, len(keys))
	points := make([]located, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		res.Counts.Add(key)

		cluster, ok := b.clusters.Cluster(key)
		if !ok {
			monitoring.Logf("[measure] cluster %s not found, skipping", key)
			continue
		}
		pos, err := b.clusters.GlobalPosition(key, crossing)
		if err != nil {
			monitoring.Logf("[measure] no global position for cluster %s: %v", key, err)
			continue
		}
		r := geom.Radius(pos)
		monitoring.Debugf(10, "[measure] layer %d cluster %s radius %.4f", key.Layer(), key, r)
		points = append(points, located{key: key, cluster: cluster, pos: pos, radius: r})
	}

	if b.opts.FitSiliconMMs {
		if res.Counts.Silicon == 0 {
			return nil, ErrNoSiliconClusters
		}
		if b.opts.UseMicromegas && res.Counts.Micromegas == 0 {
			return nil, ErrNoMicromegasClusters
		}
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].radius < points[j].radius })

	for _, p := range points {
		if b.LayerDisabled(p.key.Layer()) {
			res.Skipped = append(res.Skipped, Skipped{Key: p.key, Position: p.pos, Radius: p.radius})
			continue
		}

		m, err := b.measurement(p)
		if err != nil {
			return nil, err
		}
		res.Measurements = append(res.Measurements, m)
	}

	if len(res.Measurements) == 0 {
		return nil, ErrNoMeasurements
	}
	return res, nil
}

func (b *Builder) measurement(p located) (Measurement, error) {
	switch det := p.key.Detector(); {
	case det.IsSilicon() || det == trkr.Micromegas:
		u, v, err := b.geometry.SurfaceBasis(p.key)
		if err != nil {
			return Measurement{}, fmt.Errorf("%w: %s: %v", ErrMissingGeometry, p.key, err)
		}
		return NewPlanar(p.key, p.pos, u, v, p.cluster.RPhiError, p.cluster.ZError), nil
	case det == trkr.TPC:
		if p.radius == 0 {
			return Measurement{}, fmt.Errorf("tpc cluster %s on the beam axis", p.key)
		}
		return NewProjective(p.key, p.pos, p.cluster.RPhiError, p.cluster.ZError), nil
	default:
		return Measurement{}, fmt.Errorf("unsupported detector %s for cluster %s", det, p.key)
	}
}
