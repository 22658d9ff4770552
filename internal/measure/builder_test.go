package measure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/monitoring"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

type fixture struct {
	store    *trkr.MapClusterStore
	geometry trkr.MapGeometry
}

func newFixture() *fixture {
	return &fixture{
		store:    trkr.NewMapClusterStore(trkr.CorrectionSet{}, 0.00755),
		geometry: trkr.MapGeometry{},
	}
}

// add places a cluster of det/layer at radius r along phi, with a surface
// for non-TPC detectors.
func (f *fixture) add(det trkr.DetectorID, layer uint8, r, phi, z float64) trkr.ClusterKey {
	return f.addAt(det, layer, r3.Vec{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z})
}

// addAt places a cluster of det/layer at pos.
func (f *fixture) addAt(det trkr.DetectorID, layer uint8, pos r3.Vec) trkr.ClusterKey {
	h := trkr.NewHitSetKey(det, layer, 0)
	key := trkr.NewClusterKey(h, 0)
	phi := math.Atan2(pos.Y, pos.X)
	f.store.Add(trkr.Cluster{Key: key, Position: pos, RPhiError: 0.01, ZError: 0.02})
	if det != trkr.TPC {
		f.geometry.Add(trkr.Surface{HitSet: h, U: r3.Vec{X: -math.Sin(phi), Y: math.Cos(phi)}, V: r3.Vec{Z: 1}})
	}
	return key
}

func TestBuild_SortsByRadius(t *testing.T) {
	f := newFixture()
	k30 := f.add(trkr.TPC, 30, 55, 0.3, 4)
	k0 := f.add(trkr.MVTX, 0, 2.5, 0.3, 0.2)
	k8 := f.add(trkr.TPC, 8, 31, 0.3, 2)
	k4 := f.add(trkr.INTT, 4, 8, 0.3, 0.6)
	k55 := f.add(trkr.Micromegas, 55, 80, 0.3, 6)

	b := NewBuilder(f.store, f.geometry, Options{})
	res, err := b.Build([]trkr.ClusterKey{k30, k0, k8, k0, k4, k55}, 0)
	require.NoError(t, err)

	require.Len(t, res.Measurements, 5)
	var keys []trkr.ClusterKey
	for i, m := range res.Measurements {
		keys = append(keys, m.Key)
		if i > 0 {
			assert.GreaterOrEqual(t, m.Radius(), res.Measurements[i-1].Radius())
		}
	}
	assert.Equal(t, []trkr.ClusterKey{k0, k4, k8, k30, k55}, keys)
	assert.Equal(t, trkr.DetectorCounts{Silicon: 2, TPC: 2, Micromegas: 1}, res.Counts)
	assert.Empty(t, res.Skipped)

	assert.Equal(t, KindPlanar, res.Measurements[0].Kind)
	assert.Equal(t, KindProjective, res.Measurements[2].Kind)
	assert.Equal(t, KindPlanar, res.Measurements[4].Kind)
}

func TestBuild_StableForEqualRadius(t *testing.T) {
	f := newFixture()
	a := f.addAt(trkr.TPC, 20, r3.Vec{X: 45})
	b := f.addAt(trkr.TPC, 21, r3.Vec{Y: 45})

	res, err := NewBuilder(f.store, f.geometry, Options{}).Build([]trkr.ClusterKey{b, a}, 0)
	require.NoError(t, err)
	require.Len(t, res.Measurements, 2)
	assert.Equal(t, b, res.Measurements[0].Key)
	assert.Equal(t, a, res.Measurements[1].Key)
}

func TestBuild_DisabledLayers(t *testing.T) {
	f := newFixture()
	var keys []trkr.ClusterKey
	for l := uint8(7); l < 12; l++ {
		keys = append(keys, f.add(trkr.TPC, l, 30+float64(l), 0.5, 1))
	}

	b := NewBuilder(f.store, f.geometry, Options{DisabledLayers: []int{9, 11}})
	res, err := b.Build(keys, 0)
	require.NoError(t, err)

	require.Len(t, res.Measurements, 3)
	for _, m := range res.Measurements {
		assert.NotEqual(t, 9, m.Layer())
		assert.NotEqual(t, 11, m.Layer())
	}
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, 9, res.Skipped[0].Key.Layer())
	assert.Equal(t, 11, res.Skipped[1].Key.Layer())
	assert.Less(t, res.Skipped[0].Radius, res.Skipped[1].Radius)
	assert.True(t, b.LayerDisabled(9))
	assert.False(t, b.LayerDisabled(10))
}

func TestBuild_MissingClusterIsSkipped(t *testing.T) {
	var logged []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, format) })
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	f := newFixture()
	k := f.add(trkr.TPC, 10, 40, 0, 0)
	ghost := trkr.NewClusterKey(trkr.NewHitSetKey(trkr.TPC, 12, 0), 9)

	res, err := NewBuilder(f.store, f.geometry, Options{}).Build([]trkr.ClusterKey{ghost, k}, 0)
	require.NoError(t, err)
	require.Len(t, res.Measurements, 1)
	assert.Equal(t, k, res.Measurements[0].Key)
	assert.NotEmpty(t, logged)
}

func TestBuild_Rejections(t *testing.T) {
	f := newFixture()
	tpc := f.add(trkr.TPC, 20, 45, 0, 0)
	mm := f.add(trkr.Micromegas, 55, 80, 0, 0)
	sil := f.add(trkr.MVTX, 1, 3, 0, 0)

	noSurface := trkr.NewClusterKey(trkr.NewHitSetKey(trkr.INTT, 5, 3), 0)
	f.store.Add(trkr.Cluster{Key: noSurface, Position: r3.Vec{X: 9}, RPhiError: 0.01, ZError: 0.01})

	tests := []struct {
		name    string
		keys    []trkr.ClusterKey
		opts    Options
		wantErr error
	}{
		{"silicon mode without silicon", []trkr.ClusterKey{tpc, mm}, Options{FitSiliconMMs: true, UseMicromegas: true}, ErrNoSiliconClusters},
		{"silicon mode without micromegas", []trkr.ClusterKey{sil, tpc}, Options{FitSiliconMMs: true, UseMicromegas: true}, ErrNoMicromegasClusters},
		{"missing geometry", []trkr.ClusterKey{noSurface, tpc}, Options{}, ErrMissingGeometry},
		{"everything disabled", []trkr.ClusterKey{tpc}, Options{DisabledLayers: []int{20}}, ErrNoMeasurements},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder(f.store, f.geometry, tt.opts).Build(tt.keys, 0)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Micromegas are optional when not in use.
	res, err := NewBuilder(f.store, f.geometry, Options{FitSiliconMMs: true}).Build([]trkr.ClusterKey{sil, tpc}, 0)
	require.NoError(t, err)
	assert.Len(t, res.Measurements, 2)
}

func TestNewProjective_Basis(t *testing.T) {
	pos := r3.Vec{X: 30, Y: 30, Z: 12}
	m := NewProjective(trkr.NewClusterKey(trkr.NewHitSetKey(trkr.TPC, 7, 0), 0), pos, 0.02, 0.05)

	n := m.Normal()
	radial := r3.Unit(r3.Vec{X: 1, Y: 1})
	assert.InDelta(t, radial.X, n.X, 1e-12)
	assert.InDelta(t, radial.Y, n.Y, 1e-12)
	assert.InDelta(t, 0, n.Z, 1e-12)
	assert.InDelta(t, 0, r3.Dot(m.U, m.V), 1e-12)
	assert.Equal(t, r3.Vec{Z: 1}, m.V)
	assert.Equal(t, "projective", m.Kind.String())
}
