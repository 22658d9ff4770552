package sim

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

func TestDefaultLayers(t *testing.T) {
	layers := DefaultLayers()
	require.Len(t, layers, 57)

	for i, l := range layers {
		assert.Equal(t, uint8(i), l.ID)
		if i > 0 {
			assert.Greater(t, l.Radius, layers[i-1].Radius)
		}
	}
	assert.Len(t, SelectLayers(layers, trkr.TPC), 48)
	assert.Len(t, SelectLayers(layers, trkr.MVTX, trkr.INTT), 7)
	assert.Equal(t, uint8(7), SelectLayers(layers, trkr.TPC)[0].ID)
	assert.InDelta(t, 78, SelectLayers(layers, trkr.TPC)[47].Radius, 1e-9)
}

func TestAddTrack_ClustersOnLayers(t *testing.T) {
	var ev trkr.Event
	spec := TrackSpec{
		Momentum: r3.Vec{X: 1, Y: 1, Z: 0.5},
		Charge:   -1,
		Crossing: 4,
		Layers:   DefaultLayers(),
	}
	const vdrift = 0.00755
	AddTrack(&ev, spec, vdrift, nil)

	require.Len(t, ev.Clusters, 57)
	require.Len(t, ev.Tracks, 1)
	require.Len(t, ev.SiliconSeeds, 1)
	require.Len(t, ev.TPCSeeds, 1)
	assert.Len(t, ev.SiliconSeeds[0].ClusterKeys, 7)
	assert.Len(t, ev.TPCSeeds[0].ClusterKeys, 50)
	assert.Len(t, ev.Surfaces, 9)
	assert.Less(t, ev.TPCSeeds[0].QOverR, 0.0)
	assert.Equal(t, int16(4), ev.SiliconSeeds[0].Crossing)

	store := ev.ClusterStore(trkr.CorrectionSet{}, vdrift)
	dir := r3.Unit(spec.Momentum)
	layers := DefaultLayers()
	for i, c := range ev.Clusters {
		pos, err := store.GlobalPosition(c.Key, spec.Crossing)
		require.NoError(t, err)
		assert.InDelta(t, layers[i].Radius, geom.Radius(pos), 1e-9)
		// Corrected positions lie on the line.
		assert.InDelta(t, 0, r3.Norm(r3.Cross(pos, dir)), 1e-9)
	}
}

func TestAddTrack_MissesLayersOutsideAcceptance(t *testing.T) {
	var ev trkr.Event
	AddTrack(&ev, TrackSpec{Momentum: r3.Vec{Z: 1}, Layers: DefaultLayers()}, 0.00755, nil)
	assert.Empty(t, ev.Clusters)
	require.Len(t, ev.Tracks, 1)
}

func TestGenerator_Reproducible(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 42

	a := NewGenerator(cfg).Event(7)
	b := NewGenerator(cfg).Event(7)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different events (-a +b):\n%s", diff)
	}
	assert.Equal(t, 7, a.Number)
	assert.Len(t, a.Tracks, cfg.TracksPerEvt)

	cfg.Seed = 43
	c := NewGenerator(cfg).Event(7)
	assert.NotEqual(t, a.Clusters[0].Position, c.Clusters[0].Position)
}
