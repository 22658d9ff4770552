package refit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/trkr"
)

func tpcKey(layer uint8) trkr.ClusterKey {
	return trkr.NewClusterKey(trkr.NewHitSetKey(trkr.TPC, layer, 0), 0)
}

func TestInsertState_OrdersByPathLength(t *testing.T) {
	tr := NewCandidate(1)
	for _, p := range []float64{30, 0, 10, 50, 20} {
		assert.True(t, tr.InsertState(TrackState{PathLength: p}))
	}
	var got []float64
	for _, s := range tr.States {
		got = append(got, s.PathLength)
	}
	assert.Equal(t, []float64{0, 10, 20, 30, 50}, got)

	// An existing state wins over a new one at the same path length.
	assert.False(t, tr.InsertState(TrackState{PathLength: 20, ClusterKey: tpcKey(9)}))
	assert.Len(t, tr.States, 5)
	assert.Equal(t, trkr.ClusterKey(0), tr.States[2].ClusterKey)

	tr.ClearStates()
	assert.Empty(t, tr.States)
}

func TestTrack_CloneAndCounts(t *testing.T) {
	tr := NewCandidate(3)
	assert.True(t, math.IsNaN(tr.DCA))
	assert.Equal(t, trkr.CrossingUnset, tr.Crossing)

	tr.Mom = r3.Vec{X: 3, Y: 4, Z: 12}
	tr.ClusterKeys = []trkr.ClusterKey{
		trkr.NewClusterKey(trkr.NewHitSetKey(trkr.MVTX, 0, 0), 0),
		trkr.NewClusterKey(trkr.NewHitSetKey(trkr.INTT, 4, 0), 0),
		tpcKey(7), tpcKey(8), tpcKey(9),
		trkr.NewClusterKey(trkr.NewHitSetKey(trkr.Micromegas, 55, 0), 0),
	}
	tr.InsertState(TrackState{PathLength: 1})
	assert.Equal(t, 5.0, tr.PT())

	assert.Equal(t, trkr.DetectorCounts{Silicon: 2, TPC: 3, Micromegas: 1}, tr.ClusterCounts())

	c := tr.Clone()
	c.ClusterKeys[0] = tpcKey(40)
	c.States[0].PathLength = 99
	assert.Equal(t, trkr.MVTX, tr.ClusterKeys[0].Detector())
	assert.Equal(t, 1.0, tr.States[0].PathLength)
}

func TestTrackMap(t *testing.T) {
	m := NewTrackMap()
	for _, id := range []uint32{5, 1, 3} {
		m.Insert(NewCandidate(id))
	}
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []uint32{1, 3, 5}, m.IDs())

	// Erase and replace while iterating a snapshot.
	for _, id := range m.IDs() {
		switch id {
		case 1:
			m.Erase(id)
		case 3:
			repl := NewCandidate(77)
			repl.Charge = 1
			require.NoError(t, m.Replace(id, repl))
		}
	}
	assert.Equal(t, []uint32{3, 5}, m.IDs())
	got, ok := m.Get(3)
	require.True(t, ok)
	assert.Equal(t, uint32(3), got.ID)
	assert.Equal(t, 1, got.Charge)

	_, ok = m.Get(1)
	assert.False(t, ok)
	assert.Error(t, m.Replace(1, NewCandidate(1)))
	m.Erase(1)

	// Re-inserting an id replaces in place.
	m.Insert(NewCandidate(5))
	assert.Equal(t, 2, m.Len())
	require.Len(t, m.Tracks(), 2)
	assert.Equal(t, uint32(5), m.Tracks()[1].ID)
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err      error
		want     Outcome
		rejected bool
	}{
		{nil, OutcomeRefit, false},
		{ErrBelowMinPT, OutcomeBelowMinPT, true},
		{ErrNoSiliconClusters, OutcomeNoSilicon, true},
		{ErrMissingGeometry, OutcomeMissingGeometry, true},
		{ErrFitFailed, OutcomeFitFailed, false},
		{ErrExtrapolation, OutcomeExtrapolation, false},
		{assert.AnError, OutcomeError, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			o := OutcomeOf(tt.err)
			assert.Equal(t, tt.want, o)
			assert.Equal(t, tt.rejected, o.Rejected())
		})
	}
}
