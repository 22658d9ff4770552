package refit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/trkr"
)

func TestBuildCandidates(t *testing.T) {
	si0 := trkr.NewClusterKey(trkr.NewHitSetKey(trkr.MVTX, 0, 0), 0)
	si1 := trkr.NewClusterKey(trkr.NewHitSetKey(trkr.INTT, 3, 0), 0)

	ev := &trkr.Event{
		SiliconSeeds: []trkr.SiliconSeed{
			{ClusterKeys: []trkr.ClusterKey{si0, si1}, Crossing: 2, Position: r3.Vec{X: 0.01, Z: 1}},
			{ClusterKeys: []trkr.ClusterKey{si0}, Crossing: trkr.CrossingUnset},
		},
		TPCSeeds: []trkr.TPCSeed{
			{ClusterKeys: []trkr.ClusterKey{tpcKey(7), tpcKey(8), si1}, QOverR: 0.01, Momentum: r3.Vec{X: 1, Y: 1}},
			{ClusterKeys: []trkr.ClusterKey{tpcKey(9)}, QOverR: -0.02, Momentum: r3.Vec{X: -2}},
		},
		Tracks: []trkr.SeedLink{
			{SiliconIndex: 0, TPCIndex: 0},
			{SiliconIndex: trkr.NoSeed, TPCIndex: 0},
			{SiliconIndex: 1, TPCIndex: 1},
			{SiliconIndex: 0, TPCIndex: 5},
			{SiliconIndex: 0, TPCIndex: 1},
		},
	}

	tracks, skipped := BuildCandidates(ev)
	require.Len(t, skipped, 3)
	for _, err := range skipped {
		assert.ErrorIs(t, err, ErrMissingSeed)
	}

	require.Equal(t, 2, tracks.Len())
	assert.Equal(t, []uint32{0, 1}, tracks.IDs())

	first, _ := tracks.Get(0)
	assert.Equal(t, int16(2), first.Crossing)
	assert.Equal(t, 1, first.Charge)
	assert.Equal(t, r3.Vec{X: 0.01, Z: 1}, first.Pos)
	assert.Equal(t, r3.Vec{X: 1, Y: 1}, first.Mom)
	assert.Equal(t, []trkr.ClusterKey{si0, si1, tpcKey(7), tpcKey(8)}, first.ClusterKeys)
	assert.Equal(t, 0, first.SiliconSeed)
	assert.Equal(t, 0, first.TPCSeed)

	second, _ := tracks.Get(1)
	assert.Equal(t, -1, second.Charge)
	assert.Equal(t, 1, second.TPCSeed)
	assert.Empty(t, second.States)
}

func TestCandidateFilter(t *testing.T) {
	tr := NewCandidate(0)
	tr.Mom = r3.Vec{X: 3, Y: 4}
	tr.Charge = -1
	tr.Crossing = 1
	tr.ClusterKeys = []trkr.ClusterKey{trkr.NewClusterKey(trkr.NewHitSetKey(trkr.MVTX, 1, 0), 0), tpcKey(7)}

	tests := []struct {
		expr string
		want bool
	}{
		{"pt > 4.5", true},
		{"pt > 5.5", false},
		{"charge < 0 && nsilicon >= 1", true},
		{"ntpc == 1 && nmicromegas == 0 && nclusters == 2", true},
		{"crossing != 1", false},
		{"abs(px) < py", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := CompileFilter(tt.expr)
			require.NoError(t, err)
			got, err := f.Match(tr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.expr, f.String())
		})
	}

	var none *CandidateFilter
	ok, err := none.Match(tr)
	require.NoError(t, err)
	assert.True(t, ok)

	f, err := CompileFilter("")
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = CompileFilter("pt +")
	assert.Error(t, err)
	_, err = CompileFilter("pt * 2")
	assert.Error(t, err)
}
