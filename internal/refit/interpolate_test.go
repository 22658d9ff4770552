package refit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/measure"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

func skippedAt(layer uint8, pos r3.Vec) measure.Skipped {
	return measure.Skipped{Key: tpcKey(layer), Position: pos, Radius: geom.Radius(pos)}
}

func xPoints(xs ...float64) []r3.Vec {
	var out []r3.Vec
	for _, x := range xs {
		out = append(out, r3.Vec{X: x})
	}
	return out
}

func TestBracket_Monotonic(t *testing.T) {
	traj := newLineStub(r3.Vec{X: 1}, xPoints(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)...)
	ip := newInterpolator(traj, geom.Origin)
	require.False(t, ip.looping)

	tests := []struct {
		radius       float64
		anchor, next int
	}{
		{4.5, 3, 4},
		{7.5, 6, 7},
		{12, 9, 10},
	}
	for _, tt := range tests {
		anchor, next, err := ip.bracket(skippedAt(30, r3.Vec{X: tt.radius}))
		require.NoError(t, err)
		assert.Equal(t, tt.anchor, anchor, "anchor for r=%v", tt.radius)
		assert.Equal(t, tt.next, next, "next for r=%v", tt.radius)
	}

	ip = newInterpolator(traj, geom.Origin)
	anchor, next, err := ip.bracket(skippedAt(30, r3.Vec{X: 0.5}))
	require.NoError(t, err)
	assert.Equal(t, 0, anchor)
	assert.Equal(t, 0, next)
}

func TestBracket_Looping(t *testing.T) {
	// Radius falls then rises along the line y = 5.
	var pts []r3.Vec
	for x := -10.0; x <= 10; x += 2 {
		pts = append(pts, r3.Vec{X: x, Y: 5})
	}
	ip := newInterpolator(newLineStub(r3.Vec{X: 1}, pts...), geom.Origin)
	require.True(t, ip.looping)

	anchor, next, err := ip.bracket(skippedAt(30, r3.Vec{X: 2.5, Y: 5}))
	require.NoError(t, err)
	assert.Equal(t, 6, anchor)
	assert.Equal(t, 7, next)

	anchor, next, err = ip.bracket(skippedAt(30, r3.Vec{X: 1.5, Y: 5}))
	require.NoError(t, err)
	assert.Equal(t, 5, anchor)
	assert.Equal(t, 6, next)
}

func TestInterpolateSkipped_OnLine(t *testing.T) {
	traj := newLineStub(r3.Vec{X: 2}, xPoints(2, 4, 6, 8)...)
	skipped := []measure.Skipped{
		skippedAt(20, r3.Vec{X: 1}),
		skippedAt(21, r3.Vec{X: 4.5}),
		skippedAt(22, r3.Vec{X: 9}),
	}

	states, failed := interpolateSkipped(traj, skipped, geom.Origin)
	assert.Equal(t, 0, failed)
	require.Len(t, states, 3)

	for i, s := range states {
		want := skipped[i].Position
		assert.Equal(t, skipped[i].Key, s.ClusterKey)
		assert.InDelta(t, want.X, s.PathLength, 1e-9)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(want, s.Pos)), 1e-9)
		assert.True(t, s.Cov.IsFinite())
	}
}

func TestInterpolateSkipped_CountsFailures(t *testing.T) {
	// Zero momentum cannot be propagated.
	traj := newLineStub(r3.Vec{}, xPoints(2, 4)...)
	states, failed := interpolateSkipped(traj, []measure.Skipped{skippedAt(20, r3.Vec{X: 3})}, geom.Origin)
	assert.Empty(t, states)
	assert.Equal(t, 1, failed)

	states, failed = interpolateSkipped(traj, nil, geom.Origin)
	assert.Nil(t, states)
	assert.Equal(t, 0, failed)
}

func TestExtractStates(t *testing.T) {
	traj := newLineStub(r3.Vec{X: 1, Y: 1}, r3.Vec{X: 3, Y: 3}, r3.Vec{X: 1, Y: 1})
	states := extractStates(traj, geom.Origin)
	require.Len(t, states, 2)
	assert.InDelta(t, 3*1.4142135623730951, states[0].PathLength, 1e-9)
	assert.InDelta(t, 1.4142135623730951, states[1].PathLength, 1e-9)
	assert.Equal(t, tpcKey(7), states[0].ClusterKey)
	assert.Equal(t, tpcKey(8), states[1].ClusterKey)
}

func TestInterpolateSkipped_BlendsForwardAndBackward(t *testing.T) {
	mom := r3.Vec{X: 1}
	traj := newLineStub(mom, xPoints(2, 4, 6, 8)...)
	traj.forward = map[int]fitengine.MeasuredState{
		0: stateWithCov(r3.Vec{X: 2, Y: 0.5}, mom, r3.Vec{X: 0.01, Y: 0.01, Z: 0.01}),
		1: stateWithCov(r3.Vec{X: 4, Y: 0.1}, mom, r3.Vec{X: 0.01, Y: 0.01, Z: 0.02}),
		3: stateWithCov(r3.Vec{X: 8, Z: 0.7}, mom, r3.Vec{X: 0.03, Y: 0.03, Z: 0.03}),
	}
	traj.backward = map[int]fitengine.MeasuredState{
		0: stateWithCov(r3.Vec{X: 2, Y: -0.5}, mom, r3.Vec{X: 0.01, Y: 0.01, Z: 0.01}),
		2: stateWithCov(r3.Vec{X: 6, Y: -0.2, Z: 0.3}, mom, r3.Vec{X: 0.04, Y: 0.04, Z: 0.02}),
	}
	skipped := []measure.Skipped{
		skippedAt(20, r3.Vec{X: 1}), // before the first point
		skippedAt(21, r3.Vec{X: 5}), // between points 1 and 2
		skippedAt(22, r3.Vec{X: 9}), // past the last point
	}

	states, failed := interpolateSkipped(traj, skipped, geom.Origin)
	assert.Equal(t, 0, failed)
	require.Len(t, states, 3)

	// No blend before the first point: the forward state alone.
	first := states[0]
	assert.InDelta(t, 1, first.Pos.X, 1e-12)
	assert.InDelta(t, 0.5, first.Pos.Y, 1e-12)
	assert.InDelta(t, 0.01, first.Cov.At(1, 1), 1e-12)
	assert.InDelta(t, 1, first.PathLength, 1e-12)

	// Between points 1 and 2 the estimates combine with inverse-covariance
	// weights: y from variances 0.01 and 0.04, z from 0.02 and 0.02.
	mid := states[1]
	wantY := (0.1/0.01 + -0.2/0.04) / (1/0.01 + 1/0.04)
	wantZ := (0/0.02 + 0.3/0.02) / (1/0.02 + 1/0.02)
	assert.InDelta(t, 5, mid.Pos.X, 1e-12)
	assert.InDelta(t, wantY, mid.Pos.Y, 1e-12)
	assert.InDelta(t, wantZ, mid.Pos.Z, 1e-12)
	assert.InDelta(t, 1/(1/0.01+1/0.04), mid.Cov.At(1, 1), 1e-12)
	assert.InDelta(t, 1/(1/0.02+1/0.02), mid.Cov.At(2, 2), 1e-12)
	assert.InDelta(t, 0, mid.Cov.At(1, 2), 1e-12)
	assert.InDelta(t, 0, mid.Cov.At(0, 0), 1e-12)
	assert.InDelta(t, 5, mid.PathLength, 1e-12)
	assert.Equal(t, mom, mid.Mom)

	// No blend past the last point.
	last := states[2]
	assert.InDelta(t, 9, last.Pos.X, 1e-12)
	assert.InDelta(t, 0.7, last.Pos.Z, 1e-12)
	assert.InDelta(t, 0.03, last.Cov.At(2, 2), 1e-12)
	assert.InDelta(t, 9, last.PathLength, 1e-12)
}

func TestExtractStates_SkipsFailedPoints(t *testing.T) {
	mom := r3.Vec{X: 1, Y: 1}
	traj := newLineStub(mom, r3.Vec{X: 1, Y: 1}, r3.Vec{X: 2, Y: 2}, r3.Vec{X: 3, Y: 3}, r3.Vec{X: 4, Y: 4}, r3.Vec{X: 5, Y: 5})
	traj.fittedErr = map[int]error{1: errors.New("no smoothed state")}
	// Zero momentum cannot be propagated back to the vertex.
	traj.states[3].Mom = r3.Vec{}

	states := extractStates(traj, geom.Origin)
	require.Len(t, states, 3)
	assert.Equal(t, []trkr.ClusterKey{tpcKey(7), tpcKey(9), tpcKey(11)},
		[]trkr.ClusterKey{states[0].ClusterKey, states[1].ClusterKey, states[2].ClusterKey})
	for i := 1; i < len(states); i++ {
		assert.Greater(t, states[i].PathLength, states[i-1].PathLength)
	}
	assert.InDelta(t, 5*1.4142135623730951, states[2].PathLength, 1e-9)
}
