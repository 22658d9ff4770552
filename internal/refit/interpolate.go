package refit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/measure"
	"github.com/banshee-data/trackrefit/internal/monitoring"
)

var errNoAnchor = errors.New("no fitted state to anchor on")

// interpolator synthesises states for clusters on disabled layers from the
// forward and backward updates of the surrounding fit points.
type interpolator struct {
	traj     fitengine.Trajectory
	vertex   r3.Vec
	smoothed []*fitengine.MeasuredState // nil where unavailable
	looping  bool
	idMin    int
}

func newInterpolator(traj fitengine.Trajectory, vertex r3.Vec) *interpolator {
	ip := &interpolator{
		traj:     traj,
		vertex:   vertex,
		smoothed: make([]*fitengine.MeasuredState, traj.NumPoints()),
	}
	last := math.Inf(-1)
	for i := range ip.smoothed {
		s, err := traj.FittedState(i)
		if err != nil {
			continue
		}
		ip.smoothed[i] = &s
		r := geom.Radius(s.Pos)
		if r < last {
			ip.looping = true
		}
		last = r
	}
	return ip
}

// interpolateSkipped returns one state per skipped cluster that could be
// interpolated. skipped must be sorted by radius.
func interpolateSkipped(traj fitengine.Trajectory, skipped []measure.Skipped, vertex r3.Vec) ([]TrackState, int) {
	if len(skipped) == 0 {
		return nil, 0
	}
	ip := newInterpolator(traj, vertex)
	if ip.looping {
		monitoring.Debugf(1, "[refit] smoothed radii not monotonic, anchoring on nearest fit point")
	}

	var out []TrackState
	var failed int
	for _, sk := range skipped {
		st, err := ip.interpolate(sk)
		if err != nil {
			failed++
			monitoring.Debugf(1, "[refit] failed to interpolate disabled layer %d (cluster %s): %v", sk.Key.Layer(), sk.Key, err)
			continue
		}
		out = append(out, st)
	}
	return out, failed
}

// bracket returns the anchor point (the last fit point before the cluster)
// and the first point past it.
func (ip *interpolator) bracket(sk measure.Skipped) (anchor, next int, err error) {
	n := len(ip.smoothed)
	if ip.looping {
		nearest := -1
		best := math.Inf(1)
		for i, s := range ip.smoothed {
			if s == nil {
				continue
			}
			if d := r3.Norm(r3.Sub(sk.Position, s.Pos)); d < best {
				best, nearest = d, i
			}
		}
		if nearest < 0 {
			return 0, 0, errNoAnchor
		}
		next = nearest
		if r3.Dot(r3.Sub(sk.Position, ip.smoothed[nearest].Pos), ip.smoothed[nearest].Mom) > 0 {
			next = nearest + 1
		}
		if next > 0 {
			anchor = next - 1
		}
		return anchor, next, nil
	}

	next = ip.idMin
	for ; next < n; next++ {
		s := ip.smoothed[next]
		if s == nil {
			continue
		}
		if geom.Radius(s.Pos) > sk.Radius {
			break
		}
	}
	if next > 0 {
		ip.idMin = next - 1
	}
	return ip.idMin, next, nil
}

func (ip *interpolator) interpolate(sk measure.Skipped) (TrackState, error) {
	anchor, next, err := ip.bracket(sk)
	if err != nil {
		return TrackState{}, err
	}

	fwd, err := ip.traj.ForwardUpdate(anchor)
	if err != nil {
		return TrackState{}, fmt.Errorf("forward update %d: %w", anchor, err)
	}
	state, toCluster, err := ip.traj.PropagateToPoint(fwd, sk.Position)
	if err != nil {
		return TrackState{}, fmt.Errorf("forward extrapolation from %d: %w", anchor, err)
	}
	bwd, err := ip.traj.BackwardUpdate(anchor)
	if err != nil {
		return TrackState{}, fmt.Errorf("backward update %d: %w", anchor, err)
	}
	_, toVertex, err := ip.traj.PropagateToPoint(bwd, ip.vertex)
	if err != nil {
		return TrackState{}, fmt.Errorf("path to vertex from %d: %w", anchor, err)
	}
	pathLength := toCluster - toVertex

	if next > 0 && next < len(ip.smoothed) {
		back, err := ip.traj.BackwardUpdate(next)
		if err != nil {
			return TrackState{}, fmt.Errorf("backward update %d: %w", next, err)
		}
		onPlane, _, err := ip.traj.PropagateToPlane(back, state.Plane)
		if err != nil {
			return TrackState{}, fmt.Errorf("backward extrapolation from %d: %w", next, err)
		}
		state, err = fitengine.AverageStates(state, onPlane)
		if err != nil {
			return TrackState{}, fmt.Errorf("average: %w", err)
		}
	}

	return newTrackState(pathLength, state, sk.Key)
}
