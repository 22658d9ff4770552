package refit

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/monitoring"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

func newTrackState(pathLength float64, s fitengine.MeasuredState, key trkr.ClusterKey) (TrackState, error) {
	cov, err := geom.Cov6FromSym(s.Cov)
	if err != nil {
		return TrackState{}, err
	}
	return TrackState{PathLength: pathLength, Pos: s.Pos, Mom: s.Mom, Cov: cov, ClusterKey: key}, nil
}

// extractStates returns the smoothed state of every fit point. The path
// length is measured from the vertex, so it is minus the signed path from
// the point back to the vertex. Points that fail are logged and skipped.
func extractStates(traj fitengine.Trajectory, vertex r3.Vec) []TrackState {
	out := make([]TrackState, 0, traj.NumPoints())
	for i := 0; i < traj.NumPoints(); i++ {
		st, err := extractState(traj, i, vertex)
		if err != nil {
			monitoring.Debugf(1, "[refit] WARNING: state extraction failed at point %d: %v", i, err)
			continue
		}
		out = append(out, st)
	}
	return out
}

func extractState(traj fitengine.Trajectory, i int, vertex r3.Vec) (TrackState, error) {
	s, err := traj.FittedState(i)
	if err != nil {
		return TrackState{}, err
	}
	_, path, err := traj.PropagateToPoint(s, vertex)
	if err != nil {
		return TrackState{}, fmt.Errorf("path to vertex: %w", err)
	}
	return newTrackState(-path, s, traj.ClusterKey(i))
}
