package refit

import (
	"fmt"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/measure"
)

// fitTrack runs the engine once. Engine errors and panics both become
// ErrFitFailed.
func fitTrack(engine fitengine.Engine, seed fitengine.Seed, meas []measure.Measurement, pid int) (traj fitengine.Trajectory, err error) {
	defer func() {
		if r := recover(); r != nil {
			traj = nil
			err = fmt.Errorf("%w: engine panic: %v", ErrFitFailed, r)
		}
	}()

	traj, err = engine.Fit(seed, meas, pid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitFailed, err)
	}
	if traj == nil || traj.NumPoints() == 0 {
		return nil, fmt.Errorf("%w: empty trajectory", ErrFitFailed)
	}
	return traj, nil
}
