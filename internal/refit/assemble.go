package refit

import (
	"math"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/monitoring"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

// placeholderState keeps the state list of an output track non-empty.
func placeholderState() TrackState {
	return TrackState{ClusterKey: trkr.InvalidClusterKey}
}

// assemble builds the output track from the candidate identity and the fit
// results. The candidate is not modified.
func assemble(cand *Track, traj fitengine.Trajectory, dca *dcaResult, states ...[]TrackState) (*Track, error) {
	out := cand.Clone()

	cov, err := geom.Cov6FromSym(dca.Vertex.Cov)
	if err != nil {
		return nil, err
	}
	out.Pos = dca.Vertex.Pos
	out.Mom = dca.Vertex.Mom
	out.Cov = cov
	out.ChiSquare = traj.ChiSquare()
	out.NDF = traj.NDF()
	out.Charge = int(math.Round(traj.Charge()))

	out.DCA2D = dca.DCA2D
	out.DCA2DError = dca.DCA2DError
	out.DCA = dca.DCA
	out.DCAError = dca.DCAError
	out.DCA3DXY = dca.XY
	out.DCA3DXYError = dca.XYError
	out.DCA3DZ = dca.Z
	out.DCA3DZError = dca.ZError

	out.ClearStates()
	out.InsertState(placeholderState())
	for _, group := range states {
		for _, s := range group {
			if !out.InsertState(s) {
				monitoring.Debugf(2, "[refit] track %d: state at path length %.6f already present, dropped cluster %s", out.ID, s.PathLength, s.ClusterKey)
			}
		}
	}
	return out, nil
}

// dumpStates logs every state of t.
func dumpStates(t *Track) {
	for _, s := range t.States {
		monitoring.Logf("[refit] track %d - pathlength: %.4f radius: %.4f phi: %.4f z: %.4f",
			t.ID, s.PathLength, s.Radius(), geom.Phi(s.Pos), s.Pos.Z)
	}
}
