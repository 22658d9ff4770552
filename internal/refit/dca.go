package refit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/monitoring"
)

// dcaResult holds the vertex state and the distance of closest approach
// observables of one trajectory.
type dcaResult struct {
	Vertex fitengine.MeasuredState

	DCA2D, DCA2DError float64
	DCA, DCAError     float64

	XY, XYError float64
	Z, ZError   float64
	// RotationErr is set when the xy/z split is unavailable.
	RotationErr error
}

// computeDCA extrapolates traj to the beam line and to the vertex. Either
// extrapolation failing is ErrExtrapolation. The 3D DCA is split into its
// transverse and longitudinal parts by rotating the vertex position
// residual into the frame of the momentum; when that rotation fails the
// split is NaN and the result is still returned.
func computeDCA(traj fitengine.Trajectory, vertex r3.Vec, vertexCov mat.Symmetric) (*dcaResult, error) {
	beam, _, err := traj.ExtrapolateToLine(vertex, geom.BeamAxis)
	if err != nil {
		return nil, fmt.Errorf("%w: beam line: %v", ErrExtrapolation, err)
	}
	res := &dcaResult{}

	// u is along momentum × beam at the point of closest approach.
	u, _ := beam.LocalUV()
	uu, _, _ := beam.LocalCov()
	res.DCA2D = u
	res.DCA2DError = math.Sqrt(uu)

	vtx, _, err := traj.ExtrapolateToPoint(vertex)
	if err != nil {
		return nil, fmt.Errorf("%w: vertex: %v", ErrExtrapolation, err)
	}
	res.Vertex = vtx

	u, v := vtx.LocalUV()
	uu, vv, _ := vtx.LocalCov()
	res.DCA = math.Hypot(u, v)
	res.DCAError = math.Sqrt(uu + vv)

	res.XY, res.XYError, res.Z, res.ZError = math.NaN(), math.NaN(), math.NaN(), math.NaN()

	var covIn mat.SymDense
	covIn.AddSym(vtx.Cov.SliceSym(0, 3), vertexCov)
	pos, cov, err := geom.XYZToRZ(vtx.Mom, r3.Sub(vtx.Pos, vertex), &covIn)
	if err != nil {
		res.RotationErr = err
		monitoring.Logf("[refit] WARNING: DCA calculation failed: %v", err)
		return res, nil
	}
	res.XY = pos.X
	res.Z = pos.Z
	res.XYError = math.Sqrt(cov.At(0, 0))
	res.ZError = math.Sqrt(cov.At(2, 2))
	return res, nil
}
