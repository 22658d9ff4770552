package lineengine

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/fitengine"
	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/measure"
)

// numParams is the size of (x1, x2, t1, t2).
const numParams = 4

// DefaultPriorScale inflates the seed covariance when used as a prior.
const DefaultPriorScale = 1000.0

const (
	maxIterations = 25
	// convergence is the largest parameter step (cm or slope) accepted as
	// converged.
	convergence = 1e-10
	// minSeedAlignment is the smallest cosine between the seed and the
	// reference direction for the seed direction to enter the prior.
	minSeedAlignment = 0.1
)

var (
	// ErrNoMeasurements is returned by Fit for an empty measurement list.
	ErrNoMeasurements = errors.New("no measurements to fit")
	// ErrBadResolution is returned for non-positive or non-finite sigmas.
	ErrBadResolution = errors.New("invalid measurement resolution")
	// ErrUnknownParticle is returned for PDG codes without a known charge.
	ErrUnknownParticle = errors.New("unknown particle hypothesis")
	// ErrNotConverged is returned when the iteration does not settle.
	ErrNotConverged = errors.New("fit did not converge")
)

// Engine fits straight lines. The zero value uses DefaultPriorScale.
type Engine struct {
	// PriorScale multiplies the seed covariance diagonal.
	PriorScale float64
}

var _ fitengine.Engine = (*Engine)(nil)

// New returns an Engine with the given prior scale.
func New(priorScale float64) *Engine {
	return &Engine{PriorScale: priorScale}
}

func (e *Engine) priorScale() float64 {
	if e.PriorScale > 0 {
		return e.PriorScale
	}
	return DefaultPriorScale
}

// frame is the reference line of a fit. A parameter vector p describes the
// line through origin + p0·e1 + p1·e2 along dir + p2·e1 + p3·e2.
type frame struct {
	origin r3.Vec
	dir    r3.Vec
	e1, e2 r3.Vec
}

func (f frame) line(p mat.Vector) (a, d r3.Vec) {
	a = r3.Add(f.origin, r3.Add(r3.Scale(p.AtVec(0), f.e1), r3.Scale(p.AtVec(1), f.e2)))
	d = r3.Add(f.dir, r3.Add(r3.Scale(p.AtVec(2), f.e1), r3.Scale(p.AtVec(3), f.e2)))
	return a, d
}

type prior struct {
	info *mat.SymDense // inverse prior covariance
	mean *mat.VecDense
}

// Fit implements fitengine.Engine.
func (e *Engine) Fit(seed fitengine.Seed, measurements []measure.Measurement, pid int) (fitengine.Trajectory, error) {
	if len(measurements) == 0 {
		return nil, ErrNoMeasurements
	}
	charge, ok := fitengine.ChargeOf(pid)
	if !ok {
		return nil, fmt.Errorf("%w: pid %d", ErrUnknownParticle, pid)
	}
	if !geom.IsFinite(seed.Pos) || !geom.IsFinite(seed.Mom) || seed.Cov == nil || seed.Cov.SymmetricDim() != fitengine.StateDim {
		return nil, fmt.Errorf("%w: invalid seed", fitengine.ErrNonFinite)
	}
	pmag := r3.Norm(seed.Mom)
	if pmag == 0 {
		return nil, fmt.Errorf("%w: zero seed momentum", fitengine.ErrNonFinite)
	}
	for _, m := range measurements {
		if !validSigma(m.SigmaU) || !validSigma(m.SigmaV) {
			return nil, fmt.Errorf("%w: cluster %s", ErrBadResolution, m.Key)
		}
		if !geom.IsFinite(m.Position) {
			return nil, fmt.Errorf("%w: cluster %s position", fitengine.ErrNonFinite, m.Key)
		}
	}

	seedDir := r3.Scale(1/pmag, seed.Mom)
	f := referenceFrame(measurements, seedDir)
	pr, err := e.seedPrior(f, seed, seedDir, pmag)
	if err != nil {
		return nil, err
	}

	tr := &trajectory{
		measurements: measurements,
		frame:        f,
		prior:        pr,
		pmag:         pmag,
		charge:       charge,
		forward:      make([]*fitengine.MeasuredState, len(measurements)),
		backward:     make([]*fitengine.MeasuredState, len(measurements)),
	}

	smoothed, err := tr.solve(0, len(measurements), mat.NewVecDense(numParams, nil))
	if err != nil {
		return nil, err
	}
	tr.smoothed = smoothed

	tr.fitted = make([]fitengine.MeasuredState, len(measurements))
	for i := range measurements {
		s, err := tr.stateAt(smoothed, i)
		if err != nil {
			return nil, fmt.Errorf("fitted state %d: %w", i, err)
		}
		tr.fitted[i] = s
	}

	chi2, err := tr.chiSquare(smoothed.params)
	if err != nil {
		return nil, err
	}
	tr.chi2 = chi2
	tr.ndf = float64(2*len(measurements) - numParams)

	return tr, nil
}

func validSigma(s float64) bool {
	return s > 0 && !math.IsInf(s, 0)
}

// referenceFrame starts the fit from the principal axis of the measured
// positions, oriented from the first to the last measurement. With fewer
// than two distinct positions the seed direction is used.
func referenceFrame(measurements []measure.Measurement, seedDir r3.Vec) frame {
	var centroid r3.Vec
	for _, m := range measurements {
		centroid = r3.Add(centroid, m.Position)
	}
	centroid = r3.Scale(1/float64(len(measurements)), centroid)

	dir := seedDir
	scatter := mat.NewSymDense(3, nil)
	for _, m := range measurements {
		d := r3.Sub(m.Position, centroid)
		v := mat.NewVecDense(3, []float64{d.X, d.Y, d.Z})
		scatter.SymRankOne(scatter, 1, v)
	}
	var eig mat.EigenSym
	if eig.Factorize(scatter, true) {
		values := eig.Values(nil)
		if values[2] > 0 {
			var vecs mat.Dense
			eig.VectorsTo(&vecs)
			dir = r3.Unit(r3.Vec{X: vecs.At(0, 2), Y: vecs.At(1, 2), Z: vecs.At(2, 2)})
			span := r3.Sub(measurements[len(measurements)-1].Position, measurements[0].Position)
			along := r3.Dot(dir, span)
			if along < 0 || (along == 0 && r3.Dot(dir, seedDir) < 0) {
				dir = r3.Scale(-1, dir)
			}
		}
	}

	plane := fitengine.PlaneFromNormal(centroid, dir)
	return frame{origin: centroid, dir: dir, e1: plane.U, e2: plane.V}
}

// seedPrior builds the prior on the frame parameters from the diagonal of
// the seed covariance. The seed line crosses the frame plane at the offset
// mean; the slope mean follows the seed direction, with the momentum variance
// scaled by 1/|p|².
func (e *Engine) seedPrior(f frame, seed fitengine.Seed, seedDir r3.Vec, pmag float64) (prior, error) {
	scale := e.priorScale()
	axes := [2]r3.Vec{f.e1, f.e2}

	offset := r3.Sub(seed.Pos, f.origin)
	along := r3.Dot(offset, f.dir)
	var slopes [2]float64
	if c := r3.Dot(seedDir, f.dir); c > minSeedAlignment {
		for k, ax := range axes {
			slopes[k] = r3.Dot(seedDir, ax) / c
		}
	}

	info := mat.NewSymDense(numParams, nil)
	mean := mat.NewVecDense(numParams, nil)
	for k, ax := range axes {
		w := [3]float64{ax.X * ax.X, ax.Y * ax.Y, ax.Z * ax.Z}
		var posVar, dirVar float64
		for j := 0; j < 3; j++ {
			posVar += w[j] * seed.Cov.At(j, j)
			dirVar += w[j] * seed.Cov.At(j+3, j+3)
		}
		posVar *= scale
		dirVar *= scale / (pmag * pmag)
		if posVar <= 0 || dirVar <= 0 {
			return prior{}, fmt.Errorf("%w: seed covariance diagonal must be positive", fitengine.ErrSingular)
		}
		info.SetSym(k, k, 1/posVar)
		info.SetSym(k+2, k+2, 1/dirVar)
		mean.SetVec(k, r3.Dot(offset, ax)-along*slopes[k])
		mean.SetVec(k+2, slopes[k])
	}
	return prior{info: info, mean: mean}, nil
}
