package sim

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/trackrefit/internal/geom"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

// TrackSpec describes one generated track.
type TrackSpec struct {
	Origin   r3.Vec
	Momentum r3.Vec // GeV
	Charge   int
	Crossing int16
	Layers   []Layer
}

// Config controls random event generation.
type Config struct {
	Layers        []Layer
	Seed          uint64
	TracksPerEvt  int
	PtMin, PtMax  float64 // GeV
	EtaMax        float64
	VertexSigmaXY float64 // cm
	VertexSigmaZ  float64 // cm
	Crossing      int16
	DriftVelocity float64 // cm/ns
	// Smear displaces clusters by their resolutions.
	Smear bool
}

// DefaultConfig returns a small, reproducible configuration.
func DefaultConfig() Config {
	return Config{
		Layers:        DefaultLayers(),
		Seed:          1,
		TracksPerEvt:  5,
		PtMin:         0.5,
		PtMax:         10,
		EtaMax:        1,
		VertexSigmaXY: 0.01,
		VertexSigmaZ:  5,
		DriftVelocity: 0.00755,
		Smear:         true,
	}
}

// Generator produces events. It is not safe for concurrent use.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// NewGenerator returns a Generator seeded from cfg.Seed.
func NewGenerator(cfg Config) *Generator {
	if len(cfg.Layers) == 0 {
		cfg.Layers = DefaultLayers()
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Event generates event number with cfg.TracksPerEvt random tracks.
func (g *Generator) Event(number int) trkr.Event {
	ev := trkr.Event{Number: number}
	for i := 0; i < g.cfg.TracksPerEvt; i++ {
		pt := g.cfg.PtMin + g.rng.Float64()*(g.cfg.PtMax-g.cfg.PtMin)
		phi := (2*g.rng.Float64() - 1) * math.Pi
		eta := (2*g.rng.Float64() - 1) * g.cfg.EtaMax
		charge := 1
		if g.rng.IntN(2) == 0 {
			charge = -1
		}
		spec := TrackSpec{
			Origin: r3.Vec{
				X: g.rng.NormFloat64() * g.cfg.VertexSigmaXY,
				Y: g.rng.NormFloat64() * g.cfg.VertexSigmaXY,
				Z: g.rng.NormFloat64() * g.cfg.VertexSigmaZ,
			},
			Momentum: r3.Vec{X: pt * math.Cos(phi), Y: pt * math.Sin(phi), Z: pt * math.Sinh(eta)},
			Charge:   charge,
			Crossing: g.cfg.Crossing,
			Layers:   g.cfg.Layers,
		}
		g.addTrack(&ev, spec)
	}
	return ev
}

func (g *Generator) addTrack(ev *trkr.Event, spec TrackSpec) {
	var smear func() float64
	if g.cfg.Smear {
		smear = g.rng.NormFloat64
	}
	AddTrack(ev, spec, g.cfg.DriftVelocity, smear)
}

// AddTrack appends the clusters, surfaces and seeds of a straight track to
// ev. TPC cluster z values are stored as seen in spec.Crossing so that the
// crossing correction recovers the true position. When smear is non-nil
// it draws unit normal deviates that displace each cluster by its
// resolutions.
func AddTrack(ev *trkr.Event, spec TrackSpec, driftVelocity float64, smear func() float64) {
	element := uint16(len(ev.Tracks))
	dir := r3.Unit(spec.Momentum)

	var silicon trkr.SiliconSeed
	var tpc trkr.TPCSeed
	for _, layer := range spec.Layers {
		s, ok := intersectCylinder(spec.Origin, dir, layer.Radius)
		if !ok {
			continue
		}
		pos := r3.Add(spec.Origin, r3.Scale(s, dir))
		tangent := r3.Vec{X: -math.Sin(geom.Phi(pos)), Y: math.Cos(geom.Phi(pos))}
		if smear != nil {
			pos = r3.Add(pos, r3.Scale(smear()*layer.RPhiError, tangent))
			pos.Z += smear() * layer.ZError
		}

		hitset := trkr.NewHitSetKey(layer.Detector, layer.ID, element)
		key := trkr.NewClusterKey(hitset, 0)
		raw := pos
		if layer.Detector == trkr.TPC {
			raw.Z = crossingRawZ(pos.Z, spec.Crossing, driftVelocity)
		}
		ev.Clusters = append(ev.Clusters, trkr.Cluster{
			Key:       key,
			Position:  raw,
			RPhiError: layer.RPhiError,
			ZError:    layer.ZError,
		})

		switch {
		case layer.Detector.IsSilicon():
			ev.Surfaces = append(ev.Surfaces, trkr.Surface{HitSet: hitset, U: tangent, V: geom.BeamAxis})
			silicon.ClusterKeys = append(silicon.ClusterKeys, key)
		case layer.Detector == trkr.Micromegas:
			ev.Surfaces = append(ev.Surfaces, trkr.Surface{HitSet: hitset, U: tangent, V: geom.BeamAxis})
			tpc.ClusterKeys = append(tpc.ClusterKeys, key)
		default:
			tpc.ClusterKeys = append(tpc.ClusterKeys, key)
		}
	}

	silicon.Crossing = spec.Crossing
	silicon.Position = spec.Origin
	tpc.Momentum = spec.Momentum
	pt := geom.Radius(spec.Momentum)
	if pt > 0 {
		// R[cm] = pT / (0.003 B) at B = 1.4 T
		tpc.QOverR = float64(spec.Charge) * 0.003 * 1.4 / pt
	}

	ev.Tracks = append(ev.Tracks, trkr.SeedLink{SiliconIndex: len(ev.SiliconSeeds), TPCIndex: len(ev.TPCSeeds)})
	ev.SiliconSeeds = append(ev.SiliconSeeds, silicon)
	ev.TPCSeeds = append(ev.TPCSeeds, tpc)
}

// crossingRawZ inverts trkr.CrossingCorrectedZ.
func crossingRawZ(z float64, crossing int16, driftVelocity float64) float64 {
	shift := trkr.CrossingShift(crossing, driftVelocity)
	if z < 0 {
		return z - shift
	}
	return z + shift
}

// intersectCylinder returns the positive path s at which origin + s·dir
// reaches transverse radius r.
func intersectCylinder(origin, dir r3.Vec, r float64) (float64, bool) {
	a := dir.X*dir.X + dir.Y*dir.Y
	if a == 0 {
		return 0, false
	}
	b := 2 * (origin.X*dir.X + origin.Y*dir.Y)
	c := origin.X*origin.X + origin.Y*origin.Y - r*r
	disc := b*b - 4*a*c
	if disc < 0 {
		return 0, false
	}
	s := (-b + math.Sqrt(disc)) / (2 * a)
	return s, s > 0
}
