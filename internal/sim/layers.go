// Package sim generates synthetic tracker events with straight tracks
// crossing cylindrical detector layers.
package sim

import "github.com/banshee-data/trackrefit/internal/trkr"

// Layer is one cylindrical detector layer centred on the beam axis.
type Layer struct {
	ID        uint8
	Detector  trkr.DetectorID
	Radius    float64 // cm
	RPhiError float64 // cm
	ZError    float64 // cm
}

const (
	numTPCLayers   = 48
	tpcInnerRadius = 30.0
	tpcOuterRadius = 78.0
)

// DefaultLayers returns a three-layer MVTX, four-layer INTT, 48-layer TPC
// (layers 7-54) and two-layer micromegas detector.
func DefaultLayers() []Layer {
	layers := []Layer{
		{ID: 0, Detector: trkr.MVTX, Radius: 2.5, RPhiError: 5e-4, ZError: 5e-4},
		{ID: 1, Detector: trkr.MVTX, Radius: 3.2, RPhiError: 5e-4, ZError: 5e-4},
		{ID: 2, Detector: trkr.MVTX, Radius: 3.9, RPhiError: 5e-4, ZError: 5e-4},
		{ID: 3, Detector: trkr.INTT, Radius: 7.2, RPhiError: 2.3e-3, ZError: 0.5},
		{ID: 4, Detector: trkr.INTT, Radius: 7.8, RPhiError: 2.3e-3, ZError: 0.5},
		{ID: 5, Detector: trkr.INTT, Radius: 9.7, RPhiError: 2.3e-3, ZError: 0.5},
		{ID: 6, Detector: trkr.INTT, Radius: 10.3, RPhiError: 2.3e-3, ZError: 0.5},
	}
	step := (tpcOuterRadius - tpcInnerRadius) / float64(numTPCLayers-1)
	for i := 0; i < numTPCLayers; i++ {
		layers = append(layers, Layer{
			ID:        uint8(7 + i),
			Detector:  trkr.TPC,
			Radius:    tpcInnerRadius + step*float64(i),
			RPhiError: 0.015,
			ZError:    0.05,
		})
	}
	return append(layers,
		Layer{ID: 55, Detector: trkr.Micromegas, Radius: 82.2, RPhiError: 0.02, ZError: 0.02},
		Layer{ID: 56, Detector: trkr.Micromegas, Radius: 82.6, RPhiError: 0.02, ZError: 0.02},
	)
}

// SelectLayers returns the layers of the given detectors, in input order.
func SelectLayers(layers []Layer, detectors ...trkr.DetectorID) []Layer {
	var out []Layer
	for _, l := range layers {
		for _, d := range detectors {
			if l.Detector == d {
				out = append(out, l)
				break
			}
		}
	}
	return out
}
