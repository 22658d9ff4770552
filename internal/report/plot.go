package report

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/trackrefit/internal/refit"
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// profilePlot draws state radius against path length, one series per track.
func profilePlot(title string, tracks []*refit.Track) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "path length (cm)"
	p.Y.Label.Text = "radius (cm)"
	p.Add(plotter.NewGrid())

	for i, t := range tracks {
		if i >= MaxTrackSeries {
			break
		}
		paths, radii := stateProfile(t)
		if len(paths) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(paths))
		for j := range paths {
			pts[j] = plotter.XY{X: paths[j], Y: radii[j]}
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", t.ID, err)
		}
		line.Width = vg.Points(1)
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Radius = vg.Points(1.5)
		p.Add(line, points)
		if i < 8 {
			p.Legend.Add(fmt.Sprintf("track %d", t.ID), line, points)
		}
	}
	p.Legend.Top = false
	p.Legend.Left = true
	return p, nil
}

// WritePNG writes the radius profile of tracks as PNG.
func WritePNG(w io.Writer, title string, tracks []*refit.Track) error {
	p, err := profilePlot(title, tracks)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG writes the radius profile of tracks to path; the extension picks
// the image format.
func SavePNG(path, title string, tracks []*refit.Track) error {
	p, err := profilePlot(title, tracks)
	if err != nil {
		return err
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
