// Package report renders refit results as an HTML dashboard and PNG plots.
package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trackrefit/internal/refit"
)

// MaxTrackSeries caps the number of per-track series in one chart.
const MaxTrackSeries = 20

// stateProfile returns (path length, radius) for every state of t that
// carries a cluster.
func stateProfile(t *refit.Track) (paths, radii []float64) {
	for _, s := range t.States {
		if !s.ClusterKey.Valid() {
			continue
		}
		paths = append(paths, s.PathLength)
		radii = append(radii, s.Radius())
	}
	return paths, radii
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// WriteHTML renders the radius profile and DCA charts of tracks as a single
// page.
func WriteHTML(w io.Writer, title string, tracks []*refit.Track) error {
	profile := charts.NewScatter()
	profile.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1000px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "State radius vs path length", Subtitle: fmt.Sprintf("%s tracks=%d", title, len(tracks))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "path length (cm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "radius (cm)", NameLocation: "middle", NameGap: 30}),
	)
	for i, t := range tracks {
		if i >= MaxTrackSeries {
			break
		}
		paths, radii := stateProfile(t)
		data := make([]opts.ScatterData, 0, len(paths))
		for j := range paths {
			data = append(data, opts.ScatterData{Value: []interface{}{paths[j], radii[j]}})
		}
		profile.AddSeries(fmt.Sprintf("track %d", t.ID), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	}

	ids := make([]string, 0, len(tracks))
	dca2d := make([]opts.BarData, 0, len(tracks))
	dcaXY := make([]opts.BarData, 0, len(tracks))
	dcaZ := make([]opts.BarData, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, fmt.Sprintf("%d", t.ID))
		dca2d = append(dca2d, barValue(t.DCA2D))
		dcaXY = append(dcaXY, barValue(t.DCA3DXY))
		dcaZ = append(dcaZ, barValue(t.DCA3DZ))
	}
	dca := charts.NewBar()
	dca.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1000px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Distance of closest approach", Subtitle: "cm; missing bars are unavailable"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	dca.SetXAxis(ids).
		AddSeries("dca 2d", dca2d).
		AddSeries("dca 3d xy", dcaXY).
		AddSeries("dca 3d z", dcaZ)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(profile, dca)
	return page.Render(w)
}

// barValue drops non-finite values, which echarts cannot serialise.
func barValue(f float64) opts.BarData {
	if !finite(f) {
		return opts.BarData{Value: "-"}
	}
	return opts.BarData{Value: f}
}
