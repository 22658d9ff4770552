package main

import (
	"encoding/json"
	"fmt"
	"os"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/trackrefit/internal/fitengine/lineengine"
	"github.com/banshee-data/trackrefit/internal/monitoring"
	"github.com/banshee-data/trackrefit/internal/refit"
	"github.com/banshee-data/trackrefit/internal/refitdb"
	"github.com/banshee-data/trackrefit/internal/report"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

// RefitCmd implements the 'refit' command.
type RefitCmd struct {
	Events  []string `arg:"" help:"Event files (.json)" type:"existingfile"`
	DB      string   `help:"Results database" default:"trackrefit.db" type:"path"`
	HTML    string   `help:"Write an HTML report to this path" type:"path"`
	PNG     string   `help:"Write a radius profile plot to this path" type:"path"`
	Metrics string   `help:"Write Prometheus metrics in text format to this path" type:"path"`
}

func (c *RefitCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg := prom.NewRegistry()
	refitter, err := refit.NewRefitter(
		refit.OptionsFromConfig(cfg),
		lineengine.New(cfg.GetEnginePriorScale()),
		refit.NewPrometheusRecorder(reg),
	)
	if err != nil {
		return err
	}

	db, err := refitdb.Open(c.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	run, err := db.StartRun(string(cfgJSON))
	if err != nil {
		return err
	}

	var total refit.EventSummary
	var refitted []*refit.Track
	for _, path := range c.Events {
		events, err := trkr.LoadEvents(path)
		if err != nil {
			return err
		}
		for i := range events {
			tracks, summary := refitter.ProcessEvent(&events[i])
			if err := db.RecordEvent(run.ID, summary, tracks); err != nil {
				return fmt.Errorf("record event %d: %w", summary.Event, err)
			}
			monitoring.Debugf(1, "[refit] event %d: %d candidates, %d refit, %d rejected, %d failed",
				summary.Event, summary.Candidates, summary.Refit, summary.Rejected, summary.Failed)

			total.Candidates += summary.Candidates
			total.Refit += summary.Refit
			total.Rejected += summary.Rejected
			total.Failed += summary.Failed
			total.VertexCandidates += summary.VertexCandidates
			refitted = append(refitted, tracks.Tracks()...)
		}
	}
	if err := db.FinishRun(run.ID); err != nil {
		return err
	}

	if err := writeReports(run.ID, refitted, c.HTML, c.PNG); err != nil {
		return err
	}
	if c.Metrics != "" {
		if err := prom.WriteToTextfile(c.Metrics, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	fmt.Fprintf(g.Out, "run %s: %d candidates, %d refit, %d rejected, %d failed, %d vertex candidates\n",
		run.ID, total.Candidates, total.Refit, total.Rejected, total.Failed, total.VertexCandidates)
	return nil
}

func writeReports(title string, tracks []*refit.Track, htmlPath, pngPath string) error {
	if htmlPath != "" {
		f, err := os.Create(htmlPath)
		if err != nil {
			return err
		}
		if err := report.WriteHTML(f, title, tracks); err != nil {
			f.Close()
			return fmt.Errorf("write html report: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if pngPath != "" {
		if err := report.SavePNG(pngPath, title, tracks); err != nil {
			return err
		}
	}
	return nil
}
