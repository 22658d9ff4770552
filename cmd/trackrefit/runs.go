package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/trackrefit/internal/refit"
	"github.com/banshee-data/trackrefit/internal/refitdb"
)

// RunsCmd implements the 'runs' command.
type RunsCmd struct {
	DB string `help:"Results database" default:"trackrefit.db" type:"path"`
}

func (c *RunsCmd) Run(g *Global) error {
	db, err := openExisting(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Runs()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tEVENTS\tCANDIDATES\tREFIT\tREJECTED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Events, r.Candidates, r.Refit, r.Rejected, r.Failed)
	}
	return w.Flush()
}

// ReportCmd implements the 'report' command.
type ReportCmd struct {
	RunID string `arg:"" name:"run" optional:"" help:"Run id (default: most recent)"`
	DB    string `help:"Results database" default:"trackrefit.db" type:"path"`
	HTML  string `help:"HTML report path" default:"report.html" type:"path"`
	PNG   string `help:"Radius profile plot path" type:"path"`
}

func (c *ReportCmd) Run(g *Global) error {
	db, err := openExisting(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	runID := c.RunID
	if runID == "" {
		runs, err := db.Runs()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("%w: database has no runs", refitdb.ErrRunNotFound)
		}
		runID = runs[0].ID
	} else if _, err := db.GetRun(runID); err != nil {
		return err
	}

	events, err := db.Tracks(runID)
	if err != nil {
		return err
	}
	var tracks []*refit.Track
	for _, ev := range events {
		tracks = append(tracks, ev.Tracks...)
	}
	if err := writeReports(runID, tracks, c.HTML, c.PNG); err != nil {
		return err
	}
	fmt.Fprintf(g.Out, "report for run %s: %d tracks\n", runID, len(tracks))
	return nil
}

// openExisting opens a results database without creating a new one.
func openExisting(path string) (*refitdb.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db, err := refitdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
