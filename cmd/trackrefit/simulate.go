package main

import (
	"fmt"
	"os"

	"github.com/banshee-data/trackrefit/internal/sim"
	"github.com/banshee-data/trackrefit/internal/trkr"
)

// SimulateCmd implements the 'simulate' command.
type SimulateCmd struct {
	Out      string  `arg:"" help:"Output event file (.json)" type:"path"`
	Events   int     `short:"n" help:"Number of events" default:"10"`
	Tracks   int     `help:"Tracks per event" default:"5"`
	Seed     uint64  `help:"Random seed" default:"1"`
	Crossing int16   `help:"Bunch crossing of every track" default:"0"`
	PtMin    float64 `help:"Minimum transverse momentum (GeV)" default:"0.5"`
	PtMax    float64 `help:"Maximum transverse momentum (GeV)" default:"10"`
	NoSmear  bool    `help:"Place clusters exactly on the track"`
}

func (c *SimulateCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	simCfg := sim.DefaultConfig()
	simCfg.Seed = c.Seed
	simCfg.TracksPerEvt = c.Tracks
	simCfg.Crossing = c.Crossing
	simCfg.PtMin, simCfg.PtMax = c.PtMin, c.PtMax
	simCfg.Smear = !c.NoSmear
	simCfg.DriftVelocity = cfg.GetTPCDriftVelocity()

	gen := sim.NewGenerator(simCfg)
	events := make([]trkr.Event, 0, c.Events)
	for i := 0; i < c.Events; i++ {
		events = append(events, gen.Event(i))
	}

	f, err := os.Create(c.Out)
	if err != nil {
		return err
	}
	if err := trkr.WriteEvents(f, events); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(g.Out, "wrote %d events to %s\n", len(events), c.Out)
	return nil
}
