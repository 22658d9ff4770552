// Command trackrefit refits reconstructed tracks from event files, stores
// the results in SQLite and renders reports.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/banshee-data/trackrefit/internal/config"
	"github.com/banshee-data/trackrefit/internal/monitoring"
	"github.com/banshee-data/trackrefit/internal/version"
)

// Global is passed to every command.
type Global struct {
	Out io.Writer
}

// CLI is the root command.
type CLI struct {
	Config    string           `short:"c" help:"Refit configuration file (.json, .yaml)" type:"path"`
	Verbosity int              `short:"v" type:"counter" help:"Increase log verbosity (overrides the config)"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Refit    RefitCmd    `cmd:"" help:"Refit the track candidates of event files"`
	Simulate SimulateCmd `cmd:"" help:"Generate synthetic straight-track events"`
	Migrate  MigrateCmd  `cmd:"" help:"Manage the results database schema"`
	Runs     RunsCmd     `cmd:"" help:"List stored refit runs"`
	Report   ReportCmd   `cmd:"" help:"Render the report of a stored run"`
}

// LoadConfig returns the refit defaults file with the configured file laid
// over it. Without a defaults file on disk the built-in defaults are used.
// The verbosity flag takes precedence.
func (c *CLI) LoadConfig() (*config.RefitConfig, error) {
	cfg, err := config.LoadDefaultConfig()
	if errors.Is(err, config.ErrNoDefaults) {
		monitoring.Debugf(1, "[config] %s not found, using built-in defaults", config.DefaultConfigPath)
		cfg = config.DefaultRefitConfig()
	} else if err != nil {
		return nil, err
	}
	if c.Config != "" {
		over, err := config.LoadRefitConfig(c.Config)
		if err != nil {
			return nil, err
		}
		cfg.Overlay(over)
	}
	if c.Verbosity > 0 {
		v := c.Verbosity
		cfg.Verbosity = &v
	}
	monitoring.SetVerbosity(cfg.GetVerbosity())
	return cfg, nil
}

func newParser(cli *CLI, out io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("trackrefit"),
		kong.Description("Refit tracks with a chosen engine and extract per-cluster states."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Writers(out, os.Stderr),
	)
}

func run(args []string, out io.Writer) error {
	var cli CLI
	parser, err := newParser(&cli, out)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(&Global{Out: out}, &cli)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "trackrefit: %v\n", err)
		os.Exit(1)
	}
}
