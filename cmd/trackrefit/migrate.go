package main

import (
	"fmt"

	"github.com/banshee-data/trackrefit/internal/refitdb"
)

// MigrateCmd implements the 'migrate' command group.
type MigrateCmd struct {
	DB string `help:"Results database" default:"trackrefit.db" type:"path"`

	Up     MigrateUpCmd     `cmd:"" help:"Apply all pending migrations"`
	Down   MigrateDownCmd   `cmd:"" help:"Roll back the most recent migration"`
	To     MigrateToCmd     `cmd:"" help:"Migrate up or down to a schema version"`
	Status MigrateStatusCmd `cmd:"" help:"Show the current schema version"`
	Force  MigrateForceCmd  `cmd:"" help:"Force the schema version after a failed migration"`
}

type MigrateUpCmd struct{}

func (c *MigrateUpCmd) Run(g *Global, m *MigrateCmd) error {
	return withMigrationDB(m.DB, func(db *refitdb.DB) error {
		if err := db.MigrateUp(refitdb.Migrations()); err != nil {
			return err
		}
		fmt.Fprintln(g.Out, "all migrations applied")
		return nil
	})
}

type MigrateDownCmd struct{}

func (c *MigrateDownCmd) Run(g *Global, m *MigrateCmd) error {
	return withMigrationDB(m.DB, func(db *refitdb.DB) error {
		if err := db.MigrateDown(refitdb.Migrations()); err != nil {
			return err
		}
		fmt.Fprintln(g.Out, "rolled back one migration")
		return nil
	})
}

type MigrateToCmd struct {
	Version uint `arg:"" help:"Target schema version"`
}

func (c *MigrateToCmd) Run(g *Global, m *MigrateCmd) error {
	return withMigrationDB(m.DB, func(db *refitdb.DB) error {
		if err := db.MigrateTo(refitdb.Migrations(), c.Version); err != nil {
			return err
		}
		fmt.Fprintf(g.Out, "migrated to version %d\n", c.Version)
		return nil
	})
}

type MigrateStatusCmd struct{}

func (c *MigrateStatusCmd) Run(g *Global, m *MigrateCmd) error {
	return withMigrationDB(m.DB, func(db *refitdb.DB) error {
		version, dirty, err := db.MigrateVersion(refitdb.Migrations())
		if err != nil {
			return err
		}
		fmt.Fprintf(g.Out, "version %d dirty %v\n", version, dirty)
		return nil
	})
}

type MigrateForceCmd struct {
	Version int `arg:"" help:"Schema version to record"`
}

func (c *MigrateForceCmd) Run(g *Global, m *MigrateCmd) error {
	return withMigrationDB(m.DB, func(db *refitdb.DB) error {
		if err := db.MigrateForce(refitdb.Migrations(), c.Version); err != nil {
			return err
		}
		fmt.Fprintf(g.Out, "forced version %d\n", c.Version)
		return nil
	})
}

func withMigrationDB(path string, fn func(*refitdb.DB) error) error {
	db, err := refitdb.OpenDB(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(db)
}
