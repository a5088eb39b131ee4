package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/spf13/cobra"

	"github.com/tingold/gpkg-wkb/internal/config"
	"github.com/tingold/gpkg-wkb/internal/log"
	"github.com/tingold/gpkg-wkb/store/sqlite"
)

var errNoDatabase = errors.New("no geopackage given: use --db or set database in the config")

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	database   string

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "gpkgwkb",
		Short:        "Work with GeoPackage geometry blobs",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a TOML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.database, "db", "", "path to the GeoPackage")

	root.AddCommand(
		newInspectCmd(a),
		newExportCmd(a),
		newExtensionCmd(a),
		newServeCmd(a),
	)
	return root
}

// load reads the configuration and applies flag overrides.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, ".env")
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("db") {
		cfg.Database = a.database
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return log.Init(cfg.LogLevel)
}

// openDB opens and initializes the configured GeoPackage.
func (a *app) openDB(ctx context.Context) (*sql.DB, error) {
	if a.cfg.Database == "" {
		return nil, errNoDatabase
	}
	db, err := sqlite.Open(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := sqlite.Init(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
