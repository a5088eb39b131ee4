package main

import (
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gpkg "github.com/tingold/gpkg-wkb"
	"github.com/tingold/gpkg-wkb/internal/log"
	"github.com/tingold/gpkg-wkb/store/sqlite"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		output string
		srsID  int32
	)

	cmd := &cobra.Command{
		Use:   "export <table>",
		Short: "Export a feature table as FlatGeobuf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			opts := a.cfg.FlatGeobufOptions(args[0])
			if cmd.Flags().Changed("srs-id") {
				opts.SRSId = srsID
			}
			n, err := exportTable(ctx, db, args[0], w, opts)
			if err != nil {
				return err
			}
			log.Info("exported feature table",
				zap.String("table", args[0]),
				zap.Int("features", n),
				zap.String("output", output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().Int32Var(&srsID, "srs-id", 0, "EPSG code written to the header (default the table's srs)")
	return cmd
}

// exportTable writes every feature of table to w as FlatGeobuf and returns
// the number of features written. The table's srs id is written to the
// header unless opts sets a non-zero one.
func exportTable(ctx context.Context, db *sql.DB, table string, w io.Writer, opts *gpkg.FlatGeobufOptions) (int, error) {
	ft, err := sqlite.OpenFeatureTable(ctx, db, table)
	if err != nil {
		return 0, err
	}
	rows, err := ft.ReadGeometries(ctx)
	if err != nil {
		return 0, err
	}

	features := make([]gpkg.Feature, len(rows))
	for i, row := range rows {
		features[i] = row.Feature
	}

	o := gpkg.DefaultFlatGeobufOptions()
	if opts != nil {
		*o = *opts
	}
	if o.Name == "" {
		o.Name = table
	}
	if o.SRSId == 0 {
		o.SRSId = ft.SRSId
	}
	if err := gpkg.WriteFlatGeobuf(w, features, ft.Schema, o); err != nil {
		return 0, err
	}
	return len(features), nil
}
