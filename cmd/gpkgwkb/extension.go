package main

import (
	"database/sql"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	gpkg "github.com/tingold/gpkg-wkb"
	"github.com/tingold/gpkg-wkb/store/sqlite"
)

func newExtensionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extension",
		Short: "Manage the extensions registered in a GeoPackage",
	}
	cmd.AddCommand(newExtensionAddCmd(a), newExtensionListCmd(a))
	return cmd
}

func newExtensionAddCmd(a *app) *cobra.Command {
	var table, column, definition, scope string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register an extension for the GeoPackage, a table or a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := gpkg.ParseScope(scope)
			if err != nil {
				return err
			}
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			registry, err := extensionRegistry(db)
			if err != nil {
				return err
			}
			ext, err := registry.AddExtension(nullable(cmd, "table", table), nullable(cmd, "column", column), args[0], definition, s)
			if err != nil {
				return err
			}
			return printExtensions(cmd.OutOrStdout(), []gpkg.Extension{ext})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&table, "table", "", "table the extension applies to")
	flags.StringVar(&column, "column", "", "column the extension applies to")
	flags.StringVar(&definition, "definition", "", "URL or reference to the extension definition")
	flags.StringVar(&scope, "scope", string(gpkg.ScopeReadWrite), "read-write or write-only")
	_ = cmd.MarkFlagRequired("definition")
	return cmd
}

func newExtensionListCmd(a *app) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			registry, err := extensionRegistry(db)
			if err != nil {
				return err
			}
			var exts []gpkg.Extension
			if table != "" {
				exts, err = registry.TableExtensions(table)
			} else {
				exts, err = registry.Extensions()
			}
			if err != nil {
				return err
			}
			return printExtensions(cmd.OutOrStdout(), exts)
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "only list extensions of this table")
	return cmd
}

func extensionRegistry(db *sql.DB) (*gpkg.ExtensionRegistry, error) {
	store, err := sqlite.NewExtensionStore(db)
	if err != nil {
		return nil, err
	}
	return gpkg.NewExtensionRegistry(store), nil
}

// nullable maps an unset flag to SQL NULL.
func nullable(cmd *cobra.Command, flag, value string) sql.NullString {
	if !cmd.Flags().Changed(flag) {
		return sql.NullString{}
	}
	return gpkg.Nullable(value)
}

func printExtensions(w io.Writer, exts []gpkg.Extension) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tCOLUMN\tNAME\tSCOPE\tDEFINITION")
	for _, e := range exts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			nullString(e.TableName()), nullString(e.ColumnName()), e.Name(), e.Scope(), e.Definition())
	}
	return tw.Flush()
}

func nullString(s sql.NullString) string {
	if !s.Valid {
		return "-"
	}
	return s.String
}
