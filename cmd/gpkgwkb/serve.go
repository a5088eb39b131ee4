package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimfeld/httptreemux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gpkg "github.com/tingold/gpkg-wkb"
	"github.com/tingold/gpkg-wkb/internal/log"
	"github.com/tingold/gpkg-wkb/store/sqlite"
)

func newServeCmd(a *app) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feature tables of a GeoPackage as FlatGeobuf over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("address") {
				a.cfg.Serve.Address = address
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			handler, err := newServer(db, a.cfg.FlatGeobufOptions(""))
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              a.cfg.Serve.Address,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdown)
			}()

			log.Info("server starting",
				zap.String("address", srv.Addr),
				zap.String("database", a.cfg.Database))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address (default from config, :8080)")
	return cmd
}

// server exposes the feature tables and extensions of one GeoPackage.
type server struct {
	db         *sql.DB
	extensions *gpkg.ExtensionRegistry
	opts       gpkg.FlatGeobufOptions
}

// newServer returns the HTTP handler for db:
//
//	GET /layers          JSON list of feature table names
//	GET /layers/:table   the table encoded as FlatGeobuf
//	GET /extensions      JSON list of registered extensions
//
// The gpkg_extensions table is created here, not per request.
func newServer(db *sql.DB, opts *gpkg.FlatGeobufOptions) (http.Handler, error) {
	registry, err := extensionRegistry(db)
	if err != nil {
		return nil, err
	}
	s := &server{db: db, extensions: registry, opts: *gpkg.DefaultFlatGeobufOptions()}
	if opts != nil {
		s.opts = *opts
	}

	router := httptreemux.New()
	router.GET("/layers", s.handleLayers)
	router.GET("/layers/:table", s.handleLayer)
	router.GET("/extensions", s.handleExtensions)
	return router, nil
}

func (s *server) handleLayers(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	names, err := sqlite.FeatureTables(r.Context(), s.db)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, names)
}

func (s *server) handleLayer(w http.ResponseWriter, r *http.Request, params map[string]string) {
	table := params["table"]
	opts := s.opts
	opts.Name = table

	var buf bytes.Buffer
	n, err := exportTable(r.Context(), s.db, table, &buf, &opts)
	switch {
	case errors.Is(err, sqlite.ErrNoFeatureTable):
		http.Error(w, "unknown layer "+table, http.StatusNotFound)
		return
	case errors.Is(err, gpkg.ErrNoFeatures):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		s.fail(w, r, err)
		return
	}

	log.Debug("serving layer", zap.String("table", table), zap.Int("features", n), zap.Int("bytes", buf.Len()))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(buf.Bytes())
}

type extensionJSON struct {
	Table      *string `json:"table_name"`
	Column     *string `json:"column_name"`
	Name       string  `json:"extension_name"`
	Definition string  `json:"definition"`
	Scope      string  `json:"scope"`
}

func (s *server) handleExtensions(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	exts, err := s.extensions.Extensions()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]extensionJSON, len(exts))
	for i, e := range exts {
		out[i] = extensionJSON{
			Table:      nullPtr(e.TableName()),
			Column:     nullPtr(e.ColumnName()),
			Name:       e.Name(),
			Definition: e.Definition(),
			Scope:      string(e.Scope()),
		}
	}
	writeJSON(w, out)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_ = json.NewEncoder(w).Encode(v)
}

func nullPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
