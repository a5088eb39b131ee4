//go:build cgo
// +build cgo

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	gpkg "github.com/tingold/gpkg-wkb"
	"github.com/tingold/gpkg-wkb/internal/log"
)

const extensionsTable = `CREATE TABLE IF NOT EXISTS gpkg_extensions (
	table_name TEXT,
	column_name TEXT,
	extension_name TEXT NOT NULL,
	definition TEXT NOT NULL,
	scope TEXT NOT NULL,
	CONSTRAINT ge_tce UNIQUE (table_name, column_name, extension_name)
)`

// ExtensionStore keeps extension entries in the gpkg_extensions table.
type ExtensionStore struct {
	db *sql.DB
}

var _ gpkg.ExtensionStore = (*ExtensionStore)(nil)

// NewExtensionStore returns a store over db, creating gpkg_extensions if
// it does not exist.
func NewExtensionStore(db *sql.DB) (*ExtensionStore, error) {
	if _, err := db.Exec(extensionsTable); err != nil {
		return nil, fmt.Errorf("create gpkg_extensions: %w", err)
	}
	return &ExtensionStore{db: db}, nil
}

// Lookup returns the row for key. NULL table and column names match with
// IS, so a package-wide entry is found by a key with invalid NullStrings.
func (s *ExtensionStore) Lookup(key gpkg.ExtensionKey) (gpkg.Extension, bool, error) {
	row := s.db.QueryRow(`
		SELECT table_name, column_name, extension_name, definition, scope
		FROM gpkg_extensions
		WHERE table_name IS ? AND column_name IS ? AND extension_name = ?`,
		key.Table, key.Column, key.Name)

	e, err := scanExtension(row)
	if errors.Is(err, sql.ErrNoRows) {
		return gpkg.Extension{}, false, nil
	}
	if err != nil {
		return gpkg.Extension{}, false, err
	}
	return e, true, nil
}

// Insert adds a row for e.
func (s *ExtensionStore) Insert(e gpkg.Extension) error {
	_, err := s.db.Exec(`
		INSERT INTO gpkg_extensions (table_name, column_name, extension_name, definition, scope)
		VALUES (?, ?, ?, ?, ?)`,
		e.TableName(), e.ColumnName(), e.Name(), e.Definition(), string(e.Scope()))
	if err != nil {
		return fmt.Errorf("insert extension %s: %w", e.Name(), err)
	}
	return nil
}

// List returns every valid row in insertion order. Rows that do not pass
// extension validation are logged and skipped.
func (s *ExtensionStore) List() ([]gpkg.Extension, error) {
	rows, err := s.db.Query(`
		SELECT table_name, column_name, extension_name, definition, scope
		FROM gpkg_extensions
		ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gpkg.Extension
	for rows.Next() {
		e, err := scanExtension(rows)
		var ve *gpkg.ValidationError
		if errors.As(err, &ve) {
			log.Warn("skipping invalid gpkg_extensions row", zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExtension(row scanner) (gpkg.Extension, error) {
	var (
		table, column           sql.NullString
		name, definition, scope string
	)
	if err := row.Scan(&table, &column, &name, &definition, &scope); err != nil {
		return gpkg.Extension{}, err
	}
	return gpkg.NewExtension(table, column, name, definition, gpkg.Scope(scope))
}
