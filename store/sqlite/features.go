//go:build cgo
// +build cgo

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	gpkg "github.com/tingold/gpkg-wkb"
	"github.com/tingold/gpkg-wkb/internal/log"
)

// DefaultIDColumn is the primary key column of tables created by
// CreateFeatureTable.
const DefaultIDColumn = "fid"

var (
	ErrNoFeatureTable = errors.New("sqlite: not a feature table")
	ErrGeometryType   = errors.New("sqlite: geometry does not match the column type")
)

// FeatureTableDef describes a feature table to create.
type FeatureTableDef struct {
	Name           string
	GeometryColumn string
	Kind           gpkg.Kind // KindGeometryCollection accepts any geometry
	Dimension      gpkg.Dimension
	SRSId          int32
	Schema         gpkg.Schema
}

// FeatureTable reads and writes geometry blobs of one feature table.
type FeatureTable struct {
	db *sql.DB

	Name           string
	IDColumn       string
	GeometryColumn string
	GeometryType   string // gpkg_geometry_columns.geometry_type_name
	SRSId          int32
	HasZ, HasM     bool
	Schema         gpkg.Schema
}

var sqlTypes = map[gpkg.ValueKind]string{
	gpkg.ValueString:  "TEXT",
	gpkg.ValueInteger: "INTEGER",
	gpkg.ValueReal:    "DOUBLE",
	gpkg.ValueBoolean: "BOOLEAN",
}

// geometryTypeName returns the gpkg_geometry_columns name of k.
func geometryTypeName(k gpkg.Kind) string {
	if k == gpkg.KindGeometryCollection {
		return "GEOMETRY"
	}
	return strings.ToUpper(k.String())
}

// CreateFeatureTable creates a feature table and registers it in
// gpkg_contents and gpkg_geometry_columns.
func CreateFeatureTable(ctx context.Context, db *sql.DB, def FeatureTableDef) (*FeatureTable, error) {
	if def.GeometryColumn == "" {
		def.GeometryColumn = "geom"
	}
	if !def.Kind.Valid() || !def.Dimension.Valid() {
		return nil, &gpkg.ValidationError{Field: "geometry type", Value: gpkg.NewTypeCode(def.Kind, def.Dimension).String(), Err: gpkg.ErrUnknownType}
	}
	if err := Init(ctx, db); err != nil {
		return nil, err
	}

	cols := []string{
		quoteIdent(DefaultIDColumn) + " INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL",
		quoteIdent(def.GeometryColumn) + " BLOB",
	}
	for _, d := range def.Schema {
		cols = append(cols, quoteIdent(d.Name)+" "+sqlTypes[d.Kind])
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(def.Name), strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("create %s: %w", def.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, ?)`,
		def.Name, def.Name, def.SRSId); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m) VALUES (?, ?, ?, ?, ?, ?)`,
		def.Name, def.GeometryColumn, geometryTypeName(def.Kind), def.SRSId, def.Dimension.HasZ(), def.Dimension.HasM()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info("created feature table",
		zap.String("table", def.Name),
		zap.String("geometry", gpkg.NewTypeCode(def.Kind, def.Dimension).String()),
		zap.Int32("srs_id", def.SRSId))

	return &FeatureTable{
		db:             db,
		Name:           def.Name,
		IDColumn:       DefaultIDColumn,
		GeometryColumn: def.GeometryColumn,
		GeometryType:   geometryTypeName(def.Kind),
		SRSId:          def.SRSId,
		HasZ:           def.Dimension.HasZ(),
		HasM:           def.Dimension.HasM(),
		Schema:         append(gpkg.Schema(nil), def.Schema...),
	}, nil
}

// OpenFeatureTable loads the description of an existing feature table.
func OpenFeatureTable(ctx context.Context, db *sql.DB, name string) (*FeatureTable, error) {
	t := &FeatureTable{db: db, Name: name}

	var z, m sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT gc.column_name, gc.geometry_type_name, gc.srs_id, gc.z, gc.m
		FROM gpkg_contents c JOIN gpkg_geometry_columns gc ON c.table_name = gc.table_name
		WHERE c.data_type = 'features' AND c.table_name = ?`, name).
		Scan(&t.GeometryColumn, &t.GeometryType, &t.SRSId, &z, &m)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoFeatureTable, name)
	}
	if err != nil {
		return nil, err
	}
	// z and m are 0 (prohibited), 1 (mandatory) or 2 (optional).
	t.HasZ, t.HasM = z.Int64 != 0, m.Int64 != 0

	if err := t.loadColumns(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// loadColumns reads the primary key and the attribute columns whose
// declared type maps to a value kind. Other columns are ignored.
func (t *FeatureTable) loadColumns(ctx context.Context) error {
	rows, err := t.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(t.Name)))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return err
		}
		switch {
		case pk > 0:
			t.IDColumn = name
		case name == t.GeometryColumn:
		default:
			kind, ok := kindForSQLType(typ)
			if !ok {
				log.Debug("ignoring column", zap.String("table", t.Name), zap.String("column", name), zap.String("type", typ))
				continue
			}
			t.Schema = append(t.Schema, gpkg.AttributeDescriptor{Name: name, Kind: kind})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if t.IDColumn == "" {
		t.IDColumn = "rowid"
	}
	return nil
}

func kindForSQLType(typ string) (gpkg.ValueKind, bool) {
	typ = strings.ToUpper(typ)
	switch {
	case typ == "BOOLEAN":
		return gpkg.ValueBoolean, true
	case strings.Contains(typ, "INT"):
		return gpkg.ValueInteger, true
	case typ == "REAL" || typ == "DOUBLE" || typ == "FLOAT":
		return gpkg.ValueReal, true
	case strings.HasPrefix(typ, "TEXT"), typ == "DATE", typ == "DATETIME":
		return gpkg.ValueString, true
	}
	return 0, false
}

// accepts reports whether g may be stored in the table's geometry column.
func (t *FeatureTable) accepts(g gpkg.Geometry) bool {
	if g.Dimension().HasZ() && !t.HasZ || g.Dimension().HasM() && !t.HasM {
		return false
	}
	if t.GeometryType == "GEOMETRY" {
		return true
	}
	k, ok := gpkg.KindByName(t.GeometryType)
	return ok && k == g.Kind()
}

// WriteGeometry inserts f as a new row and returns its id. The geometry is
// stored as a GeoPackage blob in the table's spatial reference system. The
// row and the gpkg_contents bounds are written in one transaction.
func (t *FeatureTable) WriteGeometry(ctx context.Context, f gpkg.Feature, opts *gpkg.Options) (int64, error) {
	if !f.Geometry.IsNil() && !t.accepts(f.Geometry) {
		return 0, &gpkg.ValidationError{Field: t.Name + "." + t.GeometryColumn, Value: f.Geometry.Type().String(), Err: ErrGeometryType}
	}
	attrs, err := t.Schema.Normalize(f.Attributes)
	if err != nil {
		return 0, err
	}

	var blob any
	if !f.Geometry.IsNil() {
		b, err := gpkg.EncodeBlob(f.Geometry, t.SRSId, opts)
		if err != nil {
			return 0, err
		}
		blob = b
	}

	cols := []string{quoteIdent(t.GeometryColumn)}
	args := []any{blob}
	for _, a := range attrs {
		cols = append(cols, quoteIdent(a.Name))
		args = append(args, a.Value)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?%s)",
		quoteIdent(t.Name), strings.Join(cols, ", "), strings.Repeat(", ?", len(cols)-1))

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", t.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if env := f.Geometry.Envelope(); !env.IsEmpty() {
		if err := t.extendContents(ctx, tx, env); err != nil {
			return 0, fmt.Errorf("update bounds of %s: %w", t.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// extendContents grows the gpkg_contents bounds of the table to cover env.
func (t *FeatureTable) extendContents(ctx context.Context, tx *sql.Tx, env gpkg.Envelope) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE gpkg_contents SET
			min_x = MIN(COALESCE(min_x, ?1), ?1),
			min_y = MIN(COALESCE(min_y, ?2), ?2),
			max_x = MAX(COALESCE(max_x, ?3), ?3),
			max_y = MAX(COALESCE(max_y, ?4), ?4),
			last_change = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		WHERE table_name = ?5`,
		env.MinX, env.MinY, env.MaxX, env.MaxY, t.Name)
	return err
}

// Bounds returns the table extent recorded in gpkg_contents as minX,
// minY, maxX, maxY. ok is false when no bounds are recorded.
func (t *FeatureTable) Bounds(ctx context.Context) (b [4]float64, ok bool, err error) {
	var minX, minY, maxX, maxY sql.NullFloat64
	err = t.db.QueryRowContext(ctx,
		`SELECT min_x, min_y, max_x, max_y FROM gpkg_contents WHERE table_name = ?`, t.Name).
		Scan(&minX, &minY, &maxX, &maxY)
	if err != nil {
		return b, false, err
	}
	if !minX.Valid || !minY.Valid || !maxX.Valid || !maxY.Valid {
		return b, false, nil
	}
	return [4]float64{minX.Float64, minY.Float64, maxX.Float64, maxY.Float64}, true, nil
}

// Row is a feature read back from a table together with its id and the
// blob header it was stored with.
type Row struct {
	ID      int64
	Header  *gpkg.BinaryHeader
	Feature gpkg.Feature
}

// ReadGeometries reads every row with a non-null geometry in id order.
func (t *FeatureTable) ReadGeometries(ctx context.Context) ([]Row, error) {
	cols := []string{quoteIdent(t.IDColumn), quoteIdent(t.GeometryColumn)}
	for _, d := range t.Schema {
		cols = append(cols, quoteIdent(d.Name))
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s",
		strings.Join(cols, ", "), quoteIdent(t.Name), quoteIdent(t.GeometryColumn), quoteIdent(t.IDColumn))

	rows, err := t.db.QueryContext(ctx, q)
	if err != nil {
		log.Error("querying feature table", zap.String("table", t.Name), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var (
			id   int64
			blob []byte
		)
		vals := make([]any, len(t.Schema))
		dest := []any{&id, &blob}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		h, g, err := gpkg.DecodeBlob(blob)
		if err != nil {
			log.Error("decoding geometry blob", zap.String("table", t.Name), zap.Int64("id", id), zap.Error(err))
			return nil, fmt.Errorf("%s row %d: %w", t.Name, id, err)
		}
		if h.SRSId() != t.SRSId {
			log.Warn("geometry srs differs from its column",
				zap.String("table", t.Name), zap.Int64("id", id),
				zap.Int32("srs_id", h.SRSId()), zap.Int32("column_srs_id", t.SRSId))
		}

		row := Row{ID: id, Header: h, Feature: gpkg.Feature{Geometry: g}}
		for i, d := range t.Schema {
			v, err := columnValue(d.Kind, vals[i])
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %s: %w", t.Name, id, d.Name, err)
			}
			if v != nil {
				row.Feature.Attributes = append(row.Feature.Attributes, gpkg.Attribute{Name: d.Name, Value: v})
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// columnValue converts a scanned SQLite value to the canonical form of k.
// SQLite has no boolean storage class, so booleans may arrive as integers;
// the driver turns DATE and DATETIME columns into time values.
func columnValue(k gpkg.ValueKind, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		v = string(x)
	case time.Time:
		v = x.UTC().Format(time.RFC3339Nano)
	case int64:
		if k == gpkg.ValueBoolean {
			v = x != 0
		} else if k == gpkg.ValueReal {
			v = float64(x)
		}
	}
	return k.Normalize(v)
}

// FeatureTables returns the names of the feature tables registered in
// gpkg_contents.
func FeatureTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
