//go:build cgo
// +build cgo

package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gpkg "github.com/tingold/gpkg-wkb"
)

func openTemp(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.gpkg"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Init(context.Background(), db))
	return db
}

func TestInit(t *testing.T) {
	db := openTemp(t)

	// Idempotent.
	require.NoError(t, Init(context.Background(), db))

	var appID int64
	require.NoError(t, db.QueryRow("PRAGMA application_id").Scan(&appID))
	assert.EqualValues(t, applicationID, appID)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM gpkg_spatial_ref_sys").Scan(&n))
	assert.Equal(t, 3, n)
}

func TestExtensionStore(t *testing.T) {
	db := openTemp(t)
	store, err := NewExtensionStore(db)
	require.NoError(t, err)

	r := gpkg.NewExtensionRegistry(store)
	null := sql.NullString{}

	_, err = r.AddExtension(null, null, "rgi_myext", "http://example.com", gpkg.ScopeReadWrite)
	require.NoError(t, err)
	_, err = r.AddExtension(gpkg.Nullable("roads"), gpkg.Nullable("geom"), "gpkg_rtree_index", "Annex F.3", gpkg.ScopeWriteOnly)
	require.NoError(t, err)

	t.Run("idempotent", func(t *testing.T) {
		_, err := r.AddExtension(null, null, "rgi_myext", "http://example.com", gpkg.ScopeReadWrite)
		require.NoError(t, err)

		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM gpkg_extensions").Scan(&n))
		assert.Equal(t, 2, n)
	})

	t.Run("null keys", func(t *testing.T) {
		ok, err := r.Has(null, null, "rgi_myext")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = r.Has(gpkg.Nullable("roads"), null, "rgi_myext")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("conflict", func(t *testing.T) {
		got, err := r.AddExtension(null, null, "rgi_myext", "changed", gpkg.ScopeReadWrite)
		assert.ErrorIs(t, err, gpkg.ErrExtensionConflict)
		assert.Equal(t, "http://example.com", got.Definition())
	})

	t.Run("list", func(t *testing.T) {
		all, err := r.Extensions()
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.True(t, all[0].Equals(null, null, "rgi_myext", "http://example.com", gpkg.ScopeReadWrite))
		assert.True(t, all[1].Equals(gpkg.Nullable("roads"), gpkg.Nullable("geom"), "gpkg_rtree_index", "Annex F.3", gpkg.ScopeWriteOnly))
	})

	t.Run("invalid rows are skipped", func(t *testing.T) {
		_, err := db.Exec(`INSERT INTO gpkg_extensions VALUES (NULL, NULL, 'noauthor', 'x', 'read-write')`)
		require.NoError(t, err)

		all, err := store.List()
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestFeatureTableRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	schema := gpkg.Schema{
		{Name: "name", Kind: gpkg.ValueString},
		{Name: "lanes", Kind: gpkg.ValueInteger},
		{Name: "speed", Kind: gpkg.ValueReal},
		{Name: "oneway", Kind: gpkg.ValueBoolean},
	}
	created, err := CreateFeatureTable(ctx, db, FeatureTableDef{
		Name:      "roads",
		Kind:      gpkg.KindLineString,
		Dimension: gpkg.XYZ,
		SRSId:     4326,
		Schema:    schema,
	})
	require.NoError(t, err)

	lines := []gpkg.Feature{
		{
			Geometry: gpkg.Must(gpkg.NewLineString(gpkg.XYZ, []gpkg.Coord{{X: 0, Y: 0, Z: 1}, {X: 10, Y: 5, Z: 2}})),
			Attributes: []gpkg.Attribute{
				{Name: "name", Value: "Main St"},
				{Name: "lanes", Value: 2},
				{Name: "speed", Value: 50.0},
				{Name: "oneway", Value: true},
			},
		},
		{
			Geometry:   gpkg.Must(gpkg.NewLineString(gpkg.XYZ, []gpkg.Coord{{X: -3, Y: 1, Z: 0}, {X: 1, Y: 8, Z: 0}})),
			Attributes: []gpkg.Attribute{{Name: "name", Value: "High St"}, {Name: "oneway", Value: false}},
		},
	}
	for _, f := range lines {
		_, err := created.WriteGeometry(ctx, f, nil)
		require.NoError(t, err)
	}
	// A row without geometry is not returned.
	_, err = created.WriteGeometry(ctx, gpkg.Feature{Attributes: []gpkg.Attribute{{Name: "name", Value: "planned"}}}, nil)
	require.NoError(t, err)

	table, err := OpenFeatureTable(ctx, db, "roads")
	require.NoError(t, err)
	assert.Equal(t, "geom", table.GeometryColumn)
	assert.Equal(t, "LINESTRING", table.GeometryType)
	assert.Equal(t, DefaultIDColumn, table.IDColumn)
	assert.EqualValues(t, 4326, table.SRSId)
	assert.True(t, table.HasZ)
	assert.False(t, table.HasM)
	if diff := deep.Equal(schema, table.Schema); diff != nil {
		t.Error(diff)
	}

	rows, err := table.ReadGeometries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for i, row := range rows {
		assert.EqualValues(t, i+1, row.ID)
		assert.EqualValues(t, 4326, row.Header.SRSId())
		assert.Equal(t, gpkg.EnvelopeXYZ, row.Header.Envelope().Indicator)
		assert.True(t, lines[i].Geometry.Equal(row.Feature.Geometry))

		want, err := schema.Normalize(lines[i].Attributes)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, row.Feature.Attributes)
	}

	bounds, ok, err := table.Bounds(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, [4]float64{-3, 0, 10, 8}, bounds)
}

func TestWriteGeometryRejectsWrongType(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	table, err := CreateFeatureTable(ctx, db, FeatureTableDef{
		Name:      "sites",
		Kind:      gpkg.KindPoint,
		Dimension: gpkg.XY,
		SRSId:     4326,
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		geom gpkg.Geometry
	}{
		{"kind", gpkg.Must(gpkg.NewLineString(gpkg.XY, nil))},
		{"dimension", gpkg.Must(gpkg.NewPoint(gpkg.XYZ, gpkg.Coord{X: 1, Y: 2, Z: 3}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.WriteGeometry(ctx, gpkg.Feature{Geometry: tt.geom}, nil)
			assert.ErrorIs(t, err, ErrGeometryType)
			assert.ErrorIs(t, err, gpkg.ErrValidation)
		})
	}

	_, err = table.WriteGeometry(ctx, gpkg.Feature{
		Geometry:   gpkg.Must(gpkg.NewPoint(gpkg.XY, gpkg.Coord{X: 1, Y: 2})),
		Attributes: []gpkg.Attribute{{Name: "unknown", Value: 1}},
	}, nil)
	assert.ErrorIs(t, err, gpkg.ErrAttributeKind)
}

func TestGeometryTableAcceptsAnyKind(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	table, err := CreateFeatureTable(ctx, db, FeatureTableDef{
		Name:      "mixed",
		Kind:      gpkg.KindGeometryCollection,
		Dimension: gpkg.XYZM,
	})
	require.NoError(t, err)

	geoms := []gpkg.Geometry{
		gpkg.Must(gpkg.NewPoint(gpkg.XY, gpkg.Coord{X: 1, Y: 2})),
		gpkg.Must(gpkg.NewPolygon(gpkg.XYM, gpkg.LinearRing{{X: 0, Y: 0, M: 1}, {X: 1, Y: 0, M: 2}, {X: 0, Y: 1, M: 3}, {X: 0, Y: 0, M: 1}})),
		gpkg.Must(gpkg.NewEmptyPoint(gpkg.XYZM)),
		gpkg.Must(gpkg.NewMultiLineString(gpkg.XYZ)),
	}
	for _, g := range geoms {
		_, err := table.WriteGeometry(ctx, gpkg.Feature{Geometry: g}, &gpkg.Options{Envelope: false})
		require.NoError(t, err)
	}

	opened, err := OpenFeatureTable(ctx, db, "mixed")
	require.NoError(t, err)
	assert.Equal(t, "GEOMETRY", opened.GeometryType)

	rows, err := opened.ReadGeometries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, len(geoms))
	for i, row := range rows {
		assert.True(t, geoms[i].Equal(row.Feature.Geometry), "row %d", i)
		assert.True(t, row.Header.Envelope().IsEmpty())
	}
	assert.True(t, rows[2].Header.IsEmpty())
}

func TestOpenFeatureTableMissing(t *testing.T) {
	db := openTemp(t)
	_, err := OpenFeatureTable(context.Background(), db, "nope")
	assert.ErrorIs(t, err, ErrNoFeatureTable)
}

func TestFeatureTables(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	names, err := FeatureTables(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, name := range []string{"roads", "buildings"} {
		_, err := CreateFeatureTable(ctx, db, FeatureTableDef{Name: name, Kind: gpkg.KindPolygon, SRSId: 4326})
		require.NoError(t, err)
	}

	names, err = FeatureTables(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"buildings", "roads"}, names)
}

func TestWriteGeometryRollsBackOnBoundsFailure(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)

	table, err := CreateFeatureTable(ctx, db, FeatureTableDef{Name: "pois", Kind: gpkg.KindPoint, SRSId: 4326})
	require.NoError(t, err)

	_, err = db.Exec("DROP TABLE gpkg_contents")
	require.NoError(t, err)

	id, err := table.WriteGeometry(ctx, gpkg.Feature{Geometry: gpkg.Must(gpkg.NewPoint(gpkg.XY, gpkg.Coord{X: 1, Y: 2}))}, nil)
	require.Error(t, err)
	assert.Zero(t, id)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "pois"`).Scan(&n))
	assert.Zero(t, n)
}
