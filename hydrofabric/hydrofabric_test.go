package hydrofabric

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/go-logr/logr/testr"
)

const catchmentsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "cat-1", "properties": {"toid": "nex-1", "id": "wb-1", "area": 12.5}, "geometry": null},
    {"type": "Feature", "id": "cat-2", "properties": {"toid": "nex-1", "id": "wb-2"}, "geometry": null},
    {"type": "Feature", "properties": {"id": "cat-3", "toid": "nex-2"}, "geometry": null}
  ]
}`

const nexusGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "nex-1", "properties": {"toid": "wb-3"}, "geometry": {"type": "Point", "coordinates": [1, 2]}},
    {"type": "Feature", "id": "nex-2", "properties": {"toid": ""}, "geometry": {"type": "Point", "coordinates": [3, 4]}}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadGeoJSON(t *testing.T) {
	path := writeFile(t, "catchments.geojson", catchmentsGeoJSON)

	t.Run("all features", func(t *testing.T) {
		c, err := Read(context.Background(), path, LayerDivides, nil, WithLogger(testr.New(t)))
		assert.NoError(t, err)
		assert.Equal(t, []string{"cat-1", "cat-2", "cat-3"}, c.IDs())

		f, ok := c.Get("cat-1")
		assert.True(t, ok)
		toid, ok := f.Property("toid")
		assert.True(t, ok)
		assert.Equal(t, "nex-1", toid)
		area, ok := f.Property("area")
		assert.True(t, ok)
		assert.Equal(t, "12.5", area)
		assert.True(t, f.IsCatchment())
	})

	t.Run("subset", func(t *testing.T) {
		c, err := ReadGeoJSON(path, []string{"cat-3", "cat-1", "cat-9"})
		assert.NoError(t, err)
		assert.Equal(t, []string{"cat-3", "cat-1"}, c.IDs())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadGeoJSON(filepath.Join(t.TempDir(), "missing.geojson"), nil)
		assert.Error(t, err)
	})

	t.Run("not geojson", func(t *testing.T) {
		_, err := ReadGeoJSON(writeFile(t, "bad.geojson", "not json"), nil)
		assert.True(t, errors.Is(err, ErrUnsupportedInput))
	})

	t.Run("duplicate ids", func(t *testing.T) {
		dup := `{"type":"FeatureCollection","features":[
			{"type":"Feature","id":"cat-1","properties":{},"geometry":null},
			{"type":"Feature","id":"cat-1","properties":{},"geometry":null}]}`
		_, err := ReadGeoJSON(writeFile(t, "dup.geojson", dup), nil)
		assert.True(t, errors.Is(err, ErrDuplicateFeature))
	})
}

func TestLinkFromProperty(t *testing.T) {
	cats, err := ReadGeoJSON(writeFile(t, "catchments.geojson", catchmentsGeoJSON), nil)
	assert.NoError(t, err)
	nexus, err := ReadGeoJSON(writeFile(t, "nexus.geojson", nexusGeoJSON), nil)
	assert.NoError(t, err)

	// nex-1 points at wb-3, which is not in the collection.
	cats.UpdateIDs("id")
	nexus.UpdateIDs("id")
	assert.NoError(t, cats.Merge(nexus))

	linked := cats.LinkFromProperty("toid")
	assert.Equal(t, 3, linked)

	nex1, ok := cats.Get("nex-1")
	assert.True(t, ok)
	assert.Equal(t, []string{"cat-1", "cat-2"}, nex1.OriginationIDs())
	assert.Equal(t, 0, len(nex1.DestinationIDs()))

	byAlias, ok := cats.Get("wb-2")
	assert.True(t, ok)
	assert.Equal(t, "cat-2", byAlias.ID())
	assert.Equal(t, []string{"nex-1"}, byAlias.DestinationIDs())

	// Linking twice does not duplicate relations.
	cats.LinkFromProperty("toid")
	assert.Equal(t, []string{"cat-1", "cat-2"}, nex1.OriginationIDs())
}

func TestLinkThroughAlias(t *testing.T) {
	c := NewCollection()
	assert.NoError(t, c.Add(NewFeature("cat-3", map[string]any{"id": "wb-3", "toid": "nex-3"})))
	assert.NoError(t, c.Add(NewFeature("nex-1", map[string]any{"toid": "wb-3"})))
	assert.NoError(t, c.Add(NewFeature("nex-3", nil)))

	c.UpdateIDs("id")
	assert.Equal(t, 2, c.LinkFromProperty("toid"))

	nex1, _ := c.Get("nex-1")
	assert.Equal(t, []string{"cat-3"}, nex1.DestinationIDs())
}

func TestCollection(t *testing.T) {
	c := NewCollection()
	assert.True(t, errors.Is(c.Add(NewFeature("", nil)), ErrMissingID))
	assert.NoError(t, c.Add(NewFeature("cat-1", nil)))
	assert.True(t, errors.Is(c.Add(NewFeature("cat-1", nil)), ErrDuplicateFeature))
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("cat-2")
	assert.False(t, ok)

	sub := c.Subset([]string{"cat-1", "cat-1"})
	assert.Equal(t, 1, sub.Len())
}

func TestSplitIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"cat-1", []string{"cat-1"}},
		{"cat-1,cat-2", []string{"cat-1", "cat-2"}},
		{" cat-1 , ,cat-2,", []string{"cat-1", "cat-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitIDs(tt.in))
		})
	}
}

func createGeoPackage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fabric.gpkg")
	db, err := sql.Open("sqlite3", path)
	assert.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE gpkg_geometry_columns (table_name TEXT, column_name TEXT)`,
		`INSERT INTO gpkg_geometry_columns VALUES ('divides', 'geom'), ('nexus', 'geom')`,
		`CREATE TABLE divides (id TEXT, toid TEXT, areasqkm REAL, geom BLOB)`,
		`INSERT INTO divides VALUES ('cat-1', 'nex-1', 1.5, x'00'), ('cat-2', 'nex-1', 2, x'00'), ('cat-3', 'nex-2', 3.25, x'00')`,
		`CREATE TABLE nexus (id TEXT, toid TEXT, geom BLOB)`,
		`INSERT INTO nexus VALUES ('nex-1', 'cat-3', x'00'), ('nex-2', NULL, x'00')`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		assert.NoError(t, err)
	}
	return path
}

func TestReadGeoPackage(t *testing.T) {
	path := createGeoPackage(t)
	ctx := context.Background()

	t.Run("divides", func(t *testing.T) {
		c, err := Read(ctx, path, LayerDivides, nil, WithLogger(testr.New(t)))
		assert.NoError(t, err)
		assert.Equal(t, []string{"cat-1", "cat-2", "cat-3"}, c.IDs())

		f, _ := c.Get("cat-3")
		area, ok := f.Property("areasqkm")
		assert.True(t, ok)
		assert.Equal(t, "3.25", area)
		_, ok = f.Property("geom")
		assert.False(t, ok)
	})

	t.Run("subset", func(t *testing.T) {
		c, err := ReadGeoPackage(ctx, path, LayerDivides, []string{"cat-2", "cat-3"})
		assert.NoError(t, err)
		assert.Equal(t, []string{"cat-2", "cat-3"}, c.IDs())
	})

	t.Run("nexus with null link", func(t *testing.T) {
		c, err := ReadGeoPackage(ctx, path, LayerNexus, nil)
		assert.NoError(t, err)
		assert.Equal(t, 2, c.Len())
		f, _ := c.Get("nex-2")
		_, ok := f.Property("toid")
		assert.False(t, ok)
	})

	t.Run("missing layer", func(t *testing.T) {
		_, err := ReadGeoPackage(ctx, path, "flowpaths", nil)
		assert.True(t, errors.Is(err, ErrLayerNotFound))
		assert.Contains(t, err.Error(), "divides")
	})
}
