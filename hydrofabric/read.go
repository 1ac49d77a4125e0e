package hydrofabric

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// Layer names used in GeoPackage hydrofabrics.
const (
	LayerDivides = "divides"
	LayerNexus   = "nexus"
)

// Read loads a hydrofabric file. GeoPackage files (.gpkg) are read from the
// given layer; any other file is parsed as GeoJSON and layer is ignored. A
// non-empty ids list restricts the result to those features.
func Read(ctx context.Context, path, layer string, ids []string, opts ...Option) (*Collection, error) {
	if strings.EqualFold(filepath.Ext(path), ".gpkg") {
		return ReadGeoPackage(ctx, path, layer, ids, opts...)
	}
	return ReadGeoJSON(path, ids, opts...)
}

// ReadGeoJSON parses a GeoJSON feature collection. A feature's id is its
// GeoJSON id, or its "id" property when the GeoJSON id is absent.
func ReadGeoJSON(path string, ids []string, opts ...Option) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedInput, path, err)
	}

	c := NewCollection(opts...)
	for i, gf := range fc.Features {
		id := geojsonID(gf)
		if id == "" {
			return nil, fmt.Errorf("%w: feature %d in %s", ErrMissingID, i, path)
		}
		props := map[string]any(gf.Properties)
		if err := c.Add(NewFeature(id, props)); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	c.log.V(1).Info("Read geojson", "path", path, "features", c.Len())

	if len(ids) > 0 {
		return c.Subset(ids), nil
	}
	return c, nil
}

func geojsonID(f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return fmt.Sprintf("%v", id)
	}
	if v, ok := f.Properties["id"].(string); ok {
		return v
	}
	return ""
}
