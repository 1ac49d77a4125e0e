package hydrofabric

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// idColumns are tried in order to find the feature id column of a layer.
var idColumns = []string{"id", "divide_id", "nex_id"}

// ReadGeoPackage reads the features of one layer of a GeoPackage. Geometry
// columns are skipped; every other column becomes a property.
func ReadGeoPackage(ctx context.Context, path, layer string, ids []string, opts ...Option) (*Collection, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open geopackage: %w", err)
	}
	defer db.Close()

	tables, err := listTables(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("list geopackage layers: %w", err)
	}
	if !slices.Contains(tables, layer) {
		return nil, fmt.Errorf("%w: %q in %s, available layers: %s",
			ErrLayerNotFound, layer, path, strings.Join(tables, ", "))
	}

	geometry := geometryColumns(ctx, db, layer)

	columns, err := layerColumns(ctx, db, layer)
	if err != nil {
		return nil, err
	}
	idColumn := ""
	for _, candidate := range idColumns {
		if slices.Contains(columns, candidate) {
			idColumn = candidate
			break
		}
	}
	if idColumn == "" {
		return nil, fmt.Errorf("%w: layer %q has none of the columns %v", ErrMissingID, layer, idColumns)
	}

	query := "SELECT * FROM " + quoteIdent(layer)
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		query += " WHERE " + quoteIdent(idColumn) + " IN (?" + strings.Repeat(", ?", len(ids)-1) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query layer %q: %w", layer, err)
	}
	defer rows.Close()

	c := NewCollection(opts...)
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan layer %q: %w", layer, err)
		}

		props := make(map[string]any, len(columns))
		for i, col := range columns {
			if slices.Contains(geometry, col) {
				continue
			}
			switch v := values[i].(type) {
			case []byte:
				props[col] = string(v)
			default:
				props[col] = v
			}
		}

		f := NewFeature("", props)
		f.id, _ = f.Property(idColumn)
		if err := c.Add(f); err != nil {
			return nil, fmt.Errorf("layer %q: %w", layer, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read layer %q: %w", layer, err)
	}

	c.log.V(1).Info("Read geopackage", "path", path, "layer", layer, "features", c.Len())

	return c, nil
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// geometryColumns returns the geometry columns registered for layer. A file
// without the gpkg_geometry_columns table has none.
func geometryColumns(ctx context.Context, db *sql.DB, layer string) []string {
	rows, err := db.QueryContext(ctx, "SELECT column_name FROM gpkg_geometry_columns WHERE table_name = ?", layer)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			cols = append(cols, name)
		}
	}
	return cols
}

func layerColumns(ctx context.Context, db *sql.DB, layer string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(layer)+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("describe layer %q: %w", layer, err)
	}
	defer rows.Close()
	return rows.Columns()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
