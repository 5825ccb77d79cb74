package layers

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultName names the table layer of a result without geometry when no
// source is known.
const DefaultName = "result"

// Layer is one map overlay: a FeatureCollection plus a parallel table of the
// non-geometry columns.
type Layer struct {
	Name    string                     `json:"name"`
	Source  string                     `json:"source,omitempty"`
	GeoJSON *geojson.FeatureCollection `json:"geojson"`
	Columns []string                   `json:"columns"`
	Rows    [][]any                    `json:"rows"`
}

// Convert turns a result set into layers, one per geometry column in column
// order.
func Convert(columns []string, rows [][]any) []Layer {
	return ConvertResult("", columns, rows)
}

// ConvertResult is Convert with the producing statement's layer hint stamped
// on every layer as Source.
func ConvertResult(source string, columns []string, rows [][]any) []Layer {
	geomCols := GeometryColumns(columns, rows)
	if len(geomCols) == 0 {
		name := source
		if name == "" {
			name = DefaultName
		}
		return []Layer{tableLayer(name, source, columns, rows)}
	}

	out := make([]Layer, 0, len(geomCols))
	for _, gc := range geomCols {
		out = append(out, geometryLayer(gc, source, columns, rows))
	}
	return out
}

// GeometryColumns returns the indexes of columns holding at least one
// decodable geometry value, in column order.
func GeometryColumns(columns []string, rows [][]any) []int {
	var out []int
	for i := range columns {
		for _, row := range rows {
			if i < len(row) && DecodeGeometry(row[i]) != nil {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func geometryLayer(gc int, source string, columns []string, rows [][]any) Layer {
	cols := make([]string, 0, len(columns)-1)
	for i, c := range columns {
		if i != gc {
			cols = append(cols, c)
		}
	}

	fc := geojson.NewFeatureCollection()
	table := make([][]any, 0, len(rows))
	for _, row := range rows {
		var geom orb.Geometry
		values := make([]any, 0, len(cols))
		props := make(geojson.Properties, len(cols))
		for i, c := range columns {
			v := cell(row, i)
			if i == gc {
				geom = DecodeGeometry(v)
				continue
			}
			values = append(values, v)
			props[c] = v
		}
		table = append(table, values)
		if geom == nil {
			continue
		}
		f := geojson.NewFeature(geom)
		f.Properties = props
		fc.Append(f)
	}

	return Layer{
		Name:    columns[gc],
		Source:  source,
		GeoJSON: fc,
		Columns: cols,
		Rows:    table,
	}
}

func tableLayer(name, source string, columns []string, rows [][]any) Layer {
	cols := make([]string, len(columns))
	copy(cols, columns)
	table := make([][]any, 0, len(rows))
	for _, row := range rows {
		values := make([]any, len(columns))
		for i := range columns {
			values[i] = cell(row, i)
		}
		table = append(table, values)
	}
	return Layer{
		Name:    name,
		Source:  source,
		GeoJSON: geojson.NewFeatureCollection(),
		Columns: cols,
		Rows:    table,
	}
}

// cell pads short rows with nulls so every row aligns with the columns.
func cell(row []any, i int) any {
	if i < len(row) {
		return row[i]
	}
	return nil
}
