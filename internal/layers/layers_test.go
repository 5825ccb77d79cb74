package layers

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointJSON = `{"type":"Point","coordinates":[-79.38,43.65]}`

func wkbHex(t *testing.T, g orb.Geometry) string {
	t.Helper()
	data, err := wkb.Marshal(g)
	require.NoError(t, err)
	return hex.EncodeToString(data)
}

func TestDecodeGeometry(t *testing.T) {
	ewkbData, err := ewkb.Marshal(orb.Point{1, 2}, 4326)
	require.NoError(t, err)
	wkbData, err := wkb.Marshal(orb.Point{3, 4})
	require.NoError(t, err)

	tests := []struct {
		name  string
		value any
		want  orb.Geometry
	}{
		{"geojson text", pointJSON, orb.Point{-79.38, 43.65}},
		{"geojson map", map[string]any{"type": "Point", "coordinates": []any{1.0, 2.0}}, orb.Point{1, 2}},
		{"wkb hex", wkbHex(t, orb.Point{3, 4}), orb.Point{3, 4}},
		{"ewkb hex", hex.EncodeToString(ewkbData), orb.Point{1, 2}},
		{"raw wkb", wkbData, orb.Point{3, 4}},
		{"geojson bytes", []byte(pointJSON), orb.Point{-79.38, 43.65}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeGeometry(tt.value))
		})
	}
}

func TestDecodeGeometry_NotGeometry(t *testing.T) {
	values := []any{
		nil,
		"",
		"1 Main St",
		"12",
		"deadbeef",
		int64(1975),
		true,
		map[string]any{"type": "Point"},
		map[string]any{"coordinates": []any{1.0, 2.0}},
		`{"name":"not a shape"}`,
		`{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[1,2]}]}`,
	}
	for _, v := range values {
		assert.Nil(t, DecodeGeometry(v), "%#v", v)
	}
}

func TestConvert_FireStations(t *testing.T) {
	columns := []string{"station_no", "address", "year_built", "geometry"}
	rows := [][]any{{"12", "1 Main St", int64(1975), pointJSON}}

	got := Convert(columns, rows)
	require.Len(t, got, 1)

	l := got[0]
	assert.Equal(t, "geometry", l.Name)
	assert.Equal(t, []string{"station_no", "address", "year_built"}, l.Columns)
	assert.Equal(t, [][]any{{"12", "1 Main St", int64(1975)}}, l.Rows)

	require.Len(t, l.GeoJSON.Features, 1)
	f := l.GeoJSON.Features[0]
	assert.Equal(t, orb.Point{-79.38, 43.65}, f.Geometry)
	assert.Equal(t, map[string]any{
		"station_no": "12",
		"address":    "1 Main St",
		"year_built": int64(1975),
	}, map[string]any(f.Properties))
}

func TestConvert_DetectionFollowsColumnOrder(t *testing.T) {
	columns := []string{"name", "shape"}
	rows := [][]any{
		{"Allan Gardens", pointJSON},
		{"Trinity Bellwoods", nil},
	}

	got := Convert(columns, rows)
	require.Len(t, got, 1)
	assert.Equal(t, "shape", got[0].Name)
	assert.Equal(t, []string{"name"}, got[0].Columns)
}

func TestConvert_UndecodableRowsStayTabular(t *testing.T) {
	columns := []string{"name", "geometry"}
	rows := [][]any{
		{"a", pointJSON},
		{"b", "not geometry"},
		{"c", nil},
	}

	got := Convert(columns, rows)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Rows, 3)
	assert.Len(t, got[0].GeoJSON.Features, 1)
	assert.Equal(t, "a", got[0].GeoJSON.Features[0].Properties["name"])
}

func TestConvert_OneLayerPerGeometryColumn(t *testing.T) {
	columns := []string{"school_geom", "name", "station_geom"}
	rows := [][]any{
		{pointJSON, "Jarvis CI", wkbHex(t, orb.Point{1, 1})},
		{nil, "Central Tech", wkbHex(t, orb.Point{2, 2})},
	}

	got := Convert(columns, rows)
	require.Len(t, got, 2)

	assert.Equal(t, "school_geom", got[0].Name)
	assert.Equal(t, []string{"name", "station_geom"}, got[0].Columns)
	assert.Len(t, got[0].GeoJSON.Features, 1)

	assert.Equal(t, "station_geom", got[1].Name)
	assert.Equal(t, []string{"school_geom", "name"}, got[1].Columns)
	assert.Len(t, got[1].GeoJSON.Features, 2)
	assert.Equal(t, orb.Point{2, 2}, got[1].GeoJSON.Features[1].Geometry)

	for _, l := range got {
		for _, row := range l.Rows {
			assert.Len(t, row, len(l.Columns))
		}
	}
}

func TestConvert_NoGeometry(t *testing.T) {
	columns := []string{"school_type", "count"}
	rows := [][]any{{"private", int64(42)}, {"public", int64(180)}}

	got := Convert(columns, rows)
	require.Len(t, got, 1)
	assert.Equal(t, DefaultName, got[0].Name)
	assert.Equal(t, columns, got[0].Columns)
	assert.Equal(t, rows, got[0].Rows)
	assert.Empty(t, got[0].GeoJSON.Features)
}

func TestConvertResult_StampsSource(t *testing.T) {
	got := ConvertResult("schools", []string{"count"}, [][]any{{int64(3)}})
	require.Len(t, got, 1)
	assert.Equal(t, "schools", got[0].Name)
	assert.Equal(t, "schools", got[0].Source)

	got = ConvertResult("parks", []string{"name", "geometry"}, [][]any{{"x", pointJSON}})
	require.Len(t, got, 1)
	assert.Equal(t, "geometry", got[0].Name)
	assert.Equal(t, "parks", got[0].Source)
}

func TestConvert_ShortRowsArePadded(t *testing.T) {
	got := Convert([]string{"a", "b"}, [][]any{{"x"}})
	require.Len(t, got, 1)
	assert.Equal(t, [][]any{{"x", nil}}, got[0].Rows)
}

func TestLayer_JSONShape(t *testing.T) {
	got := Convert([]string{"count"}, nil)
	require.Len(t, got, 1)

	data, err := json.Marshal(got[0])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "result", decoded["name"])
	assert.NotContains(t, decoded, "source")
	assert.Equal(t, []any{"count"}, decoded["columns"])
	assert.Equal(t, []any{}, decoded["rows"])

	fc, ok := decoded["geojson"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "FeatureCollection", fc["type"])
	assert.Equal(t, []any{}, fc["features"])
}
