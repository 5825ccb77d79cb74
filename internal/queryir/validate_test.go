package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geoff/internal/ir"
)

func parksSelect() Select {
	return Select{
		Kind: KindSelect,
		Columns: []Column{
			{Name: "name"},
			{Name: "geometry"},
		},
		Table: "parks",
		Filters: []Filter{
			{Column: "amenities", Operator: OpILike, Value: ir.String("%dog%")},
		},
	}
}

func TestValidate_CleanSelect(t *testing.T) {
	result := Validate(parksSelect())

	assert.True(t, result.Clean)
	assert.Empty(t, result.Warnings)
}

func TestValidate_PointerForms(t *testing.T) {
	s := parksSelect()
	assert.True(t, Validate(&s).Clean)
	assert.True(t, Validate(&Union{Queries: []Select{s, s}}).Clean)
}

func TestValidate_NilQuery(t *testing.T) {
	result := Validate(nil)

	assert.False(t, result.Clean)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "nil query")
}

func TestValidate_NoGeometry(t *testing.T) {
	s := Select{Table: "wards", Columns: []Column{{Name: "name"}}}

	result := Validate(s)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "plain table")
}

func TestValidate_GeometryExpressionCounts(t *testing.T) {
	s := Select{
		Table:   "wards",
		Columns: []Column{{Expression: "ST_AsGeoJSON(w.geometry)", Alias: "geometry"}},
		Alias:   "w",
	}

	assert.True(t, Validate(s).Clean)
}

func TestValidate_Star(t *testing.T) {
	s := Select{Table: "parks", Columns: []Column{{Name: "*"}}}

	result := Validate(s)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "WKB")
}

func TestValidate_AggregateWithoutGroupBy(t *testing.T) {
	s := Select{
		Kind:  KindAggregate,
		Table: "parks",
		Columns: []Column{
			{Name: "type"},
			{Name: "geometry"},
			{Name: "id", Aggregate: "count", Alias: "n"},
		},
	}

	result := Validate(s)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "without GROUP BY")

	s.GroupBy = []string{"type", "geometry"}
	assert.True(t, Validate(s).Clean)
}

func TestValidate_AggregateKindWithoutAggregates(t *testing.T) {
	s := parksSelect()
	s.Kind = KindAggregate

	result := Validate(s)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no aggregated column")
}

func TestValidate_RightJoinAndDetachedSpatialFilter(t *testing.T) {
	s := parksSelect()
	s.Joins = []Join{{
		Type:  JoinRight,
		Table: "wards",
		On:    SpatialCondition{Op: OpIntersects},
	}}
	s.SpatialFilters = []SpatialFilter{{Op: OpWithin, Target: "neighbourhoods"}}

	result := Validate(s)

	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "joins[0]")
	assert.Contains(t, result.Warnings[1], "spatial_filters[0]")
}

func TestValidate_UnionWidthMismatch(t *testing.T) {
	a := parksSelect()
	b := parksSelect()
	b.Columns = append(b.Columns, Column{Name: "type"})

	result := Validate(Union{Type: UnionAll, Queries: []Select{a, b}})

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "queries[1]: 3 columns, expected 2")
}

func TestValidate_UnusedCTE(t *testing.T) {
	main := parksSelect()
	c := CTE{
		CTEs: []NamedQuery{{Name: "dog_parks", Query: parksSelect()}},
		Main: &main,
	}

	result := Validate(c)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "dog_parks is not referenced")

	main.Table = "dog_parks"
	assert.True(t, Validate(c).Clean)
}
