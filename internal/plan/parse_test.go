package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geoff/internal/ir"
	"github.com/roach88/geoff/internal/queryir"
)

const fireStationsPlan = `{
	"action": "select",
	"groups": [{
		"source_tables": [{
			"table": "fire_stations",
			"columns": ["station_no", "address", "year_built", "geometry"],
			"filters": [{"column": "year_built", "operator": "<", "value": 1980}]
		}]
	}]
}`

func requirePlanError(t *testing.T, err error, field string) *PlanError {
	t.Helper()
	require.Error(t, err)
	var pe *PlanError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, field, pe.Field)
	return pe
}

func TestParse_FireStations(t *testing.T) {
	p, err := Parse([]byte(fireStationsPlan))
	require.NoError(t, err)

	assert.Equal(t, ActionSelect, p.Action)
	assert.False(t, p.Legacy)
	require.Len(t, p.Groups, 1)
	require.Len(t, p.Groups[0].Tables, 1)
	assert.Nil(t, p.Groups[0].Relation)

	table := p.Groups[0].Tables[0]
	assert.Equal(t, "fire_stations", table.Table)
	assert.Equal(t, []queryir.Column{
		{Name: "station_no"}, {Name: "address"}, {Name: "year_built"}, {Name: "geometry"},
	}, table.Columns)
	assert.Equal(t, []queryir.Filter{
		{Column: "year_built", Operator: queryir.OpLt, Value: ir.Number("1980"), Logic: queryir.LogicAnd},
	}, table.Filters)
}

func TestParse_MissingAction(t *testing.T) {
	_, err := Parse([]byte(`{"groups": [{"source_tables": [{"table": "parks"}]}]}`))
	pe := requirePlanError(t, err, "action")
	assert.Contains(t, pe.Message, "required")
	assert.True(t, IsPlanError(err))
}

func TestParse_UnsupportedAction(t *testing.T) {
	_, err := Parse([]byte(`{"action": "delete", "groups": [{"source_tables": [{"table": "parks"}]}]}`))
	pe := requirePlanError(t, err, "action")
	assert.Contains(t, pe.Message, "only select and aggregate")
}

func TestParse_AggregateAction(t *testing.T) {
	p, err := Parse([]byte(`{"action": "Aggregate", "groups": [{"source_tables": [{"table": "parks"}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, ActionAggregate, p.Action)
}

func TestParse_BodyRequired(t *testing.T) {
	_, err := Parse([]byte(`{"action": "select"}`))
	requirePlanError(t, err, "groups")

	_, err = Parse([]byte(`{"action": "select", "groups": []}`))
	requirePlanError(t, err, "groups")

	_, err = Parse([]byte(`{"action": "select", "groups": [], "layers": []}`))
	requirePlanError(t, err, "groups")
}

func TestParse_NotAnObject(t *testing.T) {
	_, err := Parse([]byte(`[1, 2]`))
	requirePlanError(t, err, "")

	_, err = Parse([]byte(`   `))
	requirePlanError(t, err, "")
}

func TestParse_LegacySourceTables(t *testing.T) {
	p, err := Parse([]byte(`{
		"action": "select",
		"source_tables": [{"table": "parks"}, {"table": "schools", "columns": ["name"]}]
	}`))
	require.NoError(t, err)

	assert.True(t, p.Legacy)
	require.Len(t, p.Groups, 1)
	require.Len(t, p.Groups[0].Tables, 2)
	assert.Equal(t, []queryir.Column{{Name: "*"}}, p.Groups[0].Tables[0].Columns)
}

func TestParse_ColumnForms(t *testing.T) {
	p, err := Parse([]byte(`{
		"action": "aggregate",
		"groups": [{"source_tables": [{
			"table": "parks",
			"columns": [
				"type",
				{"name": "id", "aggregate": "count", "alias": "park_count"},
				{"expression": "ST_Area(geometry)"},
				"ST_Length(geometry)"
			]
		}]}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, []queryir.Column{
		{Name: "type"},
		{Name: "id", Aggregate: "count", Alias: "park_count"},
		{Expression: "ST_Area(geometry)"},
		{Expression: "ST_Length(geometry)"},
	}, p.Groups[0].Tables[0].Columns)
}

func TestParse_ColumnErrors(t *testing.T) {
	tests := []struct {
		name    string
		columns string
		field   string
	}{
		{"empty list", `[]`, "groups[0].source_tables[0].columns"},
		{"empty name", `[""]`, "groups[0].source_tables[0].columns[0]"},
		{"neither", `[{"alias": "x"}]`, "groups[0].source_tables[0].columns[0]"},
		{"both", `[{"name": "a", "expression": "b"}]`, "groups[0].source_tables[0].columns[0]"},
		{"number", `[42]`, "groups[0].source_tables[0].columns[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"action": "select", "groups": [{"source_tables": [{"table": "parks", "columns": ` + tt.columns + `}]}]}`
			_, err := Parse([]byte(raw))
			requirePlanError(t, err, tt.field)
		})
	}
}

func filterPlan(filter string) []byte {
	return []byte(`{"action": "select", "groups": [{"source_tables": [{"table": "parks", "filters": [` + filter + `]}]}]}`)
}

func TestParse_FilterArity(t *testing.T) {
	const valueField = "groups[0].source_tables[0].filters[0].value"

	tests := []struct {
		name   string
		filter string
		field  string // empty = valid
	}{
		{"between two", `{"column": "year", "operator": "BETWEEN", "value": [1990, 2000]}`, ""},
		{"between one", `{"column": "year", "operator": "BETWEEN", "value": [1990]}`, valueField},
		{"between three", `{"column": "year", "operator": "between", "value": [1, 2, 3]}`, valueField},
		{"between scalar", `{"column": "year", "operator": "NOT BETWEEN", "value": 5}`, valueField},
		{"in list", `{"column": "type", "operator": "IN", "value": ["a", "b"]}`, ""},
		{"in scalar", `{"column": "type", "operator": "IN", "value": "a"}`, valueField},
		{"in empty", `{"column": "type", "operator": "NOT IN", "value": []}`, valueField},
		{"is null", `{"column": "type", "operator": "IS NULL"}`, ""},
		{"is null with null", `{"column": "type", "operator": "IS NULL", "value": null}`, ""},
		{"is null with value", `{"column": "type", "operator": "IS NOT NULL", "value": 1}`, valueField},
		{"eq missing value", `{"column": "type", "operator": "="}`, valueField},
		{"eq list", `{"column": "type", "operator": "=", "value": [1]}`, valueField},
		{"eq object", `{"column": "type", "operator": "=", "value": {"a": 1}}`, valueField},
		{"unknown operator", `{"column": "type", "operator": "~~", "value": 1}`, "groups[0].source_tables[0].filters[0].operator"},
		{"bad logic", `{"column": "type", "operator": "=", "value": 1, "logic": "XOR"}`, "groups[0].source_tables[0].filters[0].logic"},
		{"missing column", `{"operator": "=", "value": 1}`, "groups[0].source_tables[0].filters[0].column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(filterPlan(tt.filter))
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			requirePlanError(t, err, tt.field)
		})
	}
}

func TestParse_FilterLogic(t *testing.T) {
	p, err := Parse(filterPlan(`
		{"column": "amenities", "operator": "ILIKE", "value": "%dog%"},
		{"column": "amenities", "operator": "ILIKE", "value": "%pool%", "logic": "or"}`))
	require.NoError(t, err)

	filters := p.Groups[0].Tables[0].Filters
	require.Len(t, filters, 2)
	assert.Equal(t, queryir.LogicAnd, filters[0].Logic)
	assert.Equal(t, queryir.LogicOr, filters[1].Logic)
}

func relationPlan(relation string) []byte {
	return []byte(`{
		"action": "select",
		"groups": [{
			"source_tables": [
				{"table": "bike_lanes", "columns": ["street_name", "geometry"]},
				{"table": "schools", "alias": "s", "columns": ["name", "geometry"]}
			],
			"relations": [` + relation + `]
		}]
	}`)
}

func TestParse_SpatialRelation(t *testing.T) {
	p, err := Parse(relationPlan(`{
		"type": "spatial", "method": "st_dwithin",
		"left_table": "bike_lanes", "right_table": "schools",
		"params": {"distance_meters": 500}
	}`))
	require.NoError(t, err)

	rel, ok := p.Groups[0].Relation.(SpatialRelation)
	require.True(t, ok, "expected SpatialRelation, got %T", p.Groups[0].Relation)
	assert.Equal(t, queryir.OpDWithin, rel.Method)
	assert.Equal(t, ir.Number("500"), rel.Distance)
	assert.Equal(t, Ends{Clause: ClauseExists, Left: "bike_lanes", Right: "s"}, rel.Endpoints())
}

func TestParse_SpatialRelationWithoutDistance(t *testing.T) {
	p, err := Parse(relationPlan(`{
		"type": "spatial", "method": "ST_Intersects", "clause": "join",
		"left_table": "bike_lanes", "right_table": "s"
	}`))
	require.NoError(t, err)

	rel := p.Groups[0].Relation.(SpatialRelation)
	assert.Equal(t, queryir.OpIntersects, rel.Method)
	assert.Equal(t, ir.Number(""), rel.Distance)
	assert.Equal(t, ClauseJoin, rel.Clause)
}

func TestParse_AttributeRelation(t *testing.T) {
	p, err := Parse(relationPlan(`{
		"type": "attribute", "method": "=", "clause": "left join",
		"left_table": "bike_lanes", "right_table": "schools",
		"params": {"left_column": "ward_id", "right_column": "ward_id"}
	}`))
	require.NoError(t, err)

	rel, ok := p.Groups[0].Relation.(AttributeRelation)
	require.True(t, ok)
	assert.Equal(t, "ward_id", rel.LeftColumn)
	assert.Equal(t, "ward_id", rel.RightColumn)
	assert.Equal(t, ClauseLeftJoin, rel.Clause)
}

func TestParse_AttributeRelationTopLevelColumns(t *testing.T) {
	p, err := Parse(relationPlan(`{
		"type": "attribute", "method": "=", "clause": "left_join",
		"left_table": "bike_lanes", "right_table": "schools",
		"left_column": "ward_id", "right_column": "ward"
	}`))
	require.NoError(t, err)

	rel := p.Groups[0].Relation.(AttributeRelation)
	assert.Equal(t, "ward", rel.RightColumn)
	assert.Equal(t, ClauseLeftJoin, rel.Clause)
}

func TestParse_RelationErrors(t *testing.T) {
	const rel = "groups[0].relations[0]"

	tests := []struct {
		name     string
		relation string
		field    string
	}{
		{"dwithin without distance",
			`{"type": "spatial", "method": "st_dwithin", "left_table": "bike_lanes", "right_table": "schools"}`,
			rel + ".params.distance_meters"},
		{"negative distance",
			`{"type": "spatial", "method": "st_dwithin", "left_table": "bike_lanes", "right_table": "schools", "params": {"distance_meters": -5}}`,
			rel + ".params.distance_meters"},
		{"string distance",
			`{"type": "spatial", "method": "st_dwithin", "left_table": "bike_lanes", "right_table": "schools", "params": {"distance_meters": "500"}}`,
			rel + ".params.distance_meters"},
		{"attribute with spatial method",
			`{"type": "attribute", "method": "st_dwithin", "left_table": "bike_lanes", "right_table": "schools", "params": {"left_column": "a", "right_column": "b"}}`,
			rel + ".method"},
		{"spatial with equality",
			`{"type": "spatial", "method": "=", "left_table": "bike_lanes", "right_table": "schools"}`,
			rel + ".method"},
		{"attribute missing right column",
			`{"type": "attribute", "left_table": "bike_lanes", "right_table": "schools", "params": {"left_column": "a"}}`,
			rel + ".params.right_column"},
		{"unknown type",
			`{"type": "temporal", "left_table": "bike_lanes", "right_table": "schools"}`,
			rel + ".type"},
		{"unknown clause",
			`{"type": "spatial", "method": "st_within", "clause": "cross join", "left_table": "bike_lanes", "right_table": "schools"}`,
			rel + ".clause"},
		{"unknown method",
			`{"type": "spatial", "method": "st_touches", "left_table": "bike_lanes", "right_table": "schools"}`,
			rel + ".method"},
		{"unknown table",
			`{"type": "spatial", "method": "st_within", "left_table": "bike_lanes", "right_table": "parks"}`,
			rel + ".right_table"},
		{"self relation",
			`{"type": "spatial", "method": "st_within", "left_table": "s", "right_table": "schools"}`,
			rel + ".right_table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(relationPlan(tt.relation))
			requirePlanError(t, err, tt.field)
		})
	}
}

func TestParse_MultipleRelationsRejected(t *testing.T) {
	r := `{"type": "spatial", "method": "st_within", "left_table": "bike_lanes", "right_table": "schools"}`
	_, err := Parse(relationPlan(r + "," + r))
	pe := requirePlanError(t, err, "groups[0].relations")
	assert.Contains(t, pe.Message, "at most one relation")
}

func TestParse_SingleRelationObject(t *testing.T) {
	raw := []byte(`{
		"action": "select",
		"groups": [{
			"source_tables": [{"table": "parks"}, {"table": "wards"}],
			"relations": {"type": "spatial", "method": "st_within", "left_table": "parks", "right_table": "wards"}
		}]
	}`)
	p, err := Parse(raw)
	require.NoError(t, err)
	assert.IsType(t, SpatialRelation{}, p.Groups[0].Relation)
}

func TestParse_DuplicateTables(t *testing.T) {
	raw := []byte(`{"action": "select", "groups": [{"source_tables": [{"table": "parks"}, {"table": "parks"}]}]}`)
	_, err := Parse(raw)
	requirePlanError(t, err, "groups[0].source_tables[1]")

	raw = []byte(`{"action": "select", "groups": [{"source_tables": [{"table": "parks"}, {"table": "parks", "alias": "p2"}]}]}`)
	_, err = Parse(raw)
	require.NoError(t, err)
}

func TestGroupTable(t *testing.T) {
	g := Group{Tables: []SourceTable{{Table: "parks"}, {Table: "schools", Alias: "s"}}}

	got, ok := g.Table("s")
	require.True(t, ok)
	assert.Equal(t, "schools", got.Table)

	_, ok = g.Table("schools")
	assert.False(t, ok)
}

func TestParse_LayersForm(t *testing.T) {
	raw := []byte(`{
		"action": "select",
		"layers": [
			{
				"layer_name": "schools_near_parks",
				"layer_type": "point",
				"query": {
					"type": "select",
					"columns": ["name", "geometry"],
					"table": "schools",
					"alias": "s",
					"spatial_filters": [{"operation": "ST_DWithin", "target_table": "parks", "distance": 250}],
					"order_by": [{"column": "name"}],
					"limit": 10
				}
			},
			{
				"layer_name": "facilities",
				"query": {
					"type": "union",
					"queries": [
						{"columns": ["name"], "table": "schools"},
						{"columns": ["name"], "table": "libraries"}
					]
				}
			},
			{
				"layer_name": "dense_wards",
				"query": {
					"type": "cte",
					"ctes": [{"name": "counts", "query": {
						"type": "aggregate",
						"columns": ["ward_id", {"name": "id", "aggregate": "COUNT", "alias": "n"}],
						"table": "schools",
						"group_by": ["ward_id"]
					}}],
					"main_query": {"columns": ["*"], "table": "counts"}
				}
			}
		]
	}`)

	p, err := Parse(raw)
	require.NoError(t, err)
	require.Empty(t, p.Groups)
	require.Len(t, p.Layers, 3)

	first := p.Layers[0]
	assert.Equal(t, "schools_near_parks", first.Name)
	assert.Equal(t, "point", first.Type)
	sel, ok := first.Query.(*queryir.Select)
	require.True(t, ok, "expected *queryir.Select, got %T", first.Query)
	assert.Equal(t, "s", sel.Qualifier())
	assert.Equal(t, 10, sel.Limit)
	require.Len(t, sel.SpatialFilters, 1)
	assert.Equal(t, queryir.SpatialFilter{
		Op: queryir.OpDWithin, Target: "parks", Distance: ir.Number("250"), UseExists: true,
	}, sel.SpatialFilters[0])

	union, ok := p.Layers[1].Query.(*queryir.Union)
	require.True(t, ok)
	assert.Equal(t, queryir.UnionAll, union.Type)
	assert.Len(t, union.Queries, 2)

	cte, ok := p.Layers[2].Query.(*queryir.CTE)
	require.True(t, ok)
	require.Len(t, cte.CTEs, 1)
	assert.Equal(t, "counts", cte.CTEs[0].Name)
	assert.Equal(t, queryir.KindAggregate, cte.CTEs[0].Query.Kind)
	assert.Equal(t, "counts", cte.Main.Table)
}

func TestParse_LayerErrors(t *testing.T) {
	tests := []struct {
		name  string
		layer string
		field string
	}{
		{"missing query", `{"layer_name": "a"}`, "layers[0].query"},
		{"unknown type", `{"query": {"type": "merge", "columns": ["a"], "table": "t"}}`, "layers[0].query.type"},
		{"missing columns", `{"query": {"table": "t"}}`, "layers[0].query.columns"},
		{"missing table", `{"query": {"columns": ["a"]}}`, "layers[0].query.table"},
		{"negative limit", `{"query": {"columns": ["a"], "table": "t", "limit": -1}}`, "layers[0].query.limit"},
		{"dwithin filter without distance",
			`{"query": {"columns": ["a"], "table": "t", "spatial_filters": [{"operation": "st_dwithin", "target_table": "u"}]}}`,
			"layers[0].query.spatial_filters[0].distance"},
		{"bad union type",
			`{"query": {"type": "union", "union_type": "SOME", "queries": [{"columns": ["a"], "table": "t"}]}}`,
			"layers[0].query.union_type"},
		{"cte without main",
			`{"query": {"type": "cte", "ctes": [{"name": "x", "query": {"columns": ["a"], "table": "t"}}]}}`,
			"layers[0].query.main_query"},
		{"join without condition",
			`{"query": {"columns": ["a"], "table": "t", "joins": [{"type": "INNER", "table": "u"}]}}`,
			"layers[0].query.joins[0].condition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(`{"action": "select", "layers": [` + tt.layer + `]}`))
			requirePlanError(t, err, tt.field)
		})
	}
}

func TestParseQuery_Joins(t *testing.T) {
	q, err := ParseQuery([]byte(`{
		"columns": ["p.name", "w.ward_name"],
		"table": "parks",
		"alias": "p",
		"joins": [{
			"type": "LEFT",
			"table": "wards",
			"alias": "w",
			"condition": {"type": "spatial", "operation": "ST_Within"}
		}, {
			"type": "INNER",
			"table": "ward_stats",
			"condition": {"type": "attribute", "left_column": "w.ward_id", "right_column": "ward_stats.ward_id"}
		}]
	}`))
	require.NoError(t, err)

	sel := q.(*queryir.Select)
	require.Len(t, sel.Joins, 2)
	assert.Equal(t, "w", sel.Joins[0].Qualifier())
	assert.Equal(t, queryir.SpatialCondition{Op: queryir.OpWithin}, sel.Joins[0].On)
	assert.Equal(t, queryir.AttributeCondition{LeftColumn: "w.ward_id", RightColumn: "ward_stats.ward_id"}, sel.Joins[1].On)
}

func TestPlanError_Error(t *testing.T) {
	assert.Equal(t, "invalid plan: action: is required", (&PlanError{Field: "action", Message: "is required"}).Error())
	assert.Equal(t, "invalid plan: plan is empty", (&PlanError{Message: "plan is empty"}).Error())
}
