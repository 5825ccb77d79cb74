package plan

import (
	"encoding/json"
	"strings"

	"github.com/roach88/geoff/internal/ir"
	"github.com/roach88/geoff/internal/queryir"
)

// ParseQuery decodes a standalone query object (the "query" member of a
// layers-form plan).
func ParseQuery(raw []byte) (queryir.Query, error) {
	obj, err := decodeObject(raw, "query")
	if err != nil {
		return nil, err
	}
	return parseQuery(obj, "query")
}

func parseQuery(obj object, path string) (queryir.Query, error) {
	kind, err := obj.string("type", path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "select", "aggregate":
		s, err := parseSelect(obj, path)
		if err != nil {
			return nil, err
		}
		return &s, nil

	case "union":
		return parseUnion(obj, path)

	case "cte":
		return parseCTE(obj, path)

	default:
		return nil, errorf(join(path, "type"), "unknown query type %q", kind)
	}
}

func parseUnion(obj object, path string) (*queryir.Union, error) {
	u := &queryir.Union{Type: queryir.UnionAll}

	if obj.present("union_type") {
		t, err := obj.string("union_type", path)
		if err != nil {
			return nil, err
		}
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "ALL":
			u.Type = queryir.UnionAll
		case "DISTINCT":
			u.Type = queryir.UnionDistinct
		case "":
			u.Type = queryir.UnionPlain
		default:
			return nil, errorf(join(path, "union_type"), "invalid union_type %q", t)
		}
	}

	items, err := obj.list("queries", path)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errorf(join(path, "queries"), "is required")
	}
	for i, item := range items {
		itemPath := index(join(path, "queries"), i)
		qobj, err := decodeObject(item, itemPath)
		if err != nil {
			return nil, err
		}
		s, err := parseSelect(qobj, itemPath)
		if err != nil {
			return nil, err
		}
		u.Queries = append(u.Queries, s)
	}
	return u, nil
}

func parseCTE(obj object, path string) (*queryir.CTE, error) {
	c := &queryir.CTE{}

	items, err := obj.list("ctes", path)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errorf(join(path, "ctes"), "is required")
	}
	for i, item := range items {
		itemPath := index(join(path, "ctes"), i)
		cobj, err := decodeObject(item, itemPath)
		if err != nil {
			return nil, err
		}
		var named queryir.NamedQuery
		if named.Name, err = cobj.requiredString("name", itemPath); err != nil {
			return nil, err
		}
		if !cobj.has("query") {
			return nil, errorf(join(itemPath, "query"), "is required")
		}
		qobj, err := decodeObject(cobj["query"], join(itemPath, "query"))
		if err != nil {
			return nil, err
		}
		if named.Query, err = parseSelect(qobj, join(itemPath, "query")); err != nil {
			return nil, err
		}
		c.CTEs = append(c.CTEs, named)
	}

	if !obj.has("main_query") {
		return nil, errorf(join(path, "main_query"), "is required")
	}
	mobj, err := decodeObject(obj["main_query"], join(path, "main_query"))
	if err != nil {
		return nil, err
	}
	main, err := parseSelect(mobj, join(path, "main_query"))
	if err != nil {
		return nil, err
	}
	c.Main = &main
	return c, nil
}

func parseSelect(obj object, path string) (queryir.Select, error) {
	s := queryir.Select{Kind: queryir.KindSelect}
	var err error

	if kind, _ := obj.string("type", path); strings.EqualFold(kind, "aggregate") {
		s.Kind = queryir.KindAggregate
	}

	items, err := obj.list("columns", path)
	if err != nil {
		return s, err
	}
	if len(items) == 0 {
		return s, errorf(join(path, "columns"), "is required")
	}
	for i, item := range items {
		col, err := parseColumn(item, index(join(path, "columns"), i))
		if err != nil {
			return s, err
		}
		s.Columns = append(s.Columns, col)
	}

	if s.Table, err = obj.requiredString("table", path); err != nil {
		return s, err
	}
	if s.Alias, err = obj.string("alias", path); err != nil {
		return s, err
	}
	if s.Distinct, err = obj.bool("distinct", path, false); err != nil {
		return s, err
	}

	if s.Joins, err = parseJoins(obj, path); err != nil {
		return s, err
	}
	if s.Filters, err = parseFilters(obj, path); err != nil {
		return s, err
	}
	if s.SpatialFilters, err = parseSpatialFilters(obj, path); err != nil {
		return s, err
	}
	if s.GroupBy, err = obj.strings("group_by", path); err != nil {
		return s, err
	}
	if s.OrderBy, err = parseOrderBy(obj, path); err != nil {
		return s, err
	}

	if obj.has("limit") {
		var n json.Number
		if err := json.Unmarshal(obj["limit"], &n); err != nil {
			return s, errorf(join(path, "limit"), "must be an integer")
		}
		limit, err := n.Int64()
		if err != nil || limit < 0 {
			return s, errorf(join(path, "limit"), "must be a non-negative integer")
		}
		s.Limit = int(limit)
	}

	return s, nil
}

func parseJoins(obj object, path string) ([]queryir.Join, error) {
	items, err := obj.list("joins", path)
	if err != nil {
		return nil, err
	}

	var joins []queryir.Join
	for i, item := range items {
		itemPath := index(join(path, "joins"), i)
		jobj, err := decodeObject(item, itemPath)
		if err != nil {
			return nil, err
		}

		var j queryir.Join
		typeText, err := jobj.string("type", itemPath)
		if err != nil {
			return nil, err
		}
		if j.Type, err = queryir.ParseJoinType(typeText); err != nil {
			return nil, errorf(join(itemPath, "type"), "%v", err)
		}
		if j.Table, err = jobj.requiredString("table", itemPath); err != nil {
			return nil, err
		}
		if j.Alias, err = jobj.string("alias", itemPath); err != nil {
			return nil, err
		}

		condPath := join(itemPath, "condition")
		if !jobj.has("condition") {
			return nil, errorf(condPath, "is required")
		}
		cobj, err := decodeObject(jobj["condition"], condPath)
		if err != nil {
			return nil, err
		}
		if j.On, err = parseCondition(cobj, condPath); err != nil {
			return nil, err
		}
		joins = append(joins, j)
	}
	return joins, nil
}

func parseCondition(obj object, path string) (queryir.Condition, error) {
	kind, err := obj.requiredString("type", path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(kind) {
	case "spatial":
		opText, err := obj.requiredString("operation", path)
		if err != nil {
			return nil, err
		}
		op, err := queryir.ParseSpatialOp(opText)
		if err != nil {
			return nil, errorf(join(path, "operation"), "%v", err)
		}
		cond := queryir.SpatialCondition{Op: op}
		if op == queryir.OpDWithin {
			if cond.Distance, err = requiredNumber(obj, "distance", path); err != nil {
				return nil, err
			}
		}
		return cond, nil

	case "attribute":
		var cond queryir.AttributeCondition
		if cond.LeftColumn, err = obj.requiredString("left_column", path); err != nil {
			return nil, err
		}
		if cond.RightColumn, err = obj.requiredString("right_column", path); err != nil {
			return nil, err
		}
		return cond, nil

	default:
		return nil, errorf(join(path, "type"), "unknown join condition type %q", kind)
	}
}

func parseSpatialFilters(obj object, path string) ([]queryir.SpatialFilter, error) {
	items, err := obj.list("spatial_filters", path)
	if err != nil {
		return nil, err
	}

	var filters []queryir.SpatialFilter
	for i, item := range items {
		itemPath := index(join(path, "spatial_filters"), i)
		sobj, err := decodeObject(item, itemPath)
		if err != nil {
			return nil, err
		}

		var sf queryir.SpatialFilter
		opText, err := sobj.requiredString("operation", itemPath)
		if err != nil {
			return nil, err
		}
		if sf.Op, err = queryir.ParseSpatialOp(opText); err != nil {
			return nil, errorf(join(itemPath, "operation"), "%v", err)
		}
		if sf.Target, err = sobj.requiredString("target_table", itemPath); err != nil {
			return nil, err
		}
		if sf.Op == queryir.OpDWithin {
			if sf.Distance, err = requiredNumber(sobj, "distance", itemPath); err != nil {
				return nil, err
			}
		}
		if sf.UseExists, err = sobj.bool("use_exists", itemPath, true); err != nil {
			return nil, err
		}
		filters = append(filters, sf)
	}
	return filters, nil
}

func parseOrderBy(obj object, path string) ([]queryir.OrderBy, error) {
	items, err := obj.list("order_by", path)
	if err != nil {
		return nil, err
	}

	var terms []queryir.OrderBy
	for i, item := range items {
		itemPath := index(join(path, "order_by"), i)
		oobj, err := decodeObject(item, itemPath)
		if err != nil {
			return nil, err
		}

		var o queryir.OrderBy
		if o.Column, err = oobj.string("column", itemPath); err != nil {
			return nil, err
		}
		if o.Expression, err = oobj.string("expression", itemPath); err != nil {
			return nil, err
		}
		if o.Column == "" && o.Expression == "" {
			return nil, errorf(itemPath, "order term must have column or expression")
		}
		dir, err := oobj.string("direction", itemPath)
		if err != nil {
			return nil, err
		}
		if o.Direction, err = queryir.ParseDirection(dir); err != nil {
			return nil, errorf(join(itemPath, "direction"), "%v", err)
		}
		terms = append(terms, o)
	}
	return terms, nil
}

func requiredNumber(obj object, key, path string) (ir.Number, error) {
	if !obj.has(key) {
		return "", errorf(join(path, key), "is required")
	}
	v, err := ir.Decode(obj[key])
	if err != nil {
		return "", errorf(join(path, key), "%v", err)
	}
	n, ok := v.(ir.Number)
	if !ok {
		return "", errorf(join(path, key), "must be a number, got %s", ir.TypeName(v))
	}
	return n, nil
}
