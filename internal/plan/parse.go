package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/geoff/internal/ir"
	"github.com/roach88/geoff/internal/queryir"
)

// Parse decodes raw plan JSON and checks the structure the compiler needs.
// The first defect is returned as a *PlanError.
func Parse(raw []byte) (*Plan, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errorf("", "plan is empty")
	}

	top, err := decodeObject(raw, "")
	if err != nil {
		return nil, err
	}

	p := &Plan{}

	actionText, err := top.requiredString("action", "")
	if err != nil {
		return nil, err
	}
	if p.Action, err = parseAction(actionText); err != nil {
		return nil, err
	}

	forms := 0
	for _, key := range []string{"groups", "source_tables", "layers"} {
		if top.has(key) {
			forms++
		}
	}
	switch {
	case forms == 0:
		return nil, errorf("groups", "one of groups, source_tables or layers is required")
	case forms > 1:
		return nil, errorf("groups", "groups, source_tables and layers are mutually exclusive")
	}

	switch {
	case top.has("groups"):
		items, err := top.list("groups", "")
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, errorf("groups", "must not be empty")
		}
		for i, item := range items {
			path := index("groups", i)
			obj, err := decodeObject(item, path)
			if err != nil {
				return nil, err
			}
			g, err := parseGroup(obj, path)
			if err != nil {
				return nil, err
			}
			p.Groups = append(p.Groups, g)
		}

	case top.has("source_tables"):
		g, err := parseGroup(top, "")
		if err != nil {
			return nil, err
		}
		p.Groups = []Group{g}
		p.Legacy = true

	default:
		items, err := top.list("layers", "")
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, errorf("layers", "must not be empty")
		}
		for i, item := range items {
			path := index("layers", i)
			obj, err := decodeObject(item, path)
			if err != nil {
				return nil, err
			}
			l, err := parseLayer(obj, path)
			if err != nil {
				return nil, err
			}
			p.Layers = append(p.Layers, l)
		}
	}

	return p, nil
}

func parseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "select":
		return ActionSelect, nil
	case "aggregate":
		return ActionAggregate, nil
	case "":
		return "", errorf("action", "is required")
	default:
		return "", errorf("action", "unsupported action %q: only select and aggregate are implemented", s)
	}
}

func parseGroup(obj object, path string) (Group, error) {
	var g Group

	items, err := obj.list("source_tables", path)
	if err != nil {
		return g, err
	}
	tablesPath := join(path, "source_tables")
	if len(items) == 0 {
		return g, errorf(tablesPath, "must not be empty")
	}

	seen := map[string]bool{}
	for i, item := range items {
		itemPath := index(tablesPath, i)
		tobj, err := decodeObject(item, itemPath)
		if err != nil {
			return g, err
		}
		t, err := parseSourceTable(tobj, itemPath)
		if err != nil {
			return g, err
		}
		if seen[t.Qualifier()] {
			return g, errorf(itemPath, "duplicate table reference %q; give one of them an alias", t.Qualifier())
		}
		seen[t.Qualifier()] = true
		g.Tables = append(g.Tables, t)
	}

	if !obj.has("relations") {
		return g, nil
	}

	relPath := join(path, "relations")
	var relations []json.RawMessage
	if obj.isObject("relations") {
		relations = []json.RawMessage{obj["relations"]}
	} else if relations, err = obj.list("relations", path); err != nil {
		return g, err
	}

	switch len(relations) {
	case 0:
		return g, nil
	case 1:
	default:
		return g, errorf(relPath, "%d relations given; at most one relation per group is supported", len(relations))
	}

	robj, err := decodeObject(relations[0], index(relPath, 0))
	if err != nil {
		return g, err
	}
	g.Relation, err = parseRelation(robj, index(relPath, 0), g)
	if err != nil {
		return g, err
	}
	return g, nil
}

func parseSourceTable(obj object, path string) (SourceTable, error) {
	var t SourceTable
	var err error

	if t.Table, err = obj.requiredString("table", path); err != nil {
		return t, err
	}
	if t.Alias, err = obj.string("alias", path); err != nil {
		return t, err
	}

	if !obj.has("columns") {
		t.Columns = []queryir.Column{{Name: "*"}}
	} else {
		items, err := obj.list("columns", path)
		if err != nil {
			return t, err
		}
		if len(items) == 0 {
			return t, errorf(join(path, "columns"), "must not be empty")
		}
		for i, item := range items {
			col, err := parseColumn(item, index(join(path, "columns"), i))
			if err != nil {
				return t, err
			}
			t.Columns = append(t.Columns, col)
		}
	}

	if t.Filters, err = parseFilters(obj, path); err != nil {
		return t, err
	}
	return t, nil
}

func parseColumn(raw json.RawMessage, path string) (queryir.Column, error) {
	var col queryir.Column

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if strings.TrimSpace(name) == "" {
			return col, errorf(path, "column name must not be empty")
		}
		name = strings.TrimSpace(name)
		// "ST_Area(geometry)" and friends are expressions, not column names.
		if strings.Contains(name, "(") {
			col.Expression = name
		} else {
			col.Name = name
		}
		return col, nil
	}

	obj, err := decodeObject(raw, path)
	if err != nil {
		return col, errorf(path, "column must be a string or an object")
	}
	if col.Name, err = obj.string("name", path); err != nil {
		return col, err
	}
	if col.Expression, err = obj.string("expression", path); err != nil {
		return col, err
	}
	if col.Alias, err = obj.string("alias", path); err != nil {
		return col, err
	}
	if col.Aggregate, err = obj.string("aggregate", path); err != nil {
		return col, err
	}

	switch {
	case col.Name == "" && col.Expression == "":
		return col, errorf(path, "column must have name or expression")
	case col.Name != "" && col.Expression != "":
		return col, errorf(path, "column must not have both name and expression")
	}
	return col, nil
}

func parseFilters(obj object, path string) ([]queryir.Filter, error) {
	items, err := obj.list("filters", path)
	if err != nil {
		return nil, err
	}

	filters := make([]queryir.Filter, 0, len(items))
	for i, item := range items {
		itemPath := index(join(path, "filters"), i)
		fobj, err := decodeObject(item, itemPath)
		if err != nil {
			return nil, err
		}
		f, err := parseFilter(fobj, itemPath)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func parseFilter(obj object, path string) (queryir.Filter, error) {
	var f queryir.Filter
	var err error

	if f.Column, err = obj.requiredString("column", path); err != nil {
		return f, err
	}

	opText, err := obj.requiredString("operator", path)
	if err != nil {
		return f, err
	}
	if f.Operator, err = queryir.ParseOperator(opText); err != nil {
		return f, errorf(join(path, "operator"), "%v", err)
	}

	logicText, err := obj.string("logic", path)
	if err != nil {
		return f, err
	}
	if f.Logic, err = queryir.ParseLogic(logicText); err != nil {
		return f, errorf(join(path, "logic"), "%v", err)
	}

	valuePath := join(path, "value")
	if !f.Operator.TakesValue() {
		if obj.has("value") {
			return f, errorf(valuePath, "%s takes no value", f.Operator)
		}
		return f, nil
	}

	if !obj.present("value") {
		return f, errorf(valuePath, "is required for %s", f.Operator)
	}
	if f.Value, err = ir.Decode(obj["value"]); err != nil {
		return f, errorf(valuePath, "%v", err)
	}
	if err := CheckOperand(f.Operator, f.Value); err != nil {
		return f, errorf(valuePath, "%v", err)
	}
	return f, nil
}

// CheckOperand verifies a filter value's shape against its operator:
// BETWEEN takes exactly two scalars, IN a non-empty list of scalars, null
// checks nothing, everything else a single scalar.
func CheckOperand(op queryir.Operator, v ir.Value) error {
	if !op.TakesValue() {
		if v != nil {
			if _, isNull := v.(ir.Null); !isNull {
				return fmt.Errorf("%s takes no value", op)
			}
		}
		return nil
	}

	if v == nil {
		return fmt.Errorf("value is required for %s", op)
	}

	list, isList := v.(ir.List)
	switch op {
	case queryir.OpBetween, queryir.OpNotBetween:
		if !isList || len(list) != 2 {
			return fmt.Errorf("%s requires exactly 2 values, got %s", op, describeOperand(v))
		}
	case queryir.OpIn, queryir.OpNotIn:
		if !isList {
			return fmt.Errorf("%s requires a list, got %s", op, ir.TypeName(v))
		}
		if len(list) == 0 {
			return fmt.Errorf("%s requires at least one value", op)
		}
	default:
		if isList {
			return fmt.Errorf("%s requires a single value, got a list", op)
		}
		return nil
	}

	for i, item := range list {
		if _, nested := item.(ir.List); nested {
			return fmt.Errorf("%s value %d is a nested list", op, i)
		}
	}
	return nil
}

func describeOperand(v ir.Value) string {
	if l, ok := v.(ir.List); ok {
		return fmt.Sprintf("%d", len(l))
	}
	return ir.TypeName(v)
}

func parseRelation(obj object, path string, g Group) (Relation, error) {
	kind, err := obj.requiredString("type", path)
	if err != nil {
		return nil, err
	}

	method, err := obj.string("method", path)
	if err != nil {
		return nil, err
	}
	methodPath := join(path, "method")
	if method == "" {
		if method, err = obj.string("operation", path); err != nil {
			return nil, err
		}
		methodPath = join(path, "operation")
	}

	clauseText, err := obj.string("clause", path)
	if err != nil {
		return nil, err
	}
	clause, err := parseClause(clauseText)
	if err != nil {
		return nil, errorf(join(path, "clause"), "%v", err)
	}

	ends := Ends{Clause: clause}
	if ends.Left, err = resolveTable(obj, "left_table", path, g); err != nil {
		return nil, err
	}
	if ends.Right, err = resolveTable(obj, "right_table", path, g); err != nil {
		return nil, err
	}
	if ends.Left == ends.Right {
		return nil, errorf(join(path, "right_table"), "relation must connect two different tables")
	}

	params := object{}
	if obj.has("params") {
		if params, err = decodeObject(obj["params"], join(path, "params")); err != nil {
			return nil, err
		}
	}
	paramsPath := join(path, "params")

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "spatial":
		if strings.TrimSpace(method) == "=" {
			return nil, errorf(methodPath, "method = requires type attribute")
		}
		if method == "" {
			return nil, errorf(methodPath, "is required for spatial relations")
		}
		op, err := queryir.ParseSpatialOp(method)
		if err != nil {
			return nil, errorf(methodPath, "%v", err)
		}
		rel := SpatialRelation{Ends: ends, Method: op}
		if op == queryir.OpDWithin {
			d, err := distanceParam(params, obj, paramsPath)
			if err != nil {
				return nil, err
			}
			rel.Distance = d
		}
		return rel, nil

	case "attribute":
		if m := strings.TrimSpace(method); m != "" && m != "=" {
			return nil, errorf(methodPath, "attribute relations only support =, got %q", method)
		}
		rel := AttributeRelation{Ends: ends}
		if rel.LeftColumn, err = columnParam(params, obj, "left_column", paramsPath); err != nil {
			return nil, err
		}
		if rel.RightColumn, err = columnParam(params, obj, "right_column", paramsPath); err != nil {
			return nil, err
		}
		return rel, nil

	default:
		return nil, errorf(join(path, "type"), "unknown relation type %q: expected spatial or attribute", kind)
	}
}

func parseClause(s string) (Clause, error) {
	norm := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " "))
	switch norm {
	case "", "exists":
		return ClauseExists, nil
	case "join", "inner join":
		return ClauseJoin, nil
	case "left join", "leftjoin", "left outer join":
		return ClauseLeftJoin, nil
	default:
		return "", fmt.Errorf("unknown clause %q: expected exists, join or left join", s)
	}
}

// resolveTable maps a relation's table reference onto a group table,
// matching aliases first and table names second, and returns its qualifier.
func resolveTable(obj object, key, path string, g Group) (string, error) {
	name, err := obj.requiredString(key, path)
	if err != nil {
		return "", err
	}
	if t, ok := g.Table(name); ok {
		return t.Qualifier(), nil
	}
	for _, t := range g.Tables {
		if t.Table == name {
			return t.Qualifier(), nil
		}
	}
	return "", errorf(join(path, key), "%q is not one of the group's source tables", name)
}

func distanceParam(params, rel object, path string) (ir.Number, error) {
	for _, src := range []object{params, rel} {
		for _, key := range []string{"distance_meters", "distance"} {
			if !src.has(key) {
				continue
			}
			v, err := ir.Decode(src[key])
			if err != nil {
				return "", errorf(join(path, key), "%v", err)
			}
			n, ok := v.(ir.Number)
			if !ok {
				return "", errorf(join(path, key), "must be a number, got %s", ir.TypeName(v))
			}
			if f, err := n.Float64(); err != nil || f < 0 {
				return "", errorf(join(path, key), "must be a non-negative number")
			}
			return n, nil
		}
	}
	return "", errorf(join(path, "distance_meters"), "is required for st_dwithin")
}

func columnParam(params, rel object, key, path string) (string, error) {
	for _, src := range []object{params, rel} {
		s, err := src.string(key, path)
		if err != nil {
			return "", err
		}
		if s != "" {
			return s, nil
		}
	}
	return "", errorf(join(path, key), "is required for attribute relations")
}

func parseLayer(obj object, path string) (Layer, error) {
	var l Layer
	var err error

	if l.Name, err = obj.string("layer_name", path); err != nil {
		return l, err
	}
	if l.Type, err = obj.string("layer_type", path); err != nil {
		return l, err
	}
	if !obj.has("query") {
		return l, errorf(join(path, "query"), "is required")
	}
	qobj, err := decodeObject(obj["query"], join(path, "query"))
	if err != nil {
		return l, err
	}
	if l.Query, err = parseQuery(qobj, join(path, "query")); err != nil {
		return l, err
	}
	return l, nil
}
