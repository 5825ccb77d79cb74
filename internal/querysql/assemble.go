package querysql

import (
	"strconv"
	"strings"

	"github.com/roach88/geoff/internal/queryir"
)

// Assemble compiles a standalone query object. Errors name fields relative
// to "query".
func (c *Compiler) Assemble(q queryir.Query) (Statement, error) {
	return c.assemble(q, "query")
}

func (c *Compiler) assemble(q queryir.Query, path string) (Statement, error) {
	var w sqlWriter

	switch query := q.(type) {
	case queryir.Select:
		return c.assembleSelect(&w, query, newScope(), path)
	case *queryir.Select:
		return c.assembleSelect(&w, *query, newScope(), path)
	case queryir.Union:
		return c.assembleUnion(&w, query, path)
	case *queryir.Union:
		return c.assembleUnion(&w, *query, path)
	case queryir.CTE:
		return c.assembleCTE(&w, query, path)
	case *queryir.CTE:
		return c.assembleCTE(&w, *query, path)
	case nil:
		return Statement{}, errorf(path, "is required")
	default:
		return Statement{}, errorf(path, "unsupported query type %T", q)
	}
}

func (c *Compiler) assembleSelect(w *sqlWriter, s queryir.Select, outer *scope, path string) (Statement, error) {
	if err := c.writeSelect(w, s, outer, path); err != nil {
		return Statement{}, err
	}
	return w.statement(s.Qualifier()), nil
}

// assembleUnion joins the sub-selects with UNION ALL (default), UNION
// DISTINCT or plain UNION.
func (c *Compiler) assembleUnion(w *sqlWriter, u queryir.Union, path string) (Statement, error) {
	if len(u.Queries) == 0 {
		return Statement{}, errorf(join(path, "queries"), "is required")
	}

	op := " UNION "
	switch u.Type {
	case queryir.UnionAll, queryir.UnionDistinct:
		op = " UNION " + string(u.Type) + " "
	case queryir.UnionPlain:
	default:
		return Statement{}, errorf(join(path, "union_type"), "invalid union_type %q", u.Type)
	}

	for i, s := range u.Queries {
		if i > 0 {
			w.write(op)
		}
		if err := c.writeSelect(w, s, newScope(), index(join(path, "queries"), i)); err != nil {
			return Statement{}, err
		}
	}
	return w.statement(u.Queries[0].Qualifier()), nil
}

// assembleCTE writes WITH n1 AS (...), n2 AS (...) <main>;. Each named
// query may reference the names defined before it.
func (c *Compiler) assembleCTE(w *sqlWriter, q queryir.CTE, path string) (Statement, error) {
	if len(q.CTEs) == 0 {
		return Statement{}, errorf(join(path, "ctes"), "is required")
	}
	if q.Main == nil {
		return Statement{}, errorf(join(path, "main_query"), "is required")
	}

	names := newScope()
	w.write("WITH ")
	for i, named := range q.CTEs {
		itemPath := index(join(path, "ctes"), i)
		if !identRE.MatchString(named.Name) {
			return Statement{}, errorf(join(itemPath, "name"), "invalid CTE name %q", named.Name)
		}
		if _, dup := names.tables[named.Name]; dup {
			return Statement{}, errorf(join(itemPath, "name"), "duplicate CTE name %q", named.Name)
		}
		if i > 0 {
			w.write(", ")
		}
		w.write(named.Name, " AS (")
		if err := c.writeSelect(w, named.Query, names, join(itemPath, "query")); err != nil {
			return Statement{}, err
		}
		w.write(")")
		names.add(named.Name, "")
	}

	w.write(" ")
	if err := c.writeSelect(w, *q.Main, names, join(path, "main_query")); err != nil {
		return Statement{}, err
	}
	return w.statement(q.Main.Qualifier()), nil
}

// writeSelect writes one SELECT without its terminator. outer carries CTE
// names visible to it.
func (c *Compiler) writeSelect(w *sqlWriter, s queryir.Select, outer *scope, path string) error {
	if len(s.Columns) == 0 {
		return errorf(join(path, "columns"), "is required")
	}
	if s.Table == "" {
		return errorf(join(path, "table"), "is required")
	}

	sc := outer.clone()
	if table, isCTE := outer.tables[s.Table]; isCTE && table == "" {
		sc.add(s.Qualifier(), "")
	} else {
		if err := c.checkTable(s.Table, join(path, "table")); err != nil {
			return err
		}
		sc.add(s.Qualifier(), s.Table)
	}
	if err := checkAlias(s.Alias, join(path, "alias")); err != nil {
		return err
	}
	for i, j := range s.Joins {
		jpath := index(join(path, "joins"), i)
		if err := c.checkJoinTable(j, outer, jpath); err != nil {
			return err
		}
		table := j.Table
		if t, isCTE := outer.tables[j.Table]; isCTE && t == "" {
			table = ""
		}
		sc.add(j.Qualifier(), table)
	}
	for i, sf := range s.SpatialFilters {
		spath := index(join(path, "spatial_filters"), i)
		if err := c.checkTable(sf.Target, join(spath, "target_table")); err != nil {
			return err
		}
	}

	items := make([]string, 0, len(s.Columns))
	for i, col := range s.Columns {
		item, name, err := c.queryColumn(s, col, sc, index(join(path, "columns"), i))
		if err != nil {
			return err
		}
		items = append(items, item)
		sc.outputs[name] = true
	}

	w.write("SELECT ")
	if s.Distinct {
		w.write("DISTINCT ")
	}
	w.write(strings.Join(items, ", "), " FROM ", s.Table)
	if s.Alias != "" {
		w.write(" AS ", s.Alias)
	}

	for i, j := range s.Joins {
		if err := c.writeJoin(w, s, j, sc, index(join(path, "joins"), i)); err != nil {
			return err
		}
	}

	if len(s.Filters) > 0 || len(s.SpatialFilters) > 0 {
		w.write(" WHERE ")
		if len(s.Filters) > 0 {
			w.write("(")
			if err := c.writeFilters(w, s.Filters, sc, join(path, "filters")); err != nil {
				return err
			}
			w.write(")")
		}
		for i, sf := range s.SpatialFilters {
			if i > 0 || len(s.Filters) > 0 {
				w.write(" AND ")
			}
			if err := writeSpatialFilter(w, s.Qualifier(), sf, index(join(path, "spatial_filters"), i)); err != nil {
				return err
			}
		}
	}

	if len(s.GroupBy) > 0 {
		for i, term := range s.GroupBy {
			if err := c.checkTerm(term, sc, index(join(path, "group_by"), i)); err != nil {
				return err
			}
		}
		w.write(" GROUP BY ", strings.Join(s.GroupBy, ", "))
	}

	if len(s.OrderBy) > 0 {
		terms := make([]string, 0, len(s.OrderBy))
		for i, o := range s.OrderBy {
			opath := index(join(path, "order_by"), i)
			term := o.Column
			if o.Expression != "" {
				term = o.Expression
				if err := c.checkExpression(term, sc, join(opath, "expression")); err != nil {
					return err
				}
			} else if err := c.checkColumnRef(term, sc, join(opath, "column")); err != nil {
				return err
			}
			dir := o.Direction
			if dir == "" {
				dir = queryir.Asc
			}
			terms = append(terms, term+" "+string(dir))
		}
		w.write(" ORDER BY ", strings.Join(terms, ", "))
	}

	if s.Limit < 0 {
		return errorf(join(path, "limit"), "must be a non-negative integer")
	}
	if s.Limit > 0 {
		w.write(" LIMIT ", strconv.Itoa(s.Limit))
	}
	return nil
}

func (c *Compiler) checkJoinTable(j queryir.Join, outer *scope, path string) error {
	if t, isCTE := outer.tables[j.Table]; !isCTE || t != "" {
		if err := c.checkTable(j.Table, join(path, "table")); err != nil {
			return err
		}
	}
	if err := checkAlias(j.Alias, join(path, "alias")); err != nil {
		return err
	}
	if j.On == nil {
		return errorf(join(path, "condition"), "is required")
	}
	return nil
}

// checkTerm accepts a column reference or a screened expression.
func (c *Compiler) checkTerm(term string, sc *scope, field string) error {
	if columnRefRE.MatchString(term) {
		return c.checkColumnRef(term, sc, field)
	}
	return c.checkExpression(term, sc, field)
}

// queryColumn renders a query-object column. Names are used as written;
// a column named geometry is converted to GeoJSON.
func (c *Compiler) queryColumn(s queryir.Select, col queryir.Column, sc *scope, field string) (string, string, error) {
	agg, err := aggregateFunc(col.Aggregate, join(field, "aggregate"))
	if err != nil {
		return "", "", err
	}
	if err := checkAlias(col.Alias, join(field, "alias")); err != nil {
		return "", "", err
	}

	var expr, name string
	switch {
	case col.Expression != "":
		if err := c.checkExpression(col.Expression, sc, join(field, "expression")); err != nil {
			return "", "", err
		}
		expr, name = col.Expression, col.Expression

	case col.Name == "*":
		expr, name = "*", "*"

	default:
		if strings.HasSuffix(col.Name, ".*") {
			q := strings.TrimSuffix(col.Name, ".*")
			if _, ok := sc.tables[q]; !ok && c.allow != nil {
				return "", "", errorf(field, "unknown table qualifier %q", q)
			}
			expr, name = col.Name, "*"
			break
		}
		if err := c.checkColumnRef(col.Name, sc, field); err != nil {
			return "", "", err
		}
		q, bare := splitRef(col.Name)
		if bare == "geometry" && agg == "" {
			if q == "" {
				q = s.Qualifier()
			}
			alias := col.Alias
			if alias == "" {
				alias = "geometry"
			}
			return "ST_AsGeoJSON(" + q + ".geometry) AS " + alias, alias, nil
		}
		expr, name = col.Name, bare
	}

	if agg != "" {
		if expr == "*" && agg != "COUNT" {
			return "", "", errorf(field, "%s(*) is not valid; only count accepts *", agg)
		}
		expr = agg + "(" + expr + ")"
		name = strings.ToLower(agg)
	}
	if col.Alias != "" {
		return expr + " AS " + col.Alias, col.Alias, nil
	}
	return expr, name, nil
}

func (c *Compiler) writeJoin(w *sqlWriter, s queryir.Select, j queryir.Join, sc *scope, path string) error {
	joinType := j.Type
	if joinType == "" {
		joinType = queryir.JoinInner
	}
	w.write(" ", string(joinType), " JOIN ", j.Table)
	if j.Alias != "" && j.Alias != j.Table {
		w.write(" AS ", j.Alias)
	}
	w.write(" ON ")

	base, other := s.Qualifier(), j.Qualifier()
	condPath := join(path, "condition")

	switch cond := j.On.(type) {
	case queryir.SpatialCondition:
		return writeJoinSpatial(w, cond, base, other, condPath)
	case *queryir.SpatialCondition:
		return writeJoinSpatial(w, *cond, base, other, condPath)
	case queryir.AttributeCondition:
		return c.writeJoinAttribute(w, cond, base, other, sc, condPath)
	case *queryir.AttributeCondition:
		return c.writeJoinAttribute(w, *cond, base, other, sc, condPath)
	default:
		return errorf(condPath, "unsupported join condition %T", j.On)
	}
}

func writeJoinSpatial(w *sqlWriter, cond queryir.SpatialCondition, base, other, path string) error {
	if cond.Op == queryir.OpDWithin {
		if err := checkDistance(cond.Distance, join(path, "distance")); err != nil {
			return err
		}
	}
	if err := writeSpatial(w, cond.Op, base, other, cond.Distance); err != nil {
		return errorf(join(path, "distance"), "%v", err)
	}
	return nil
}

// writeJoinAttribute qualifies unqualified columns with the base table
// (left) and the joined table (right).
func (c *Compiler) writeJoinAttribute(w *sqlWriter, cond queryir.AttributeCondition, base, other string, sc *scope, path string) error {
	left, right := cond.LeftColumn, cond.RightColumn
	if !strings.Contains(left, ".") {
		left = base + "." + left
	}
	if !strings.Contains(right, ".") {
		right = other + "." + right
	}
	if err := c.checkColumnRef(left, sc, join(path, "left_column")); err != nil {
		return err
	}
	if err := c.checkColumnRef(right, sc, join(path, "right_column")); err != nil {
		return err
	}
	w.write(left, " = ", right)
	return nil
}

// writeSpatialFilter writes a spatial restriction of the base table against
// a target table, wrapped in EXISTS unless disabled.
func writeSpatialFilter(w *sqlWriter, base string, sf queryir.SpatialFilter, path string) error {
	switch sf.Op {
	case queryir.OpDWithin:
		if err := checkDistance(sf.Distance, join(path, "distance")); err != nil {
			return err
		}
	case queryir.OpIntersects, queryir.OpContains, queryir.OpWithin:
	default:
		return errorf(join(path, "operation"), "unknown spatial operation %q", sf.Op)
	}

	if sf.UseExists {
		w.write("EXISTS (SELECT 1 FROM ", sf.Target, " WHERE ")
	}
	if err := writeSpatial(w, sf.Op, base, sf.Target, sf.Distance); err != nil {
		return errorf(join(path, "distance"), "%v", err)
	}
	if sf.UseExists {
		w.write(")")
	}
	return nil
}
