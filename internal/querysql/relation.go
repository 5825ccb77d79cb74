package querysql

import (
	"github.com/roach88/geoff/internal/ir"
	"github.com/roach88/geoff/internal/plan"
	"github.com/roach88/geoff/internal/queryir"
)

// side is one end of a relation with its validated scope.
type side struct {
	table plan.SourceTable
	path  string
	scope *scope
}

func (s side) qualifier() string { return s.table.Qualifier() }

func (c *Compiler) compileRelation(g plan.Group, path string) ([]Statement, error) {
	relPath := index(join(path, "relations"), 0)
	ends := g.Relation.Endpoints()

	left, err := c.relationSide(g, ends.Left, path, join(relPath, "left_table"))
	if err != nil {
		return nil, err
	}
	right, err := c.relationSide(g, ends.Right, path, join(relPath, "right_table"))
	if err != nil {
		return nil, err
	}
	if left.qualifier() == right.qualifier() {
		return nil, errorf(join(relPath, "right_table"), "relation must connect two different tables")
	}

	if err := c.checkRelation(g.Relation, left, right, relPath); err != nil {
		return nil, err
	}

	switch ends.Clause {
	case plan.ClauseExists, "":
		return c.compileExists(g.Relation, left, right)
	case plan.ClauseJoin, plan.ClauseLeftJoin:
		st, err := c.compileJoin(g.Relation, ends.Clause, left, right)
		if err != nil {
			return nil, err
		}
		return []Statement{st}, nil
	default:
		return nil, errorf(join(relPath, "clause"), "unknown clause %q", ends.Clause)
	}
}

func (c *Compiler) relationSide(g plan.Group, qualifier, groupPath, field string) (side, error) {
	for i, t := range g.Tables {
		if t.Qualifier() != qualifier {
			continue
		}
		path := index(join(groupPath, "source_tables"), i)
		sc, err := c.tableScope(t, path)
		if err != nil {
			return side{}, err
		}
		return side{table: t, path: path, scope: sc}, nil
	}
	return side{}, errorf(field, "%q is not one of the group's source tables", qualifier)
}

func (c *Compiler) checkRelation(rel plan.Relation, left, right side, path string) error {
	switch r := rel.(type) {
	case plan.SpatialRelation:
		return c.checkSpatial(r.Method, r.Distance, left, right, path)
	case *plan.SpatialRelation:
		return c.checkSpatial(r.Method, r.Distance, left, right, path)
	case plan.AttributeRelation:
		return c.checkAttribute(r.LeftColumn, r.RightColumn, left, right, path)
	case *plan.AttributeRelation:
		return c.checkAttribute(r.LeftColumn, r.RightColumn, left, right, path)
	default:
		return errorf(path, "unsupported relation type %T", rel)
	}
}

func (c *Compiler) checkSpatial(op queryir.SpatialOp, distance ir.Number, left, right side, path string) error {
	switch op {
	case queryir.OpDWithin:
		if err := checkDistance(distance, join(path, "params.distance_meters")); err != nil {
			return err
		}
	case queryir.OpIntersects, queryir.OpContains, queryir.OpWithin:
	default:
		return errorf(join(path, "method"), "unknown spatial method %q", op)
	}
	if err := c.checkColumnRef(left.qualifier()+".geometry", left.scope, join(path, "left_table")); err != nil {
		return err
	}
	return c.checkColumnRef(right.qualifier()+".geometry", right.scope, join(path, "right_table"))
}

func checkDistance(d ir.Number, field string) error {
	if d == "" {
		return errorf(field, "is required for st_dwithin")
	}
	f, err := d.Float64()
	if err != nil || f < 0 {
		return errorf(field, "must be a non-negative number, got %q", string(d))
	}
	return nil
}

func (c *Compiler) checkAttribute(lcol, rcol string, left, right side, path string) error {
	if lcol == "" {
		return errorf(join(path, "params.left_column"), "is required for attribute relations")
	}
	if rcol == "" {
		return errorf(join(path, "params.right_column"), "is required for attribute relations")
	}
	if err := c.checkSideColumn(lcol, left, join(path, "params.left_column")); err != nil {
		return err
	}
	return c.checkSideColumn(rcol, right, join(path, "params.right_column"))
}

func (c *Compiler) checkSideColumn(ref string, s side, field string) error {
	q, col := splitRef(ref)
	if q != "" && q != s.qualifier() && q != s.table.Table {
		return errorf(field, "column %q does not belong to table %q", ref, s.qualifier())
	}
	return c.checkColumnRef(s.qualifier()+"."+col, s.scope, field)
}

// writePredicate writes the relation's join predicate between the two
// qualifiers.
func writePredicate(w *sqlWriter, rel plan.Relation, left, right side) error {
	switch r := rel.(type) {
	case plan.SpatialRelation:
		return writeSpatial(w, r.Method, left.qualifier(), right.qualifier(), r.Distance)
	case *plan.SpatialRelation:
		return writeSpatial(w, r.Method, left.qualifier(), right.qualifier(), r.Distance)
	case plan.AttributeRelation:
		writeEquality(w, r.LeftColumn, r.RightColumn, left, right)
	case *plan.AttributeRelation:
		writeEquality(w, r.LeftColumn, r.RightColumn, left, right)
	}
	return nil
}

func writeEquality(w *sqlWriter, lcol, rcol string, left, right side) {
	_, l := splitRef(lcol)
	_, r := splitRef(rcol)
	w.write(left.qualifier(), ".", l, " = ", right.qualifier(), ".", r)
}

// writeSource writes a table as a FROM item. A table with filters becomes a
// filtered subquery so its filters stay on its own side of the relation.
func (c *Compiler) writeSource(w *sqlWriter, s side) error {
	if len(s.table.Filters) == 0 {
		writeFrom(w, s.table)
		return nil
	}
	w.write("(SELECT * FROM ")
	writeFrom(w, s.table)
	w.write(" WHERE ")
	if err := c.writeFilters(w, s.table.Filters, s.scope, join(s.path, "filters")); err != nil {
		return err
	}
	w.write(") AS ", s.qualifier())
	return nil
}

// compileExists emits two statements:
//
//	SELECT <left cols> FROM L WHERE [(<left filters>) AND ]EXISTS (SELECT 1 FROM <right> WHERE <predicate>);
//	<the right table's standalone statement>
func (c *Compiler) compileExists(rel plan.Relation, left, right side) ([]Statement, error) {
	items, err := c.renderColumns(left.table, left.scope, left.path)
	if err != nil {
		return nil, err
	}
	keys, err := groupKeys(items, join(left.path, "columns"))
	if err != nil {
		return nil, err
	}

	var w sqlWriter
	w.write("SELECT ")
	writeItems(&w, items)
	w.write(" FROM ")
	writeFrom(&w, left.table)
	w.write(" WHERE ")
	if len(left.table.Filters) > 0 {
		w.write("(")
		if err := c.writeFilters(&w, left.table.Filters, left.scope, join(left.path, "filters")); err != nil {
			return nil, err
		}
		w.write(") AND ")
	}
	w.write("EXISTS (SELECT 1 FROM ")
	if err := c.writeSource(&w, right); err != nil {
		return nil, err
	}
	w.write(" WHERE ")
	if err := writePredicate(&w, rel, left, right); err != nil {
		return nil, errorf(left.path, "%v", err)
	}
	w.write(")")
	writeGroupBy(&w, keys)
	first := w.statement(left.qualifier())

	second, err := c.compileTable(right.table, right.path)
	if err != nil {
		return nil, err
	}
	return []Statement{first, second}, nil
}

// joinColumns renders one side's columns for a join, expanding * into the
// catalog's columns so the geometry and name-collision rules see every
// column. Without a catalog a right-side * cannot be expanded and is
// rejected; a left-side * is kept as written.
func (c *Compiler) joinColumns(s side, right bool) ([]selectItem, error) {
	var items []selectItem
	for i, col := range s.table.Columns {
		field := index(join(s.path, "columns"), i)
		prefix, name := splitRef(col.Name)
		if col.Expression != "" || name != "*" || col.Aggregate != "" ||
			(prefix != "" && prefix != s.qualifier() && prefix != s.table.Table) {
			item, err := c.renderColumn(s.table, col, s.scope, field)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			continue
		}

		if c.allow == nil {
			if right {
				return nil, errorf(field, "* on the right side of a join needs the table catalog; list the columns instead")
			}
			item, err := c.renderColumn(s.table, col, s.scope, field)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			continue
		}

		names := c.allow.Columns(s.table.Table)
		if len(names) == 0 {
			return nil, errorf(field, "table %q has no known columns", s.table.Table)
		}
		for _, n := range names {
			item, err := c.renderColumn(s.table, queryir.Column{Name: n}, s.scope, field)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// compileJoin emits one statement projecting both sides:
//
//	SELECT <left cols>, <right cols> FROM <left> JOIN|LEFT JOIN <right> ON <predicate>;
//
// A * on either side is expanded to named columns first. The right side's
// bare geometry column is dropped, and right columns whose output name is
// already taken are renamed <qualifier>_<name>.
func (c *Compiler) compileJoin(rel plan.Relation, clause plan.Clause, left, right side) (Statement, error) {
	litems, err := c.joinColumns(left, false)
	if err != nil {
		return Statement{}, err
	}
	ritems, err := c.joinColumns(right, true)
	if err != nil {
		return Statement{}, err
	}

	taken := make(map[string]bool, len(litems))
	for _, it := range litems {
		taken[it.name] = true
	}

	items := litems
	for _, it := range ritems {
		if it.geometry {
			continue
		}
		if !it.star && taken[it.name] {
			it.alias = right.qualifier() + "_" + it.name
			it.name = it.alias
		}
		taken[it.name] = true
		items = append(items, it)
	}

	keys, err := groupKeys(items, join(left.path, "columns"))
	if err != nil {
		return Statement{}, err
	}

	keyword := " JOIN "
	if clause == plan.ClauseLeftJoin {
		keyword = " LEFT JOIN "
	}

	var w sqlWriter
	w.write("SELECT ")
	writeItems(&w, items)
	w.write(" FROM ")
	if err := c.writeSource(&w, left); err != nil {
		return Statement{}, err
	}
	w.write(keyword)
	if err := c.writeSource(&w, right); err != nil {
		return Statement{}, err
	}
	w.write(" ON ")
	if err := writePredicate(&w, rel, left, right); err != nil {
		return Statement{}, errorf(left.path, "%v", err)
	}
	writeGroupBy(&w, keys)
	return w.statement(left.qualifier()), nil
}
