package querysql

import (
	"github.com/roach88/geoff/internal/ir"
	"github.com/roach88/geoff/internal/plan"
	"github.com/roach88/geoff/internal/queryir"
)

// writeFilters writes filters in order, each after the first prefixed by
// its own logic (AND by default). Nothing is written for an empty list.
// path is the JSON path of the filters array.
func (c *Compiler) writeFilters(w *sqlWriter, filters []queryir.Filter, sc *scope, path string) error {
	for i, f := range filters {
		fpath := index(path, i)

		if i > 0 {
			logic := f.Logic
			if logic == "" {
				logic = queryir.LogicAnd
			}
			w.write(" ", string(logic), " ")
		}

		if err := c.checkColumnRef(f.Column, sc, join(fpath, "column")); err != nil {
			return err
		}
		if err := plan.CheckOperand(f.Operator, f.Value); err != nil {
			return errorf(join(fpath, "value"), "%v", err)
		}

		if err := writeCondition(w, f); err != nil {
			return errorf(join(fpath, "value"), "%v", err)
		}
	}
	return nil
}

func writeCondition(w *sqlWriter, f queryir.Filter) error {
	op := string(f.Operator)

	switch f.Operator {
	case queryir.OpIsNull, queryir.OpIsNotNull:
		w.write(f.Column, " ", op)
		return nil

	case queryir.OpBetween, queryir.OpNotBetween:
		bounds := f.Value.(ir.List)
		w.write(f.Column, " ", op, " ")
		if err := w.literal(bounds[0]); err != nil {
			return err
		}
		w.write(" AND ")
		return w.literal(bounds[1])

	case queryir.OpIn, queryir.OpNotIn:
		w.write(f.Column, " ", op, " (")
		for i, item := range f.Value.(ir.List) {
			if i > 0 {
				w.write(", ")
			}
			if err := w.literal(item); err != nil {
				return err
			}
		}
		w.write(")")
		return nil

	default:
		w.write(f.Column, " ", op, " ")
		return w.literal(f.Value)
	}
}

// writeSpatial writes a PostGIS predicate between two qualifiers. Distance
// predicates compare geography so distances are meters.
func writeSpatial(w *sqlWriter, op queryir.SpatialOp, left, right string, distance ir.Number) error {
	if op == queryir.OpDWithin {
		w.write("ST_DWithin(", left, ".geometry::geography, ", right, ".geometry::geography, ")
		if err := w.literal(distance); err != nil {
			return err
		}
		w.write(")")
		return nil
	}
	w.write(string(op), "(", left, ".geometry, ", right, ".geometry)")
	return nil
}
