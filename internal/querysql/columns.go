package querysql

import (
	"regexp"
	"strings"

	"github.com/roach88/geoff/internal/plan"
	"github.com/roach88/geoff/internal/queryir"
)

// measureFormat renders measurements as thousands-separated text with two
// decimals.
const measureFormat = "FM999,999,999,990.00"

// measurementRE matches ST_Area / ST_Length / ST_Perimeter over a table's
// geometry, optionally qualified and optionally already cast.
var measurementRE = regexp.MustCompile(`^(?i)ST_(Area|Length|Perimeter)\(\s*(?:([A-Za-z_][A-Za-z0-9_]*)\.)?geometry(?:\s*::\s*geography)?\s*\)$`)

var measureFuncs = map[string]string{
	"area":      "ST_Area",
	"length":    "ST_Length",
	"perimeter": "ST_Perimeter",
}

var aggregates = map[string]string{
	"count": "COUNT",
	"sum":   "SUM",
	"avg":   "AVG",
	"min":   "MIN",
	"max":   "MAX",
}

func aggregateFunc(name, field string) (string, error) {
	if name == "" {
		return "", nil
	}
	fn, ok := aggregates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", errorf(field, "unknown aggregate %q: expected count, sum, avg, min or max", name)
	}
	return fn, nil
}

// selectItem is one rendered projection.
type selectItem struct {
	expr  string // without alias
	alias string
	name  string // output column name
	key   string // GROUP BY expression; empty for aggregates

	aggregate bool
	star      bool
	// geometry is a bare geometry column with no explicit alias.
	geometry bool
}

func (s selectItem) String() string {
	if s.alias == "" {
		return s.expr
	}
	return s.expr + " AS " + s.alias
}

// renderColumns renders a source table's columns in plan order.
func (c *Compiler) renderColumns(t plan.SourceTable, sc *scope, path string) ([]selectItem, error) {
	items := make([]selectItem, 0, len(t.Columns))
	for i, col := range t.Columns {
		item, err := c.renderColumn(t, col, sc, index(join(path, "columns"), i))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Compiler) renderColumn(t plan.SourceTable, col queryir.Column, sc *scope, field string) (selectItem, error) {
	q := t.Qualifier()

	agg, err := aggregateFunc(col.Aggregate, join(field, "aggregate"))
	if err != nil {
		return selectItem{}, err
	}
	if err := checkAlias(col.Alias, join(field, "alias")); err != nil {
		return selectItem{}, err
	}

	if col.Expression != "" {
		return c.renderExpression(t, col, agg, sc, field)
	}

	prefix, name := splitRef(col.Name)
	if prefix != "" && prefix != q && prefix != t.Table {
		return selectItem{}, errorf(field, "column %q does not belong to table %q", col.Name, q)
	}

	if name == "*" {
		switch agg {
		case "":
			return selectItem{expr: q + ".*", name: "*", star: true}, nil
		case "COUNT":
			return aggItem("COUNT(*)", col.Alias, "count"), nil
		default:
			return selectItem{}, errorf(field, "%s(*) is not valid; only count accepts *", agg)
		}
	}

	if err := c.checkColumnRef(q+"."+name, sc, field); err != nil {
		return selectItem{}, err
	}
	ref := q + "." + name

	if agg != "" {
		return aggItem(agg+"("+ref+")", col.Alias, strings.ToLower(agg)), nil
	}

	if name == "geometry" {
		alias := col.Alias
		if alias == "" {
			alias = "geometry"
		}
		return selectItem{
			expr:     "ST_AsGeoJSON(" + ref + ")",
			alias:    alias,
			name:     alias,
			key:      ref,
			geometry: col.Alias == "",
		}, nil
	}

	item := selectItem{expr: ref, alias: col.Alias, name: name, key: ref}
	if col.Alias != "" {
		item.name = col.Alias
	}
	return item, nil
}

func (c *Compiler) renderExpression(t plan.SourceTable, col queryir.Column, agg string, sc *scope, field string) (selectItem, error) {
	q := t.Qualifier()
	exprField := join(field, "expression")

	if m := measurementRE.FindStringSubmatch(strings.TrimSpace(col.Expression)); m != nil {
		if m[2] != "" && m[2] != q && m[2] != t.Table {
			return selectItem{}, errorf(exprField, "qualifier %q does not belong to table %q", m[2], q)
		}
		if err := c.checkColumnRef(q+".geometry", sc, exprField); err != nil {
			return selectItem{}, err
		}

		kind := strings.ToLower(m[1])
		unit := "m"
		if kind == "area" {
			unit = "m2"
		}
		measure := measureFuncs[kind] + "(" + q + ".geometry::geography)"

		alias := col.Alias
		if alias == "" {
			alias = t.Table + "_" + kind + "_" + unit
		}
		if agg != "" {
			return aggItem(toChar(agg+"("+measure+")"), alias, alias), nil
		}
		expr := toChar(measure)
		return selectItem{expr: expr, alias: alias, name: alias, key: expr}, nil
	}

	if err := c.checkExpression(col.Expression, sc, exprField); err != nil {
		return selectItem{}, err
	}
	if agg != "" {
		return aggItem(agg+"("+col.Expression+")", col.Alias, strings.ToLower(agg)), nil
	}
	name := col.Alias
	if name == "" {
		name = col.Expression
	}
	return selectItem{expr: col.Expression, alias: col.Alias, name: name, key: col.Expression}, nil
}

func aggItem(expr, alias, defaultName string) selectItem {
	name := alias
	if name == "" {
		name = defaultName
	}
	return selectItem{expr: expr, alias: alias, name: name, aggregate: true}
}

func toChar(expr string) string {
	return "to_char(" + expr + ", '" + measureFormat + "')"
}

// groupKeys returns the GROUP BY terms for a projection: the plain items'
// source expressions when aggregates and plain items are mixed, else nil.
func groupKeys(items []selectItem, field string) ([]string, error) {
	var hasAgg, hasPlain bool
	for _, it := range items {
		if it.aggregate {
			hasAgg = true
		} else {
			hasPlain = true
		}
	}
	if !hasAgg || !hasPlain {
		return nil, nil
	}

	keys := make([]string, 0, len(items))
	for _, it := range items {
		if it.aggregate {
			continue
		}
		if it.star {
			return nil, errorf(field, "cannot combine * with aggregate columns")
		}
		keys = append(keys, it.key)
	}
	return keys, nil
}

func writeItems(w *sqlWriter, items []selectItem) {
	for i, it := range items {
		if i > 0 {
			w.write(", ")
		}
		w.write(it.String())
	}
}

func writeGroupBy(w *sqlWriter, keys []string) {
	if len(keys) == 0 {
		return
	}
	w.write(" GROUP BY ", strings.Join(keys, ", "))
}
