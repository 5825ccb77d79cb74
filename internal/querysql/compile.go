package querysql

import (
	"github.com/roach88/geoff/internal/plan"
)

// Statement is one compiled SQL statement.
type Statement struct {
	// SQL is the display text with literals inlined.
	SQL string `json:"sql"`
	// Query is SQL with $n placeholders; Args holds their values in order.
	Query string `json:"query"`
	Args  []any  `json:"args"`
	// Layer names the map layer the statement feeds: the left or only
	// table's qualifier, or the plan's layer_name.
	Layer string `json:"layer"`
}

// Compiler turns plans into statements. It holds no per-plan state and is
// safe for concurrent use.
type Compiler struct {
	allow Allowlist
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithAllowlist enables strict mode: every table and column must be known to
// a.
func WithAllowlist(a Allowlist) Option {
	return func(c *Compiler) {
		c.allow = a
	}
}

// NewCompiler creates a Compiler.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles a plan into statements, in group order and then in
// emission order within each group:
//
//   - a group without a relation yields one statement per table
//   - exists yields the filtered left table, then the right table alone
//   - join and left join yield one combined statement
//
// Tables of a related group that the relation does not mention follow as
// standalone statements. Layers-form plans yield one statement per layer.
func (c *Compiler) Compile(p *plan.Plan) ([]Statement, error) {
	if p == nil {
		return nil, errorf("", "plan is nil")
	}
	switch p.Action {
	case plan.ActionSelect, plan.ActionAggregate:
	case "":
		return nil, errorf("action", "is required")
	default:
		return nil, errorf("action", "unsupported action %q: only select and aggregate are implemented", p.Action)
	}

	if len(p.Groups) == 0 && len(p.Layers) == 0 {
		return nil, errorf("groups", "plan has no groups or layers")
	}

	var out []Statement

	for i, l := range p.Layers {
		path := index("layers", i)
		st, err := c.assemble(l.Query, join(path, "query"))
		if err != nil {
			return nil, err
		}
		if l.Name != "" {
			st.Layer = l.Name
		}
		out = append(out, st)
	}

	for i, g := range p.Groups {
		path := index("groups", i)
		if p.Legacy {
			path = ""
		}
		stmts, err := c.compileGroup(g, path)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}

	return out, nil
}

func (c *Compiler) compileGroup(g plan.Group, path string) ([]Statement, error) {
	tablesPath := join(path, "source_tables")
	if len(g.Tables) == 0 {
		return nil, errorf(tablesPath, "must not be empty")
	}

	if g.Relation == nil {
		out := make([]Statement, 0, len(g.Tables))
		for i, t := range g.Tables {
			st, err := c.compileTable(t, index(tablesPath, i))
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
		return out, nil
	}

	out, err := c.compileRelation(g, path)
	if err != nil {
		return nil, err
	}

	ends := g.Relation.Endpoints()
	for i, t := range g.Tables {
		if q := t.Qualifier(); q == ends.Left || q == ends.Right {
			continue
		}
		st, err := c.compileTable(t, index(tablesPath, i))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// compileTable emits the standalone statement for one table:
//
//	SELECT <cols> FROM T[ AS A][ WHERE <filters>][ GROUP BY <keys>];
func (c *Compiler) compileTable(t plan.SourceTable, path string) (Statement, error) {
	sc, err := c.tableScope(t, path)
	if err != nil {
		return Statement{}, err
	}
	items, err := c.renderColumns(t, sc, path)
	if err != nil {
		return Statement{}, err
	}
	keys, err := groupKeys(items, join(path, "columns"))
	if err != nil {
		return Statement{}, err
	}

	var w sqlWriter
	w.write("SELECT ")
	writeItems(&w, items)
	w.write(" FROM ")
	writeFrom(&w, t)
	if len(t.Filters) > 0 {
		w.write(" WHERE ")
		if err := c.writeFilters(&w, t.Filters, sc, join(path, "filters")); err != nil {
			return Statement{}, err
		}
	}
	writeGroupBy(&w, keys)
	return w.statement(t.Qualifier()), nil
}

// tableScope validates a source table's names and returns its scope.
func (c *Compiler) tableScope(t plan.SourceTable, path string) (*scope, error) {
	if err := c.checkTable(t.Table, join(path, "table")); err != nil {
		return nil, err
	}
	if err := checkAlias(t.Alias, join(path, "alias")); err != nil {
		return nil, err
	}
	if len(t.Columns) == 0 {
		return nil, errorf(join(path, "columns"), "must not be empty")
	}
	sc := newScope()
	sc.add(t.Qualifier(), t.Table)
	return sc, nil
}

func writeFrom(w *sqlWriter, t plan.SourceTable) {
	w.write(t.Table)
	if t.Alias != "" {
		w.write(" AS ", t.Alias)
	}
}
