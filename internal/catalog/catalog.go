package catalog

import (
	"fmt"
	"strings"
)

// Column is one table column.
type Column struct {
	Name        string `yaml:"name" json:"column_name"`
	Type        string `yaml:"type" json:"column_type"`
	Description string `yaml:"description,omitempty" json:"description"`
}

// Table is one queryable table.
type Table struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
	Columns     []Column `yaml:"columns"`
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Catalog is an ordered, immutable set of tables. It is safe for concurrent
// use.
type Catalog struct {
	tables []*Table
	byName map[string]*Table
}

// New builds a catalog, rejecting empty or duplicate table names.
func New(tables []Table) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Table, len(tables))}
	for i := range tables {
		t := tables[i]
		if t.Name == "" {
			return nil, fmt.Errorf("table %d: name is required", i)
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("table %q: defined more than once", t.Name)
		}
		c.tables = append(c.tables, &t)
		c.byName[t.Name] = &t
	}
	return c, nil
}

// Tables returns the tables in catalog order.
func (c *Catalog) Tables() []*Table {
	return c.tables
}

// Names returns the table names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.tables))
	for i, t := range c.tables {
		out[i] = t.Name
	}
	return out
}

// Table looks up a table by name. A schema prefix ("data.parks") is ignored.
func (c *Catalog) Table(name string) (*Table, bool) {
	if _, bare, ok := strings.Cut(name, "."); ok {
		name = bare
	}
	t, ok := c.byName[name]
	return t, ok
}

// HasTable implements querysql.Allowlist.
func (c *Catalog) HasTable(table string) bool {
	_, ok := c.Table(table)
	return ok
}

// HasColumn implements querysql.Allowlist.
func (c *Catalog) HasColumn(table, column string) bool {
	t, ok := c.Table(table)
	return ok && t.HasColumn(column)
}

// Columns implements querysql.Allowlist.
func (c *Catalog) Columns(table string) []string {
	t, ok := c.Table(table)
	if !ok {
		return nil
	}
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Grouped returns every table's columns keyed by table name.
func (c *Catalog) Grouped() map[string][]Column {
	out := make(map[string][]Column, len(c.tables))
	for _, t := range c.tables {
		cols := make([]Column, len(t.Columns))
		copy(cols, t.Columns)
		out[t.Name] = cols
	}
	return out
}

// WithKeywords returns a copy of c whose tables without keywords take them
// from other, matched by table name.
func (c *Catalog) WithKeywords(other *Catalog) *Catalog {
	tables := make([]Table, 0, len(c.tables))
	for _, t := range c.tables {
		cp := *t
		if len(cp.Keywords) == 0 && other != nil {
			if o, ok := other.byName[t.Name]; ok {
				cp.Keywords = o.Keywords
				if cp.Description == "" {
					cp.Description = o.Description
				}
			}
		}
		tables = append(tables, cp)
	}
	// Names were unique in c, so New cannot fail.
	out, _ := New(tables)
	return out
}
