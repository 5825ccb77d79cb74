package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// SelectTables returns the tables whose keywords occur in the question, in
// catalog order. When fewer than minMatches tables match, every table is
// returned.
func (c *Catalog) SelectTables(question string, minMatches int) []*Table {
	fold := cases.Fold()
	q := fold.String(question)

	var matched []*Table
	for _, t := range c.tables {
		for _, kw := range t.Keywords {
			if kw != "" && strings.Contains(q, fold.String(kw)) {
				matched = append(matched, t)
				break
			}
		}
	}
	if len(matched) < minMatches {
		return c.tables
	}
	return matched
}

// Prompt renders tables as the schema section of a generation prompt.
func Prompt(tables []*Table) string {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Table: ")
		b.WriteString(t.Name)
		b.WriteString("\n")
		if t.Description != "" {
			b.WriteString("Description: ")
			b.WriteString(t.Description)
			b.WriteString("\n")
		}
		for _, col := range t.Columns {
			b.WriteString("- ")
			b.WriteString(col.Name)
			b.WriteString(" (")
			b.WriteString(col.Type)
			b.WriteString(")")
			if col.Description != "" {
				b.WriteString(": ")
				b.WriteString(col.Description)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
