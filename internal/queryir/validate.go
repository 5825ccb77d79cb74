package queryir

import (
	"fmt"
	"strings"
)

// ValidationResult contains advisory findings about a query object.
//
// Structural defects (missing table, missing columns) are compile errors
// and are reported by the assembler. Validate only flags queries that will
// compile and run but are likely to render poorly as map layers.
type ValidationResult struct {
	// Clean is true when no warnings were produced.
	Clean bool

	// Warnings lists the findings in traversal order.
	Warnings []string
}

// Validate inspects a query object and returns advisory warnings.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery("query", query)

	return ValidationResult{
		Clean:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(path string, q Query) {
	if q == nil {
		v.addWarning("%s: nil query", path)
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(path, query)
	case *Select:
		v.validateSelect(path, *query)
	case Union:
		v.validateUnion(path, query)
	case *Union:
		v.validateUnion(path, *query)
	case CTE:
		v.validateCTE(path, query)
	case *CTE:
		v.validateCTE(path, *query)
	default:
		v.addWarning("%s: unknown query type %T", path, q)
	}
}

func (v *validator) validateSelect(path string, s Select) {
	hasGeometry := false
	hasStar := false
	aggregated := 0
	for _, col := range s.Columns {
		switch {
		case col.Name == "*":
			hasStar = true
		case isGeometryName(col.Name), strings.Contains(strings.ToLower(col.Expression), "st_asgeojson"):
			hasGeometry = true
		}
		if col.Aggregate != "" {
			aggregated++
		}
	}

	if hasStar {
		v.addWarning("%s: SELECT * returns raw geometry; layers decode it from WKB", path)
	} else if !hasGeometry {
		v.addWarning("%s: no geometry column; result renders as a plain table", path)
	}

	if s.Kind == KindAggregate && aggregated == 0 {
		v.addWarning("%s: aggregate query has no aggregated column", path)
	}
	if aggregated > 0 && aggregated < len(s.Columns) && len(s.GroupBy) == 0 {
		v.addWarning("%s: mixes aggregated and plain columns without GROUP BY", path)
	}

	joined := map[string]bool{s.Qualifier(): true, s.Table: true}
	for i, j := range s.Joins {
		joined[j.Qualifier()] = true
		joined[j.Table] = true
		if j.Type == JoinRight || j.Type == JoinFull {
			v.addWarning("%s.joins[%d]: %s JOIN may produce rows without base geometry", path, i, j.Type)
		}
	}

	for i, sf := range s.SpatialFilters {
		if !sf.UseExists && !joined[sf.Target] {
			v.addWarning("%s.spatial_filters[%d]: %s is not joined; use_exists=false needs it in FROM", path, i, sf.Target)
		}
	}
}

func (v *validator) validateUnion(path string, u Union) {
	if len(u.Queries) < 2 {
		v.addWarning("%s: union of %d queries", path, len(u.Queries))
	}

	width := -1
	for i, sub := range u.Queries {
		v.validateSelect(fmt.Sprintf("%s.queries[%d]", path, i), sub)
		if hasStarColumn(sub) {
			continue
		}
		if width == -1 {
			width = len(sub.Columns)
		} else if width != len(sub.Columns) {
			v.addWarning("%s.queries[%d]: %d columns, expected %d", path, i, len(sub.Columns), width)
		}
	}
}

func (v *validator) validateCTE(path string, c CTE) {
	used := map[string]bool{}
	if c.Main != nil {
		used[c.Main.Table] = true
		for _, j := range c.Main.Joins {
			used[j.Table] = true
		}
		for _, sf := range c.Main.SpatialFilters {
			used[sf.Target] = true
		}
	}

	for i, named := range c.CTEs {
		v.validateSelect(fmt.Sprintf("%s.ctes[%d]", path, i), named.Query)
		if !used[named.Name] {
			v.addWarning("%s.ctes[%d]: %s is not referenced by the main query", path, i, named.Name)
		}
	}

	if c.Main != nil {
		v.validateSelect(path+".main_query", *c.Main)
	}
}

func isGeometryName(name string) bool {
	return name == "geometry" || strings.HasSuffix(name, ".geometry")
}

func hasStarColumn(s Select) bool {
	for _, col := range s.Columns {
		if col.Name == "*" || strings.HasSuffix(col.Name, ".*") {
			return true
		}
	}
	return false
}
