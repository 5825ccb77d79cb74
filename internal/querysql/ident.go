package querysql

import (
	"regexp"
	"strings"
)

// Allowlist reports which tables and columns generated SQL may reference.
// A nil Allowlist disables the catalog checks; identifier syntax is always
// checked.
type Allowlist interface {
	HasTable(table string) bool
	HasColumn(table, column string) bool
	// Columns lists a table's columns in catalog order.
	Columns(table string) []string
}

var (
	identRE     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	columnRefRE = regexp.MustCompile(`^(?:[A-Za-z_][A-Za-z0-9_]*\.)?[A-Za-z_][A-Za-z0-9_]*$`)
)

// splitRef splits "q.col" into ("q", "col"); an unqualified ref has an empty
// qualifier.
func splitRef(ref string) (string, string) {
	if q, col, ok := strings.Cut(ref, "."); ok {
		return q, col
	}
	return "", ref
}

// scope is the set of names visible to one SELECT.
type scope struct {
	// qualifier -> catalog table. CTE names map to "".
	tables map[string]string
	// output column aliases, usable in GROUP BY / ORDER BY
	outputs map[string]bool
}

func newScope() *scope {
	return &scope{tables: map[string]string{}, outputs: map[string]bool{}}
}

func (s *scope) add(qualifier, table string) {
	s.tables[qualifier] = table
}

func (s *scope) clone() *scope {
	out := newScope()
	for q, t := range s.tables {
		out.tables[q] = t
	}
	return out
}

// checkTable validates a table name (optionally schema-qualified) and, in
// strict mode, its presence in the catalog.
func (c *Compiler) checkTable(table, field string) error {
	if !columnRefRE.MatchString(table) {
		return errorf(field, "invalid table name %q", table)
	}
	if c.allow != nil && !c.allow.HasTable(table) {
		return errorf(field, "unknown table %q", table)
	}
	return nil
}

func checkAlias(alias, field string) error {
	if alias != "" && !identRE.MatchString(alias) {
		return errorf(field, "invalid alias %q", alias)
	}
	return nil
}

// checkColumnRef validates "col" or "q.col" against the scope.
func (c *Compiler) checkColumnRef(ref string, sc *scope, field string) error {
	if !columnRefRE.MatchString(ref) {
		return errorf(field, "invalid column reference %q", ref)
	}
	if c.allow == nil {
		return nil
	}

	q, col := splitRef(ref)
	if q != "" {
		table, ok := sc.tables[q]
		if !ok {
			return errorf(field, "unknown table qualifier %q", q)
		}
		if table == "" || c.allow.HasColumn(table, col) {
			return nil
		}
		return errorf(field, "unknown column %q in table %q", col, table)
	}

	if c.knownBare(col, sc) {
		return nil
	}
	return errorf(field, "unknown column %q", col)
}

// knownBare reports whether an unqualified name resolves to a column of some
// table in scope or to an output alias.
func (c *Compiler) knownBare(name string, sc *scope) bool {
	if sc.outputs[name] {
		return true
	}
	for _, table := range sc.tables {
		if table == "" || c.allow.HasColumn(table, name) {
			return true
		}
	}
	return false
}

// checkExpression screens a free-form SQL expression. Statement separators
// and comments are always rejected. In strict mode every identifier outside
// string literals must be a function, a type, a keyword, a table qualifier
// in scope or a known column.
func (c *Compiler) checkExpression(expr string, sc *scope, field string) error {
	if strings.TrimSpace(expr) == "" {
		return errorf(field, "expression is empty")
	}
	for _, bad := range []string{";", "--", "/*"} {
		if strings.Contains(expr, bad) {
			return errorf(field, "expression must not contain %q", bad)
		}
	}
	if c.allow == nil {
		return nil
	}

	for i := 0; i < len(expr); {
		ch := expr[i]
		switch {
		case ch == '\'':
			end := skipString(expr, i)
			if end < 0 {
				return errorf(field, "unterminated string literal in expression")
			}
			i = end

		case ch == '"':
			return errorf(field, "quoted identifiers are not allowed in expressions")

		case isDigit(ch):
			for i < len(expr) && (isIdentChar(expr[i]) || expr[i] == '.') {
				i++
			}

		case isIdentStart(ch):
			start := i
			for i < len(expr) && isIdentChar(expr[i]) {
				i++
			}
			name := expr[start:i]

			if i+1 < len(expr) && expr[i] == '.' && isIdentStart(expr[i+1]) {
				j := i + 1
				for j < len(expr) && isIdentChar(expr[j]) {
					j++
				}
				if err := c.checkColumnRef(name+"."+expr[i+1:j], sc, field); err != nil {
					return err
				}
				i = j
				continue
			}

			if err := c.checkWord(name, precededByCast(expr, start), followedByParen(expr, i), sc, field); err != nil {
				return err
			}

		default:
			i++
		}
	}
	return nil
}

func (c *Compiler) checkWord(name string, isType, isCall bool, sc *scope, field string) error {
	lower := strings.ToLower(name)
	switch {
	case isType:
		if sqlTypes[lower] {
			return nil
		}
		return errorf(field, "unknown type %q in expression", name)
	case isCall:
		if sqlFunctions[lower] || strings.HasPrefix(lower, "st_") {
			return nil
		}
		return errorf(field, "unknown function %q in expression", name)
	case sqlKeywords[lower] || sqlTypes[lower]:
		return nil
	}
	if _, ok := sc.tables[name]; ok {
		return nil
	}
	if c.knownBare(name, sc) {
		return nil
	}
	return errorf(field, "unknown identifier %q in expression", name)
}

// skipString returns the index just past the string literal starting at
// i, or -1 when it is unterminated. '' inside the literal is an escaped
// quote.
func skipString(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != '\'' {
			continue
		}
		if j+1 < len(s) && s[j+1] == '\'' {
			j++
			continue
		}
		return j + 1
	}
	return -1
}

func precededByCast(s string, i int) bool {
	j := i - 1
	for j >= 0 && s[j] == ' ' {
		j--
	}
	return j >= 1 && s[j] == ':' && s[j-1] == ':'
}

func followedByParen(s string, i int) bool {
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return i < len(s) && s[i] == '('
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var sqlKeywords = wordSet(
	"and", "or", "not", "null", "is", "in", "between", "like", "ilike",
	"case", "when", "then", "else", "end", "true", "false", "distinct",
	"as", "asc", "desc", "nulls", "first", "last", "from", "interval",
	"filter", "where", "over", "partition", "by",
)

var sqlTypes = wordSet(
	"geography", "geometry", "numeric", "decimal", "int", "integer", "bigint",
	"smallint", "real", "float", "double", "precision", "text", "varchar",
	"date", "timestamp", "timestamptz", "boolean",
)

// PostGIS st_* functions are accepted by prefix.
var sqlFunctions = wordSet(
	"count", "sum", "avg", "min", "max", "to_char", "round", "coalesce",
	"nullif", "lower", "upper", "length", "concat", "greatest", "least",
	"abs", "floor", "ceil", "extract", "date_part", "date_trunc", "now",
	"cast", "string_agg", "array_agg", "trim",
)
