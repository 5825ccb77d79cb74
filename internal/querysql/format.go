package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/geoff/internal/ir"
)

// FormatValue renders a literal as SQL text.
//
//	nil, Null -> NULL
//	Bool      -> TRUE / FALSE
//	Number    -> the decimal text as written
//	String    -> single-quoted, ' doubled
//	List      -> (a, b, ...)
//
// No other escaping is applied. Display text only; executed statements bind
// literals as parameters.
func FormatValue(v ir.Value) string {
	switch val := v.(type) {
	case nil, ir.Null, *ir.Null:
		return "NULL"
	case ir.Bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case ir.Number:
		return string(val)
	case ir.String:
		return quote(string(val))
	case ir.List:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return quote(fmt.Sprint(v))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
