package querysql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geoff/internal/ir"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value ir.Value
		want  string
	}{
		{"absent", nil, "NULL"},
		{"null", ir.Null{}, "NULL"},
		{"true", ir.Bool(true), "TRUE"},
		{"false", ir.Bool(false), "FALSE"},
		{"integer", ir.Number("1980"), "1980"},
		{"decimal kept as written", ir.Number("2.50"), "2.50"},
		{"string", ir.String("Allan Gardens"), "'Allan Gardens'"},
		{"embedded quote", ir.String("O'Brien"), "'O''Brien'"},
		{"empty string", ir.String(""), "''"},
		{"list", ir.List{ir.String("a"), ir.NewNumber(2), ir.Null{}}, "('a', 2, NULL)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.value))
		})
	}
}

// unquote reverses quote for a well-formed literal.
func unquote(t *testing.T, lit string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(lit, "'") && strings.HasSuffix(lit, "'"), "not a literal: %s", lit)
	return strings.ReplaceAll(lit[1:len(lit)-1], "''", "'")
}

func TestFormatValue_QuotingRoundTrip(t *testing.T) {
	for _, s := range []string{"O'Brien", "''", "it's 'quoted'", "plain", "%dog%"} {
		assert.Equal(t, s, unquote(t, FormatValue(ir.String(s))))
	}
}

func TestSQLWriter_NumbersPlaceholdersInOrder(t *testing.T) {
	var w sqlWriter
	w.write("a = ")
	require.NoError(t, w.literal(ir.String("x")))
	w.write(" AND b BETWEEN ")
	require.NoError(t, w.literal(ir.NewNumber(1)))
	w.write(" AND ")
	require.NoError(t, w.literal(ir.Number("2.5")))
	w.write(" AND c = ")
	require.NoError(t, w.literal(ir.Bool(true)))

	st := w.statement("t")
	assert.Equal(t, "a = 'x' AND b BETWEEN 1 AND 2.5 AND c = TRUE;", st.SQL)
	assert.Equal(t, "a = $1 AND b BETWEEN $2 AND $3 AND c = $4;", st.Query)
	assert.Equal(t, []any{"x", int64(1), 2.5, true}, st.Args)
}

func TestSQLWriter_RejectsListLiteral(t *testing.T) {
	var w sqlWriter
	err := w.literal(ir.List{ir.NewNumber(1)})
	require.Error(t, err)
	assert.Empty(t, w.args)
}
