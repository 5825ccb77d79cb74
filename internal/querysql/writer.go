package querysql

import (
	"strconv"
	"strings"

	"github.com/roach88/geoff/internal/ir"
)

// sqlWriter builds the display and executable renditions of one statement
// side by side. Text is written in statement order, so placeholders are
// numbered in the order they appear.
type sqlWriter struct {
	display strings.Builder
	exec    strings.Builder
	args    []any
}

func (w *sqlWriter) write(parts ...string) {
	for _, p := range parts {
		w.display.WriteString(p)
		w.exec.WriteString(p)
	}
}

// literal writes v inline into the display text and as the next $n
// placeholder into the executable text.
func (w *sqlWriter) literal(v ir.Value) error {
	arg, err := ir.Arg(v)
	if err != nil {
		return err
	}
	w.args = append(w.args, arg)
	w.display.WriteString(FormatValue(v))
	w.exec.WriteString("$")
	w.exec.WriteString(strconv.Itoa(len(w.args)))
	return nil
}

func (w *sqlWriter) statement(layer string) Statement {
	w.write(";")
	return Statement{
		SQL:   w.display.String(),
		Query: w.exec.String(),
		Args:  w.args,
		Layer: layer,
	}
}
