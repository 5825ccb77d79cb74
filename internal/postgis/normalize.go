package postgis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Normalize converts a decoded column value into a JSON-friendly one:
//
//   - numeric → json.Number (exact decimal text)
//   - timestamps and dates → RFC 3339 text
//   - uuid → text
//   - narrower ints and floats widen to int64 and float64
//
// Byte slices, strings, booleans, maps and slices pass through unchanged so
// the layer converter can still recognize geometry.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil, string, bool, int64, float64, []byte, map[string]any:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint32:
		return int64(val)
	case float32:
		return float64(val)
	case pgtype.Numeric:
		return numericValue(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case pgtype.Date:
		if !val.Valid {
			return nil
		}
		return val.Time.Format(time.DateOnly)
	case [16]byte:
		return uuid.UUID(val).String()
	case netip.Prefix:
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = Normalize(e)
		}
		return out
	case fmt.Stringer:
		return val.String()
	default:
		return val
	}
}

func numericValue(n pgtype.Numeric) any {
	if !n.Valid {
		return nil
	}
	switch {
	case n.NaN:
		return "NaN"
	case n.InfinityModifier == pgtype.Infinity:
		return "Infinity"
	case n.InfinityModifier == pgtype.NegativeInfinity:
		return "-Infinity"
	}
	if n.Int == nil {
		return json.Number("0")
	}
	if n.Exp >= 0 {
		i := new(big.Int).Mul(n.Int, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
		return json.Number(i.String())
	}
	r := new(big.Rat).SetFrac(n.Int, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil))
	return json.Number(r.FloatString(int(-n.Exp)))
}
