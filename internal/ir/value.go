package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a sealed interface over the literal types a plan may carry.
// Only Null, String, Number, Bool and List implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents a JSON null literal.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a string literal.
type String string

func (String) value() {}

// Number represents a numeric literal. The decimal text is kept exactly as it
// appeared in the plan so rendering never reformats it.
type Number string

func (Number) value() {}

// MarshalJSON implements json.Marshaler for Number.
func (n Number) MarshalJSON() ([]byte, error) {
	if !isNumberText(string(n)) {
		return nil, fmt.Errorf("invalid number literal %q", string(n))
	}
	return []byte(n), nil
}

// Int64 returns the number as an int64, failing for non-integral text.
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Float64 returns the number as a float64.
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// IsIntegral reports whether the number has no fractional or exponent part.
func (n Number) IsIntegral() bool {
	_, err := n.Int64()
	return err == nil
}

// Bool represents a boolean literal.
type Bool bool

func (Bool) value() {}

// List represents an ordered list of literals.
type List []Value

func (List) value() {}

// NewNumber creates a Number from an int64.
func NewNumber(n int64) Number {
	return Number(strconv.FormatInt(n, 10))
}

// UnmarshalJSON implements json.Unmarshaler for List.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = make(List, len(raw))
	for i, v := range raw {
		val, err := Decode(v)
		if err != nil {
			return fmt.Errorf("list index %d: %w", i, err)
		}
		(*l)[i] = val
	}
	return nil
}

// Decode converts a raw JSON literal into a Value.
// Objects are rejected: no plan operator accepts one.
func Decode(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return String(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case 'n':
		if string(data) != "null" {
			return nil, fmt.Errorf("invalid JSON value: %s", data)
		}
		return Null{}, nil
	case '[':
		var l List
		if err := l.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return l, nil
	case '{':
		return nil, fmt.Errorf("objects are not valid literal values")
	default:
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return nil, fmt.Errorf("invalid JSON value: %s", data)
		}
		return Number(n.String()), nil
	}
}

// FromAny converts a decoded Go value (as produced by yaml or json with
// UseNumber) into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		return Number(val.String()), nil
	case int:
		return NewNumber(int64(val)), nil
	case int64:
		return NewNumber(val), nil
	case float64:
		return Number(strconv.FormatFloat(val, 'f', -1, 64)), nil
	case []any:
		l := make(List, len(val))
		for i, elem := range val {
			item, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l[i] = item
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}

// Arg converts a scalar Value into the Go value handed to the database
// driver as a query parameter.
func Arg(v Value) (any, error) {
	switch val := v.(type) {
	case nil, Null, *Null:
		return nil, nil
	case String:
		return string(val), nil
	case Bool:
		return bool(val), nil
	case Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number literal %q", string(val))
		}
		return f, nil
	case List:
		return nil, fmt.Errorf("list values cannot be bound as a single parameter")
	default:
		return nil, fmt.Errorf("unsupported literal type: %T", v)
	}
}

// TypeName returns a short human-readable name for a Value's variant.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "absent"
	case Null, *Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "boolean"
	case List:
		return "list"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func isNumberText(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
