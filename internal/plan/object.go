package plan

import (
	"bytes"
	"encoding/json"
)

// object is a decoded JSON object whose values are decoded lazily so every
// error can name its exact path.
type object map[string]json.RawMessage

func decodeObject(raw []byte, path string) (object, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if path == "" {
			return nil, errorf("", "plan must be a JSON object")
		}
		return nil, errorf(path, "must be an object")
	}

	var obj object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		if path == "" {
			return nil, errorf("", "malformed JSON: %v", err)
		}
		return nil, errorf(path, "malformed JSON: %v", err)
	}
	return obj, nil
}

// present reports whether key exists, even with a null value.
func (o object) present(key string) bool {
	_, ok := o[key]
	return ok
}

// has reports whether key exists with a non-null value.
func (o object) has(key string) bool {
	raw, ok := o[key]
	if !ok {
		return false
	}
	return !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (o object) isObject(key string) bool {
	raw := bytes.TrimSpace(o[key])
	return len(raw) > 0 && raw[0] == '{'
}

// string returns the string at key, or "" when absent or null.
func (o object) string(key, path string) (string, error) {
	if !o.has(key) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(o[key], &s); err != nil {
		return "", errorf(join(path, key), "must be a string")
	}
	return s, nil
}

func (o object) requiredString(key, path string) (string, error) {
	if !o.has(key) {
		return "", errorf(join(path, key), "is required")
	}
	s, err := o.string(key, path)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", errorf(join(path, key), "must not be empty")
	}
	return s, nil
}

// list returns the array at key, or nil when absent or null.
func (o object) list(key, path string) ([]json.RawMessage, error) {
	if !o.has(key) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(o[key], &items); err != nil {
		return nil, errorf(join(path, key), "must be an array")
	}
	return items, nil
}

func (o object) bool(key, path string, def bool) (bool, error) {
	if !o.has(key) {
		return def, nil
	}
	var b bool
	if err := json.Unmarshal(o[key], &b); err != nil {
		return false, errorf(join(path, key), "must be a boolean")
	}
	return b, nil
}

func (o object) strings(key, path string) ([]string, error) {
	if !o.has(key) {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(o[key], &out); err != nil {
		return nil, errorf(join(path, key), "must be an array of strings")
	}
	return out, nil
}
