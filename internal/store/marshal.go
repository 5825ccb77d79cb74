package store

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/roach88/geoff/internal/ir"
)

// canonicalPlan converts plan text to canonical JSON TEXT for storage.
// Text that is not a single JSON value (raw model output, fenced code) is
// stored trimmed but otherwise as given.
func canonicalPlan(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return trimmed
	}

	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return trimmed
	}
	return string(bytes.TrimSpace(data))
}
