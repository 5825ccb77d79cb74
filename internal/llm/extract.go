package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoPlan is returned when model output contains no JSON object.
var ErrNoPlan = errors.New("no JSON plan found in model output")

// ExtractPlan returns the first balanced JSON object in raw model output.
// Markdown code fences and surrounding prose are ignored, and braces inside
// JSON strings do not count toward the balance.
func ExtractPlan(raw string) ([]byte, error) {
	text := stripFences(raw)
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > 0 {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return []byte(candidate), nil
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, ErrNoPlan
}

func stripFences(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
