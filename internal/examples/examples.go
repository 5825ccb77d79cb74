// Package examples holds the library of question/plan pairs used to prompt
// the plan generator.
package examples

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed examples.yaml
var defaultYAML []byte

// Example is one question with the plan that answers it.
type Example struct {
	Question string   `yaml:"question" json:"question"`
	Kind     string   `yaml:"kind" json:"kind"`
	Sources  []string `yaml:"sources" json:"sources"`
	Plan     string   `yaml:"plan" json:"-"`
}

// Library is an ordered, immutable example set.
type Library struct {
	examples []Example
}

// Default returns the embedded library.
func Default() *Library {
	l, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("examples: embedded library: %v", err))
	}
	return l
}

// Parse decodes library YAML. Unknown fields are rejected, and every plan
// must be valid JSON.
func Parse(data []byte) (*Library, error) {
	var doc struct {
		Examples []Example `yaml:"examples"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse examples YAML: %w", err)
	}
	for i, ex := range doc.Examples {
		if ex.Question == "" {
			return nil, fmt.Errorf("example %d: question is required", i)
		}
		if len(ex.Sources) == 0 {
			return nil, fmt.Errorf("example %d: sources are required", i)
		}
		if !json.Valid([]byte(ex.Plan)) {
			return nil, fmt.Errorf("example %d (%q): plan is not valid JSON", i, ex.Question)
		}
	}
	return &Library{examples: doc.Examples}, nil
}

// All returns every example in library order.
func (l *Library) All() []Example {
	return l.examples
}

// Limit returns at most n examples; n <= 0 returns all of them.
func (l *Library) Limit(n int) []Example {
	if n <= 0 || n >= len(l.examples) {
		return l.examples
	}
	return l.examples[:n]
}

// Relevant returns the examples whose sources are all among tables, in
// library order, capped at limit (<= 0 for no cap).
func (l *Library) Relevant(tables []string, limit int) []Example {
	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[t] = true
	}

	var out []Example
	for _, ex := range l.examples {
		if !covered(ex.Sources, allowed) {
			continue
		}
		out = append(out, ex)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func covered(sources []string, allowed map[string]bool) bool {
	for _, s := range sources {
		if !allowed[s] {
			return false
		}
	}
	return true
}

// Prompt renders examples as the examples section of a generation prompt.
func Prompt(examples []Example) string {
	parts := make([]string, 0, len(examples))
	for _, ex := range examples {
		var plan bytes.Buffer
		if err := json.Indent(&plan, []byte(ex.Plan), "", "  "); err != nil {
			plan.Reset()
			plan.WriteString(ex.Plan)
		}
		parts = append(parts, "User Query: "+ex.Question+"\nPlan:\n"+plan.String())
	}
	return strings.Join(parts, "\n\n")
}
