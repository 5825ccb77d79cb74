package catalog

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type document struct {
	Tables []Table `yaml:"tables"`
}

// Default returns the embedded catalog of Toronto open-data tables.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default: %v", err))
	}
	return c
}

// LoadFile reads a catalog YAML file from fs.
func LoadFile(fs afero.Fs, path string) (*Catalog, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes catalog YAML. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("catalog has no tables")
	}
	for _, t := range doc.Tables {
		if len(t.Columns) == 0 {
			return nil, fmt.Errorf("table %q: columns are required", t.Name)
		}
	}
	return New(doc.Tables)
}
