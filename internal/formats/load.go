// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package formats

import (
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"
)

// Load reads a YAML table from path. Sections omitted from the file keep
// the built-in values, so a file may override only routes or only MIME
// types.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading format table %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("format table %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a YAML table and validates it.
func Parse(data []byte) (*Table, error) {
	var raw Table
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	t := Default()
	if len(raw.Categories) > 0 {
		t.Categories = raw.Categories
	}
	if len(raw.Routes) > 0 {
		t.Routes = raw.Routes
	}
	for ext, mime := range raw.MIME {
		t.MIME[Normalize(ext)] = mime
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteYAML encodes t to w.
func (t *Table) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encoding format table: %w", err)
	}
	return enc.Close()
}
