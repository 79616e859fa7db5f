package scenario

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var tableSchema []byte

var tableSchemaLoader = gojsonschema.NewBytesLoader(tableSchema)

// Table is a named list of data-driven cases.
type Table struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Cases       []Case   `yaml:"cases"`
	// Path is the file the table was loaded from.
	Path string `yaml:"-"`
}

// Case applies Actions to a fresh page and expects the state vector Expect.
type Case struct {
	Name    string   `yaml:"name"`
	Tags    []string `yaml:"tags,omitempty"`
	Actions []Action `yaml:"actions"`
	Expect  []bool   `yaml:"expect"`
}

// ValidationError lists every schema violation in a table document.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid scenario table %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Parse validates data against the table schema and decodes it.
func Parse(path string, data []byte) (*Table, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s to JSON: %w", path, err)
	}

	result, err := gojsonschema.Validate(tableSchemaLoader, gojsonschema.NewBytesLoader(docJSON))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		verr := &ValidationError{Path: path}
		for _, e := range result.Errors() {
			verr.Problems = append(verr.Problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return nil, verr
	}

	t := &Table{Path: path}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	for i, c := range t.Cases {
		for j, a := range c.Actions {
			if err := a.Validate(); err != nil {
				return nil, fmt.Errorf("%s: case %d (%s) action %d: %w", path, i, c.Name, j, err)
			}
		}
	}
	return t, nil
}

// LoadFile reads and parses one table.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario table: %w", err)
	}
	return Parse(path, data)
}

// LoadDir parses every *.yaml and *.yml file in dir, sorted by name. A
// missing directory yields no tables.
func LoadDir(dir string) ([]*Table, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list scenario tables: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var (
		tables []*Table
		errs   []error
	)
	for _, n := range names {
		t, err := LoadFile(filepath.Join(dir, n))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tables = append(tables, t)
	}
	return tables, errors.Join(errs...)
}
