package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "summa://config.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(schemaURL, schemaJSON)
})

// Load reads path on top of Default. A missing file is only an error when
// required is set.
func Load(path string, required bool) (*Config, error) {
	cfg, err := LoadAndValidate(path)
	if err == nil {
		return cfg, nil
	}
	if !required && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}

	return nil, err
}

// LoadAndValidate loads and validates the configuration.
func LoadAndValidate(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse validates data against the embedded schema and decodes it over Default.
func Parse(data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if raw == nil {
		return Default(), nil
	}

	// The validator expects JSON values, not YAML ones.
	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("config: failed to convert to JSON: %w", err)
	}
	var inst any
	if err := json.Unmarshal(doc, &inst); err != nil {
		return nil, fmt.Errorf("config: failed to convert to JSON: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	return cfg, nil
}
