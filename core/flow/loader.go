package flow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads flow, keyboard and callback definitions from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flows file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML definitions into a registry.
func Parse(data []byte) (*Registry, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse flows YAML: %w", err)
	}
	return NewRegistry(defs)
}
