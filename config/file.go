//go:build !tinygo

package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// LoadYAML parses a YAML configuration and returns a validated BoardConfig
func LoadYAML(yamlData []byte) (*BoardConfig, error) {
	var config BoardConfig

	err := yaml.Unmarshal(yamlData, &config)
	if err != nil {
		return nil, err
	}

	return finish(&config)
}

// LoadFile reads a board configuration from disk; .yaml and .yml files are
// parsed as YAML, anything else as JSON
func LoadFile(path string) (*BoardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		return LoadConfig(data)
	}
}
