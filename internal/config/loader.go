package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileNames lists the files searched for configuration in order.
// Checks .github/ first, then the repository root directory.
var FileNames = []string{
	".github/gitsituation.yml",
	"gitsituation.yml",
	".gitsituation.yml",
}

// LoadFromFile reads and parses a gitsituation configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses gitsituation configuration from raw YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Find returns the first configuration file present under dir, or "" when
// there is none.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("checking config file %s: %w", path, err)
		}
		if !info.IsDir() {
			return path, nil
		}
	}
	return "", nil
}

// Load reads the explicit file at path, or auto-detects one under dir when
// path is empty. It returns nil without error when nothing is found.
func Load(path, dir string) (*Config, string, error) {
	if path == "" {
		found, err := Find(dir)
		if err != nil || found == "" {
			return nil, "", err
		}
		path = found
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
