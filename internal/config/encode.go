package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Supported encodings for Encode.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// Encode writes cfg to w as TOML or YAML.
func Encode(w io.Writer, cfg *Config, format string) error {
	switch format {
	case FormatTOML, "":
		if err := toml.NewEncoder(w).Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as toml: %w", err)
		}
		return nil
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}

// Write saves cfg to path, choosing the encoding from the file extension.
// An existing file is only replaced when overwrite is set.
func Write(path string, cfg *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	format := FormatTOML
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	var buf bytes.Buffer
	if err := Encode(&buf, cfg, format); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
