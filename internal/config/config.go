package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (LEADFLOW_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: LEADFLOW_PORT -> port, etc.
	if err := k.Load(env.Provider("LEADFLOW_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LEADFLOW_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validButtonShapes is the set of recognized button shape values.
var validButtonShapes = map[ButtonShape]bool{
	ButtonRounded: true,
	ButtonSquare:  true,
	ButtonPill:    true,
}

// validLayouts is the set of recognized layout values.
var validLayouts = map[Layout]bool{
	LayoutCentered: true,
	LayoutSplit:    true,
	LayoutFull:     true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.FlowsDir == "" {
		return fmt.Errorf("flows_dir is required")
	}

	if c.Style.ButtonShape != "" && !validButtonShapes[c.Style.ButtonShape] {
		return fmt.Errorf("invalid button_shape %q: must be one of rounded, square, pill", c.Style.ButtonShape)
	}

	if c.Style.Layout != "" && !validLayouts[c.Style.Layout] {
		return fmt.Errorf("invalid layout %q: must be one of centered, split, full", c.Style.Layout)
	}

	return nil
}
