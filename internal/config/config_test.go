package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.DataDir != ".leadflow" {
		t.Errorf("expected default data_dir %q, got %q", ".leadflow", cfg.DataDir)
	}
	if cfg.Style.ButtonShape != ButtonRounded {
		t.Errorf("expected default button shape %q, got %q", ButtonRounded, cfg.Style.ButtonShape)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.leadflow.yml")

	original := DefaultConfig()
	original.Port = 9090
	original.DataDir = "/var/lib/leadflow"
	original.Style.ButtonShape = ButtonPill
	original.Style.Layout = LayoutSplit
	original.Import.Publish = true

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Port != original.Port {
		t.Errorf("port: got %d, want %d", loaded.Port, original.Port)
	}
	if loaded.DataDir != original.DataDir {
		t.Errorf("data_dir: got %q, want %q", loaded.DataDir, original.DataDir)
	}
	if loaded.Style.ButtonShape != original.Style.ButtonShape {
		t.Errorf("button_shape: got %q, want %q", loaded.Style.ButtonShape, original.Style.ButtonShape)
	}
	if !loaded.Import.Publish {
		t.Error("expected import.publish to survive the round trip")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestEnvOverride(t *testing.T) {
	os.Setenv("LEADFLOW_PORT", "3000")
	t.Cleanup(func() { os.Unsetenv("LEADFLOW_PORT") })

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("expected env override port 3000, got %d", cfg.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data_dir", func(c *Config) { c.DataDir = "" }},
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"huge port", func(c *Config) { c.Port = 70000 }},
		{"bad button shape", func(c *Config) { c.Style.ButtonShape = "hexagon" }},
		{"bad layout", func(c *Config) { c.Style.Layout = "diagonal" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
