package config

// ButtonShape is the default button shape applied to flows that do not
// set their own.
type ButtonShape string

const (
	ButtonRounded ButtonShape = "rounded"
	ButtonSquare  ButtonShape = "square"
	ButtonPill    ButtonShape = "pill"
)

// Layout is the default page layout variant.
type Layout string

const (
	LayoutCentered Layout = "centered"
	LayoutSplit    Layout = "split"
	LayoutFull     Layout = "full"
)

// Config is the top-level leadflow configuration, corresponding to
// .leadflow.yml.
type Config struct {
	DataDir      string       `yaml:"data_dir" koanf:"data_dir"`
	Port         int          `yaml:"port" koanf:"port"`
	PublicURL    string       `yaml:"public_url" koanf:"public_url"`
	CORSAllowAll bool         `yaml:"cors_allow_all" koanf:"cors_allow_all"`
	FlowsDir     string       `yaml:"flows_dir" koanf:"flows_dir"`
	Style        StyleConfig  `yaml:"style" koanf:"style"`
	Import       ImportConfig `yaml:"import" koanf:"import"`
}

// StyleConfig holds site-wide presentation defaults.
type StyleConfig struct {
	PrimaryColor string      `yaml:"primary_color" koanf:"primary_color"`
	ButtonShape  ButtonShape `yaml:"button_shape" koanf:"button_shape"`
	Layout       Layout      `yaml:"layout" koanf:"layout"`
	FontFamily   string      `yaml:"font_family" koanf:"font_family"`
}

// ImportConfig holds defaults for the flow definition importer.
type ImportConfig struct {
	Pattern string `yaml:"pattern" koanf:"pattern"`
	Publish bool   `yaml:"publish" koanf:"publish"`
}

// DatabasePath returns the SQLite database location under the data
// directory.
func (c *Config) DatabasePath() string {
	return c.DataDir + "/leadflow.db"
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  ".leadflow",
		Port:     8080,
		FlowsDir: "flows",
		Style: StyleConfig{
			PrimaryColor: "#1a73e8",
			ButtonShape:  ButtonRounded,
			Layout:       LayoutCentered,
			FontFamily:   "Inter, sans-serif",
		},
		Import: ImportConfig{
			Pattern: "**/*.{yaml,yml,json}",
			Publish: false,
		},
	}
}
