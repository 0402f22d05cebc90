package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .leadflow.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to leadflow! Let's configure your site.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory (SQLite database location)",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	cfg.DataDir = dataDir

	// 2. Server port.
	portPrompt := promptui.Prompt{
		Label:   "Server port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n < 1 || n > 65535 {
				return fmt.Errorf("must be a port number between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(strings.TrimSpace(portStr))

	// 3. Flow definitions directory.
	flowsPrompt := promptui.Prompt{
		Label:   "Flow definitions directory",
		Default: cfg.FlowsDir,
	}
	flowsDir, err := flowsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("flows directory: %w", err)
	}
	cfg.FlowsDir = flowsDir

	// 4. Default button shape.
	shapePrompt := promptui.Select{
		Label: "Default button shape",
		Items: []string{"rounded", "square", "pill"},
	}
	_, shape, err := shapePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("button shape: %w", err)
	}
	cfg.Style.ButtonShape = ButtonShape(shape)

	// 5. Default layout.
	layoutPrompt := promptui.Select{
		Label: "Default page layout",
		Items: []string{"centered", "split", "full"},
	}
	_, layout, err := layoutPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	cfg.Style.Layout = Layout(layout)

	// 6. Primary color.
	colorPrompt := promptui.Prompt{
		Label:   "Primary brand color (hex)",
		Default: cfg.Style.PrimaryColor,
	}
	color, err := colorPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("primary color: %w", err)
	}
	cfg.Style.PrimaryColor = color

	configPath := ".leadflow.yml"
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", configPath)
	return cfg, nil
}
