package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds every setting of the todo server
type Config struct {
	StorePath     string `yaml:"store_path"`
	AssetsDir     string `yaml:"assets_dir"`
	ActivityDB    string `yaml:"activity_db"` // empty disables the activity log
	ServerName    string `yaml:"server_name"`
	ServerVersion string `yaml:"server_version"`
	Debug         bool   `yaml:"debug"`

	Widget WidgetConfig `yaml:"widget"`
	Health HealthConfig `yaml:"health"`
}

// WidgetConfig describes the ChatGPT widget advertised on tool results
type WidgetConfig struct {
	Name        string `yaml:"name"` // asset base name, todo -> todo.html
	Title       string `yaml:"title"`
	TemplateURI string `yaml:"template_uri"`
	Invoking    string `yaml:"invoking"`
	Invoked     string `yaml:"invoked"`
}

// HealthConfig tunes health_check
type HealthConfig struct {
	MemoryThreshold float64 `yaml:"memory_threshold"` // percent of system memory
}

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {
	return &Config{
		StorePath:     "./todos.json",
		AssetsDir:     "./assets",
		ActivityDB:    "",
		ServerName:    "todo-mcp-server",
		ServerVersion: "1.0.0",
		Widget: WidgetConfig{
			Name:        "todo",
			Title:       "Todo Management Widget",
			TemplateURI: "ui://widget/todo.html",
			Invoking:    "Managing your todos...",
			Invoked:     "Todo list updated successfully!",
		},
		Health: HealthConfig{
			MemoryThreshold: 80,
		},
	}
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.StorePath) == "" {
		errs = append(errs, errors.New("store_path must not be empty"))
	}
	if strings.TrimSpace(c.ServerName) == "" {
		errs = append(errs, errors.New("server_name must not be empty"))
	}
	if !strings.HasPrefix(c.Widget.TemplateURI, "ui://") {
		errs = append(errs, fmt.Errorf("widget.template_uri must start with ui://, got %q", c.Widget.TemplateURI))
	}
	if c.Widget.Name == "" || strings.ContainsAny(c.Widget.Name, `/\`) {
		errs = append(errs, fmt.Errorf("widget.name must be a plain file stem, got %q", c.Widget.Name))
	}
	if c.Health.MemoryThreshold <= 0 || c.Health.MemoryThreshold > 100 {
		errs = append(errs, fmt.Errorf("health.memory_threshold must be in (0, 100], got %v", c.Health.MemoryThreshold))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
