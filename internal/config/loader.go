package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/vthunder/todo-mcp/internal/logging"
)

const (
	// EnvConfigPath points at the YAML config file
	EnvConfigPath = "TODO_MCP_CONFIG"
	// DefaultConfigFile is read from the working directory when present
	DefaultConfigFile = "todo-mcp.yaml"
)

// Environment overrides, applied after the YAML file
const (
	EnvStorePath  = "TODO_STORE_PATH"
	EnvAssetsDir  = "TODO_ASSETS_DIR"
	EnvActivityDB = "TODO_ACTIVITY_DB"
	EnvDebug      = "DEBUG"
)

// Source abstracts the file and environment lookups for testability
type Source interface {
	ReadFile(path string) ([]byte, error)
	LookupEnv(key string) (string, bool)
}

type osSource struct{}

func (osSource) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (osSource) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// Loader builds a Config from defaults, a YAML file and the environment
type Loader struct {
	src Source
}

// NewLoader creates a Loader on the real filesystem and environment
func NewLoader() *Loader {
	return &Loader{src: osSource{}}
}

// NewLoaderWithSource creates a Loader with custom lookups (for testing)
func NewLoaderWithSource(src Source) *Loader {
	return &Loader{src: src}
}

// Load merges defaults, the config file and environment overrides, then
// validates the result. path overrides TODO_MCP_CONFIG when non-empty.
// A missing default file is not an error; a missing explicit file is.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		if p, ok := l.src.LookupEnv(EnvConfigPath); ok && p != "" {
			path, explicit = p, true
		} else {
			path = DefaultConfigFile
		}
	}

	data, err := l.src.ReadFile(path)
	switch {
	case err == nil:
		// Present keys overwrite defaults, missing keys keep them
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		logging.Debug("config", "Loaded config file %s", path)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		logging.Debug("config", "No config file at %s, using defaults", path)
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	if v, ok := l.src.LookupEnv(EnvStorePath); ok && v != "" {
		cfg.StorePath = v
	}
	if v, ok := l.src.LookupEnv(EnvAssetsDir); ok && v != "" {
		cfg.AssetsDir = v
	}
	if v, ok := l.src.LookupEnv(EnvActivityDB); ok {
		cfg.ActivityDB = v
	}
	if v, ok := l.src.LookupEnv(EnvDebug); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvDebug, v, err)
		}
		cfg.Debug = debug
	}
	return nil
}

// Load is a convenience function using the default loader
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}
