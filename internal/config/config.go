package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "gladvent.yaml"

// Config holds all gladvent configuration.
type Config struct {
	// Year selects the puzzle year when --year is not given.
	Year int `yaml:"year"`

	// InputDir holds <year>/<day>.txt puzzle inputs.
	InputDir string `yaml:"input_dir"`

	// SolutionsDir holds <year>/day_<N>.go solution scripts.
	SolutionsDir string `yaml:"solutions_dir"`

	Execution ExecutionConfig `yaml:"execution"`
	History   HistoryConfig   `yaml:"history"`
	Watch     WatchConfig     `yaml:"watch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce is how long the watcher waits for writes to settle.
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Year:         time.Now().Year(),
		InputDir:     "input",
		SolutionsDir: "src",

		Execution: ExecutionConfig{
			Workers:        0,
			DefaultTimeout: "",
		},

		History: HistoryConfig{
			Enabled: false,
			Path:    filepath.Join(".gladvent", "history.db"),
		},

		Watch: WatchConfig{
			Debounce: "200ms",
		},

		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("GLADVENT_YEAR"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GLADVENT_YEAR %q: %w", v, err)
		}
		c.Year = year
	}
	if v := os.Getenv("GLADVENT_INPUT_DIR"); v != "" {
		c.InputDir = v
	}
	if v := os.Getenv("GLADVENT_SOLUTIONS_DIR"); v != "" {
		c.SolutionsDir = v
	}
	if v := os.Getenv("GLADVENT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GLADVENT_WORKERS %q: %w", v, err)
		}
		c.Execution.Workers = n
	}

	// Pointing at a database implies wanting history.
	if v := os.Getenv("GLADVENT_HISTORY_DB"); v != "" {
		c.History.Path = v
		c.History.Enabled = true
	}
	if v := os.Getenv("GLADVENT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// GetWatchDebounce returns the watch debounce as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

// ValidLogLevels lists the accepted logging.level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidLogFormats lists the accepted logging.format values.
var ValidLogFormats = []string{"console", "json"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Year <= 0 {
		return fmt.Errorf("invalid year: %d", c.Year)
	}
	if c.InputDir == "" {
		return fmt.Errorf("input_dir must not be empty")
	}
	if c.SolutionsDir == "" {
		return fmt.Errorf("solutions_dir must not be empty")
	}
	if c.Execution.Workers < 0 {
		return fmt.Errorf("execution.workers must not be negative, got %d", c.Execution.Workers)
	}
	if c.Execution.DefaultTimeout != "" {
		d, err := time.ParseDuration(c.Execution.DefaultTimeout)
		if err != nil {
			return fmt.Errorf("invalid execution.default_timeout %q: %w", c.Execution.DefaultTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("execution.default_timeout must not be negative, got %s", d)
		}
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path must be set when history is enabled")
	}
	if !contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if !contains(ValidLogFormats, c.Logging.Format) {
		return fmt.Errorf("invalid logging format: %s (valid: %v)", c.Logging.Format, ValidLogFormats)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
