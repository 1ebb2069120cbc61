package config

import "time"

// ExecutionConfig configures how batches of tasks run.
type ExecutionConfig struct {
	// Workers caps concurrently running tasks. 0 means no cap, 1 runs tasks
	// one after another.
	Workers int `yaml:"workers"`

	// DefaultTimeout bounds a whole batch when --timeout is not given.
	// Empty means no deadline.
	DefaultTimeout string `yaml:"default_timeout"`
}

// GetDefaultTimeout returns the batch timeout, or 0 when batches are endless
// or the value does not parse.
func (c *Config) GetDefaultTimeout() time.Duration {
	if c.Execution.DefaultTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Execution.DefaultTimeout)
	if err != nil {
		return 0
	}
	return d
}
