// Package logging builds the zap loggers used across gladvent. Each subsystem
// logs under its own category, and categories can be switched off in config.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/adrian-goe/gladvent/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // Startup, config loading
	CategoryRegistry     Category = "registry"     // Solution script discovery and interpretation
	CategoryPipeline     Category = "pipeline"     // Single task execution
	CategoryOrchestrator Category = "orchestrator" // Batch dispatch and deadlines
	CategoryHistory      Category = "history"      // Run history store
	CategoryWatch        Category = "watch"        // File watching
)

// Logger hands out per-category children of one zap logger.
type Logger struct {
	base *zap.Logger
	cfg  config.LoggingConfig
}

// New builds a logger from config. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*Logger, error) {
	level := zapcore.WarnLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	var zc zap.Config
	switch cfg.Format {
	case "json":
		zc = zap.NewProductionConfig()
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	base, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return Wrap(base, cfg), nil
}

// Wrap uses an existing zap logger as the root. A nil base discards output.
func Wrap(base *zap.Logger, cfg config.LoggingConfig) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{base: base, cfg: cfg}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return Wrap(nil, config.LoggingConfig{})
}

// Root returns the uncategorized logger.
func (l *Logger) Root() *zap.Logger {
	return l.base
}

// Get returns the logger for a category, or a no-op logger when the category
// is disabled.
func (l *Logger) Get(category Category) *zap.Logger {
	if !l.cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return l.base.Named(string(category))
}

// Sync flushes buffered entries. Errors from syncing terminals are ignored.
func (l *Logger) Sync() {
	_ = l.base.Sync()
}
