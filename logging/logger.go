// Package logging defines the minimal structured logging surface the engine
// depends on, with slog-backed implementations. Callers can plug any logger
// satisfying the four-method Logger interface.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// LogLevel configures verbosity independently of slog so callers never import
// slog just to pick a level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is the structured logging interface used throughout the engine.
// Arguments follow slog conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoOpLogger discards everything. It is the default when no logger is
// configured.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

// SlogAdapter makes any *slog.Logger satisfy Logger.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter wraps an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger wraps slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// AgentFlowLogger is the ready-made slog logger used by the examples and the
// facade: configurable level, text or JSON output, optional source locations.
type AgentFlowLogger struct {
	*slog.Logger
}

// LoggerConfig configures AgentFlowLogger construction.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" (default) or "text"
	Output    io.Writer
	AddSource bool
}

// DefaultLoggerConfig returns JSON output at info level on stdout.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout, AddSource: true}
}

// NewLogger builds an AgentFlowLogger from cfg, falling back to defaults for
// nil cfg or unset fields.
func NewLogger(cfg *LoggerConfig) *AgentFlowLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel(), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &AgentFlowLogger{Logger: slog.New(handler)}
}

// NewSlogLogger is shorthand for NewLogger with the three most commonly tuned
// settings.
func NewSlogLogger(level LogLevel, format string, addSource bool) *AgentFlowLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.AddSource = addSource

	if format != "" {
		cfg.Format = format
	}

	return NewLogger(cfg)
}
