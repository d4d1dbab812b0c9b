package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger with Hearo-specific functionality.
//
// It provides structured logging with default fields and level-based filtering.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger

	// level allows the minimum level to be changed at runtime, which is
	// how the *_CMD_SET_DEBUG IPC command is implemented.
	level *slog.LevelVar
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering (adjustable at runtime via SetLevel)
//   - Default fields (service name, version)
//   - Output destination
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	level := &slog.LevelVar{}
	level.Set(ParseLevel(cfg.Level))

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "hearo"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
		level:  level,
	}
}

// ParseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether the given level string is recognised.
// Used by the SET_DEBUG command handlers to reject bad payloads.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error", "none":
		return true
	default:
		return false
	}
}

// SetLevel changes the minimum log level at runtime.
// "none" disables all output by raising the level above error.
func (l *Logger) SetLevel(level string) {
	if l.level == nil {
		return
	}
	if strings.ToLower(level) == "none" {
		l.level.Set(slog.LevelError + 4)
		return
	}
	l.level.Set(ParseLevel(level))
}

// With returns a new Logger with additional default attributes.
// The returned logger shares the runtime level of its parent, so a
// SET_DEBUG applied to either affects both.
//
// Example:
//
//	ipcLogger := logger.With("component", "ipc")
//	ipcLogger.Info("endpoint bound") // Includes component=ipc
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		level:  l.level,
	}
}

// Default creates a default logger for use before configuration is loaded.
//
// This logger outputs to stdout in JSON format at info level.
// It should only be used during early startup before config is available.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
