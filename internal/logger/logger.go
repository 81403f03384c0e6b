// Package logger is the process-wide structured logging sink.
//
// The sink is configured exactly once at startup from an explicit Config value
// (see Init). Nothing in this package reads environment variables: overrides
// such as SPOTICORD_LOGGING_LEVEL are resolved by the configuration layer and
// arrive here already folded into Config.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var (
	mu      sync.RWMutex
	slogger *slog.Logger
	logFile *os.File

	level = new(slog.LevelVar)
)

func init() {
	level.Set(slog.LevelInfo)
	slogger = slog.New(NewColorTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}, isTerminal(os.Stdout.Fd())))
}

// ParseLevel converts a level name (case-insensitive) into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New builds a standalone logger writing to w. It does not touch the
// process-wide sink.
func New(w io.Writer, cfg Config, useColor bool) (*slog.Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return slog.New(newHandler(w, cfg.Format, lvl, useColor)), nil
}

func newHandler(w io.Writer, format string, lvl slog.Leveler, useColor bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return NewColorTextHandler(w, opts, useColor)
}

// Init installs the process-wide sink described by cfg.
// Output can be "stdout", "stderr", or a file path.
func Init(cfg Config) error {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var (
		w        io.Writer
		useColor bool
		file     *os.File
	)
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		w, useColor = os.Stdout, isTerminal(os.Stdout.Fd())
	case "stderr":
		w, useColor = os.Stderr, isTerminal(os.Stderr.Fd())
	default:
		file, err = os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		w = file
	}

	install(w, cfg.Format, lvl, useColor, file)
	return nil
}

// InitWithWriter installs a sink writing to w without color.
// This is primarily useful for testing.
func InitWithWriter(w io.Writer, cfg Config) error {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	install(w, cfg.Format, lvl, false, nil)
	return nil
}

func install(w io.Writer, format string, lvl slog.Level, useColor bool, file *os.File) {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	level.Set(lvl)
	slogger = slog.New(newHandler(w, format, level, useColor))
}

// Enabled reports whether records at lvl are currently emitted.
func Enabled(lvl slog.Level) bool {
	return lvl >= level.Level()
}

// Logger returns the current process-wide logger.
func Logger() *slog.Logger {
	mu.RLock()
	l := slogger
	mu.RUnlock()
	return l
}

// Debug logs at debug level with structured fields
// Usage: Debug("message", "key1", value1, "key2", value2)
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs at info level with structured fields
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs at warn level with structured fields
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs at error level with structured fields
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// With returns a new slog.Logger with additional attributes
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}
