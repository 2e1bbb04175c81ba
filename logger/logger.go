// Package logger configures the structured logger shared by expgen's packages.
//
// The package wraps log/slog. DefaultLogger starts at the level named by the
// LOG_LEVEL environment variable (info when unset) and writes text to stderr;
// the CLI reconfigures it from flags and the config file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu sync.Mutex

	// DefaultLogger is the process-wide structured logger.
	DefaultLogger *slog.Logger

	level  = new(slog.LevelVar)
	output io.Writer = os.Stderr
	format           = "text"
)

func init() {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if l, err := ParseLevel(env); err == nil {
			level.Set(l)
		}
	}
	DefaultLogger = newLogger(output, format)
}

// ParseLevel converts a level name (debug, info, warn, warning, error) to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// SetLevel changes the minimum level of DefaultLogger.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetVerbose switches between debug and info level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Configure replaces DefaultLogger with one writing to w in the given format
// ("text" or "json") at the named level. A nil w keeps the current output.
func Configure(levelName, formatName string, w io.Writer) error {
	l, err := ParseLevel(levelName)
	if err != nil {
		return err
	}

	switch formatName {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", formatName)
	}

	mu.Lock()
	defer mu.Unlock()

	if w != nil {
		output = w
	}
	if formatName != "" {
		format = formatName
	}
	level.Set(l)
	DefaultLogger = newLogger(output, format)
	slog.SetDefault(DefaultLogger)
	return nil
}

func newLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
