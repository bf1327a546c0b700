// Package logger owns the process-wide slog root logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	root     *slog.Logger
	levelVar = new(slog.LevelVar)
	mu       sync.Mutex
)

// Init installs a JSON handler writing to w at the given level and makes it
// the slog default. A nil writer means stdout.
func Init(w io.Writer, level string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if w == nil {
		w = os.Stdout
	}
	levelVar.Set(ParseLevel(level))
	root = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(root)
	return root
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown values are
// info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// SetLevel changes the level of the root logger at runtime.
func SetLevel(level string) {
	levelVar.Set(ParseLevel(level))
}

// Get returns the root logger, or slog.Default when Init was never called.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if root == nil {
		return slog.Default()
	}
	return root
}

// WithComponent returns a logger tagged with the component name.
//
//	log := logger.WithComponent("search")
//	log.Warn("meilisearch unavailable", "error", err)
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}
