package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	level  = new(slog.LevelVar)
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
)

// Setup points the package logger at w with the given level name
// (debug, info, warn, error). Unknown names fall back to info.
func Setup(w io.Writer, lvl string) {
	level.Set(ParseLevel(lvl))
	mu.Lock()
	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	mu.Unlock()
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Log(lvl slog.Level, msg string, fields map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	l.Log(context.Background(), lvl, msg, attrs...)
}

func Debug(msg string, fields map[string]any) { Log(slog.LevelDebug, msg, fields) }
func Info(msg string, fields map[string]any)  { Log(slog.LevelInfo, msg, fields) }
func Warn(msg string, fields map[string]any)  { Log(slog.LevelWarn, msg, fields) }
func Error(msg string, fields map[string]any) { Log(slog.LevelError, msg, fields) }
