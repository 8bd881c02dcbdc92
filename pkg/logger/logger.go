// Package logger provides component-tagged structured logging for the
// gateway. Every log line carries a component name so the pipeline stages
// (gateway, dispatch, delivery, store, auth) can be filtered apart.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	level   = new(slog.LevelVar)
	current atomic.Pointer[slog.Logger]
)

func init() {
	current.Store(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// Setup reconfigures the package logger. levelName is one of
// debug/info/warn/error (case-insensitive); format is "json" or "text".
func Setup(levelName, format string) {
	switch strings.ToLower(levelName) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	current.Store(slog.New(h))
}

func log(lvl slog.Level, component, msg string, fields map[string]interface{}) {
	args := make([]any, 0, 2+2*len(fields))
	args = append(args, "component", component)
	for k, v := range fields {
		args = append(args, k, v)
	}
	current.Load().Log(context.Background(), lvl, msg, args...)
}

// DebugC logs a component-tagged message at debug level.
func DebugC(component, msg string) { log(slog.LevelDebug, component, msg, nil) }

// DebugCF logs a component-tagged message with fields at debug level.
func DebugCF(component, msg string, fields map[string]interface{}) {
	log(slog.LevelDebug, component, msg, fields)
}

// InfoC logs a component-tagged message at info level.
func InfoC(component, msg string) { log(slog.LevelInfo, component, msg, nil) }

// InfoCF logs a component-tagged message with fields at info level.
func InfoCF(component, msg string, fields map[string]interface{}) {
	log(slog.LevelInfo, component, msg, fields)
}

// WarnC logs a component-tagged message at warn level.
func WarnC(component, msg string) { log(slog.LevelWarn, component, msg, nil) }

// WarnCF logs a component-tagged message with fields at warn level.
func WarnCF(component, msg string, fields map[string]interface{}) {
	log(slog.LevelWarn, component, msg, fields)
}

// ErrorC logs a component-tagged message at error level.
func ErrorC(component, msg string) { log(slog.LevelError, component, msg, nil) }

// ErrorCF logs a component-tagged message with fields at error level.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	log(slog.LevelError, component, msg, fields)
}
