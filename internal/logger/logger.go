// Package logger is the process-wide structured logger. Every line goes
// out as JSON on stdout so the Fly log shipper can index fields without
// a parse step.
package logger

import (
	"io"
	"log/slog"
	"os"
)

var (
	level slog.LevelVar
	base  *slog.Logger
)

func init() {
	level.Set(parseLevel(os.Getenv("LOG_LEVEL")))
	base = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &level,
	}))
	// Third-party code logging through slog directly lands in the same
	// stream with the same level gate.
	slog.SetDefault(base)
}

// parseLevel maps a LOG_LEVEL value onto a slog level, defaulting to
// info for empty or unrecognized input. slog's own parser accepts the
// usual spellings (debug, INFO, warn, warning is not one of them, so
// it is special-cased).
func parseLevel(s string) slog.Level {
	if s == "warning" || s == "WARNING" {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// IsDebug reports whether debug lines are currently emitted.
func IsDebug() bool {
	return level.Level() <= slog.LevelDebug
}

// SetDebugForTest flips debug logging on or off and returns a restore
// function. Tests that exercise debug-gated code paths use this instead
// of mutating the environment.
func SetDebugForTest(enabled bool) func() {
	prev := level.Level()
	if enabled {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	return func() { level.Set(prev) }
}

// SetOutputForTest reroutes the package logger to w and returns a
// restore function. Tests assert on the emitted JSON lines.
func SetOutputForTest(w io.Writer) func() {
	prev := base
	base = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: &level,
	}))
	slog.SetDefault(base)
	return func() {
		base = prev
		slog.SetDefault(prev)
	}
}

func Debug(msg string, args ...any) { base.Debug(msg, args...) }
func Info(msg string, args ...any)  { base.Info(msg, args...) }
func Warn(msg string, args ...any)  { base.Warn(msg, args...) }
func Error(msg string, args ...any) { base.Error(msg, args...) }

// Fatal logs at error level and exits. Only cmd wiring calls this;
// library code returns errors instead.
func Fatal(msg string, args ...any) {
	base.Error(msg, args...)
	os.Exit(1)
}
