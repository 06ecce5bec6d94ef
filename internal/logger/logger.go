// Package logger provides structured logging for the pipeline over log/slog,
// with a color-capable text handler for terminals and a JSON handler for log
// aggregation. Job-scoped fields (job_id, session_id, mode, ...) travel in a
// LogContext carried by context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Config selects the level, format and destination for pipeline logs.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var state = struct {
	mu     sync.RWMutex
	log    *slog.Logger
	level  *slog.LevelVar
	format string
	out    io.Writer
	color  bool
}{
	level:  new(slog.LevelVar),
	format: "text",
	out:    os.Stdout,
	color:  isTerminal(os.Stdout.Fd()),
}

func init() {
	state.log = slog.New(newHandler(state.out, state.level, state.format, state.color))
}

func newHandler(w io.Writer, level *slog.LevelVar, format string, color bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return newTextHandler(w, opts, color)
}

// parseLevel maps a config string onto a slog level. Unknown values keep INFO.
func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init points the package logger at the configured destination. Output may be
// "stdout", "stderr", or a file path, opened append-only. Color is enabled
// only when the destination is an interactive terminal.
func Init(cfg Config) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		state.out = os.Stdout
		state.color = isTerminal(os.Stdout.Fd())
	case "stderr":
		state.out = os.Stderr
		state.color = isTerminal(os.Stderr.Fd())
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		state.out = f
		state.color = false
	}

	if cfg.Level != "" {
		state.level.Set(parseLevel(cfg.Level))
	}
	if f := strings.ToLower(cfg.Format); f == "text" || f == "json" {
		state.format = f
	}

	state.log = slog.New(newHandler(state.out, state.level, state.format, state.color))
	return nil
}

// InitWithWriter redirects logs to an arbitrary writer. Test helper.
func InitWithWriter(w io.Writer, level, format string, color bool) {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.out = w
	state.color = color
	if level != "" {
		state.level.Set(parseLevel(level))
	}
	if f := strings.ToLower(format); f == "text" || f == "json" {
		state.format = f
	}
	state.log = slog.New(newHandler(w, state.level, state.format, color))
}

// SetLevel adjusts the minimum level at runtime. Invalid values reset to INFO.
func SetLevel(level string) {
	state.level.Set(parseLevel(level))
}

func get() *slog.Logger {
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.log
}

func Debug(msg string, args ...any) { get().Debug(msg, args...) }
func Info(msg string, args ...any)  { get().Info(msg, args...) }
func Warn(msg string, args ...any)  { get().Warn(msg, args...) }
func Error(msg string, args ...any) { get().Error(msg, args...) }

// The Ctx variants prepend the job-scoped fields carried by ctx, so every
// record emitted while processing a job carries its identifiers without the
// call site repeating them.

func DebugCtx(ctx context.Context, msg string, args ...any) {
	get().Debug(msg, withJobFields(ctx, args)...)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	get().Info(msg, withJobFields(ctx, args)...)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	get().Warn(msg, withJobFields(ctx, args)...)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	get().Error(msg, withJobFields(ctx, args)...)
}

// withJobFields prepends LogContext fields so they sort first in output.
func withJobFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := make([]any, 0, 12+len(args))
	for _, kv := range []struct{ key, val string }{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyJobID, lc.JobID},
		{KeySessionID, lc.SessionID},
		{KeyMode, lc.Mode},
		{KeyOwnerID, lc.OwnerID},
	} {
		if kv.val != "" {
			fields = append(fields, kv.key, kv.val)
		}
	}
	return append(fields, args...)
}

// With pre-binds attributes onto a child logger.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// Duration reports elapsed milliseconds since start, for duration_ms fields.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
