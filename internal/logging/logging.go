// Package logging builds the slog handler shared by the binaries: colored
// console output plus an optional rotating JSON diagnostic file.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// ParseLevel maps a level name to a slog level; unknown names yield info.
func ParseLevel(name string) (slog.Level, bool) {
	lvl, ok := levels[name]
	if !ok {
		return slog.LevelInfo, false
	}
	return lvl, true
}

type Options struct {
	Level   string
	Console io.Writer // defaults to stdout
	// File enables the JSON diagnostic log; empty disables it.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New returns a logger and a closer for the diagnostic file.
func New(opt Options) (*slog.Logger, io.Closer) {
	lvl, _ := ParseLevel(opt.Level)
	console := opt.Console
	if console == nil {
		console = os.Stdout
	}

	handlers := []slog.Handler{
		tint.NewHandler(console, &tint.Options{Level: lvl, TimeFormat: time.TimeOnly}),
	}

	var closer io.Closer = nopCloser{}
	if opt.File != "" {
		_ = os.MkdirAll(filepath.Dir(opt.File), 0o755)
		w := &lumberjack.Logger{
			Filename:   opt.File,
			MaxSize:    max(opt.MaxSizeMB, 16), // MB
			MaxBackups: max(opt.MaxBackups, 1),
		}
		// The diagnostic file always records debug output.
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closer = w
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer
	}
	return slog.New(fanout(handlers)), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
