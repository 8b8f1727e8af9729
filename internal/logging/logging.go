// Package logging sets up slog the same way for the CLI and the
// development backend.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// levelRouter is a slog.Handler that routes records below ERROR to stdout
// and ERROR+ to stderr.
type levelRouter struct {
	min    slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.min
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// Options configures Setup. Zero writers mean os.Stdout and os.Stderr.
type Options struct {
	Level  slog.Level
	Path   string
	Stdout io.Writer
	Stderr io.Writer
}

// Setup builds the logger and installs it as the slog default. If
// opts.Path is set, every record is also appended to that file. The
// returned cleanup closes the file and is never nil.
func Setup(opts Options) (*slog.Logger, func(), error) {
	cleanup := func() {}

	stdoutW, stderrW := opts.Stdout, opts.Stderr
	if stdoutW == nil {
		stdoutW = os.Stdout
	}
	if stderrW == nil {
		stderrW = os.Stderr
	}

	if opts.Path != "" {
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(stdoutW, f)
		stderrW = io.MultiWriter(stderrW, f)
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	logger := slog.New(&levelRouter{
		min:    opts.Level,
		stdout: slog.NewTextHandler(stdoutW, handlerOpts),
		stderr: slog.NewTextHandler(stderrW, handlerOpts),
	})
	slog.SetDefault(logger)
	return logger, cleanup, nil
}
