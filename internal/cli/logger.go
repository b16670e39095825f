package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mdddj/blog-new/internal/config"
	"github.com/spf13/cobra"
)

// multiHandler fans out log records to multiple handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// newLogger creates a logger on w at the configured level. When logPath is
// set, every record (DEBUG+) is also appended to that file as JSON.
func newLogger(w io.Writer, level, format, logPath string) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: parseSlogLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	if logPath == "" {
		return slog.New(handler), func() {}, nil
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(&multiHandler{handlers: []slog.Handler{handler, fileHandler}}), func() { f.Close() }, nil
}

func parseSlogLevel(level string) slog.Level {
	switch level {
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

// loadConfig resolves the config for cmd, overlaying the named flags, and
// builds the logger it describes.
func loadConfig(cmd *cobra.Command, flagNames ...string) (*config.Config, *slog.Logger, func(), error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, changedFlags(cmd, flagNames...))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logPath, _ := cmd.Flags().GetString("log-file")
	logger, closeLog, err := newLogger(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format, logPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}
