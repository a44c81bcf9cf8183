// Package extensions provides optional observers for the fabrik build
// engine: structured logging of every operation and build-tree tracing for
// failure diagnosis.
package extensions

import (
	"context"
	"log/slog"
	"time"

	fabrik "github.com/fabrik-go/fabrik"
)

// LoggingObserver logs every build, field evaluation and post-generation
// hook with durations.
//
// Usage:
//
//	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
//	instance, err := fabrik.Build(factory, overrides,
//	    fabrik.WithObserver(extensions.NewLoggingObserver(handler)))
type LoggingObserver struct {
	fabrik.BaseObserver
	logger *slog.Logger
}

// NewLoggingObserver creates a logging observer writing through handler.
func NewLoggingObserver(handler slog.Handler) *LoggingObserver {
	return &LoggingObserver{
		BaseObserver: fabrik.NewBaseObserver("logging"),
		logger:       slog.New(handler),
	}
}

func (o *LoggingObserver) Wrap(next func() (any, error), op *fabrik.Operation) (any, error) {
	start := time.Now()
	result, err := next()
	duration := time.Since(start)

	attrs := []any{
		"kind", string(op.Kind),
		"factory", op.FactoryName,
		"duration", duration,
	}
	if op.FieldName != "" {
		attrs = append(attrs, "field", op.FieldName)
	}
	if op.Step != nil {
		attrs = append(attrs, "sequence", op.Step.Sequence())
	}

	if err != nil {
		o.logger.Error("operation failed", append(attrs, "error", err)...)
	} else {
		o.logger.Debug("operation completed", attrs...)
	}
	return result, err
}

// SilentHandler is a slog.Handler that discards all output. Useful for
// exercising observers in tests without polluting test output.
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler.
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}
