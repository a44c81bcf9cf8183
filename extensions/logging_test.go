package extensions

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fabrik "github.com/fabrik-go/fabrik"
)

func TestLoggingObserverPassesValuesThrough(t *testing.T) {
	factory := fabrik.MustNewDefinition("ext.Logged", map[string]any{
		"name": fabrik.NewLazyFunction(func() (any, error) { return "x", nil }),
	})

	instance, err := fabrik.Build(factory, nil,
		fabrik.WithObserver(NewLoggingObserver(NewSilentHandler())))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "x"}, instance)
}

func TestLoggingObserverWritesRecords(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	factory := fabrik.MustNewDefinition("ext.LoggedText", map[string]any{
		"name": fabrik.NewLazyFunction(func() (any, error) { return "x", nil }),
	})

	_, err := fabrik.Build(factory, nil,
		fabrik.WithObserver(NewLoggingObserver(handler)))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "kind=evaluate")
	assert.Contains(t, out, "kind=build")
	assert.Contains(t, out, "factory=ext.LoggedText")
	assert.Contains(t, out, "field=name")
}

func TestLoggingObserverLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	boom := errors.New("boom")
	factory := fabrik.MustNewDefinition("ext.LoggedErr", map[string]any{
		"bad": fabrik.NewLazyFunction(func() (any, error) { return nil, boom }),
	})

	_, err := fabrik.Build(factory, nil,
		fabrik.WithObserver(NewLoggingObserver(handler)))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "operation failed")
	assert.Contains(t, buf.String(), "boom")
}

func TestSilentHandlerDiscardsEverything(t *testing.T) {
	h := NewSilentHandler()
	assert.False(t, h.Enabled(context.Background(), slog.LevelError))
	assert.Same(t, slog.Handler(h), h.WithGroup("g"))
	assert.Same(t, slog.Handler(h), h.WithAttrs(nil))
}

func TestBuildTraceObserverRecordsResolutionOrder(t *testing.T) {
	factory := fabrik.MustNewDefinition("ext.Traced", map[string]any{
		"first":  fabrik.NewLazyFunction(func() (any, error) { return 1, nil }),
		"second": fabrik.NewLazyFunction(func() (any, error) { return 2, nil }),
	})

	trace := NewBuildTraceObserver(NewSilentHandler())
	_, err := fabrik.Build(factory, nil, fabrik.WithObserver(trace))
	require.NoError(t, err)
	assert.Equal(t, []string{"ext.Traced.first", "ext.Traced.second"}, trace.Resolved())
}

func TestBuildTraceObserverLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	factory := fabrik.MustNewDefinition("ext.TracedErr", map[string]any{
		"ok": fabrik.NewLazyFunction(func() (any, error) { return 1, nil }),
		"bad": fabrik.NewLazyFunction(func() (any, error) {
			return nil, errors.New("boom")
		}),
	})

	trace := NewBuildTraceObserver(handler)
	_, err := fabrik.Build(factory, nil, fabrik.WithObserver(trace))
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "build failed")
	assert.Contains(t, out, "ext.TracedErr")
	assert.True(t, strings.Contains(out, "seq=0"))
}
