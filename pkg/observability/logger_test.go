package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(buf *bytes.Buffer, level LogLevel, format LogFormat) *slog.Logger {
	return NewLogger(LogConfig{
		Level:  level,
		Format: format,
		Output: buf,
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newBufferedLogger(&buf, LogLevelInfo, LogFormatText)

		logger.Info("hold acquired", "slot_key", "iv-1|2026-03-02T10:00")

		out := buf.String()
		assert.Contains(t, out, "hold acquired")
		assert.Contains(t, out, "slot_key=iv-1|2026-03-02T10:00")
	})

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newBufferedLogger(&buf, LogLevelInfo, LogFormatJSON)

		logger.Info("booking confirmed", "booking_id", "b-42")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "booking confirmed", entry["msg"])
		assert.Equal(t, "b-42", entry["booking_id"])
	})

	t.Run("level filters records", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newBufferedLogger(&buf, LogLevelWarn, LogFormatText)

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")
		logger.Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("service attributes on every record", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{
			Level:          LogLevelInfo,
			Format:         LogFormatJSON,
			Output:         &buf,
			ServiceName:    "scheduler-test",
			ServiceVersion: "1.2.3",
		})

		logger.Info("probe")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "scheduler-test", entry["service"])
		assert.Equal(t, "1.2.3", entry["version"])
	})

	t.Run("context IDs are stamped onto records", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newBufferedLogger(&buf, LogLevelInfo, LogFormatJSON)

		ctx := WithCorrelationID(context.Background(), "corr-123")
		ctx = WithRequestID(ctx, "req-456")
		logger.InfoContext(ctx, "probe")

		out := buf.String()
		assert.Contains(t, out, "corr-123")
		assert.Contains(t, out, "req-456")
	})
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()

	assert.Equal(t, LogLevelInfo, cfg.Level)
	assert.Equal(t, LogFormatText, cfg.Format)
	assert.Equal(t, "scheduler", cfg.ServiceName)
}

func TestProductionLogConfig(t *testing.T) {
	cfg := ProductionLogConfig()

	assert.Equal(t, LogLevelInfo, cfg.Level)
	assert.Equal(t, LogFormatJSON, cfg.Format)
	assert.True(t, cfg.AddSource)
	assert.Equal(t, "scheduler", cfg.ServiceName)
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected slog.Level
	}{
		{LogLevelDebug, slog.LevelDebug},
		{LogLevelInfo, slog.LevelInfo},
		{LogLevelWarn, slog.LevelWarn},
		{LogLevelError, slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			assert.Equal(t, tt.expected, parseSlogLevel(tt.input))
		})
	}
}

func TestAttributeHandler(t *testing.T) {
	t.Run("WithAttrs returns a distinct handler", func(t *testing.T) {
		var buf bytes.Buffer
		handler := &attributeHandler{
			handler: slog.NewJSONHandler(&buf, nil),
			attrs:   []slog.Attr{slog.String("default", "value")},
		}

		assert.NotEqual(t, handler, handler.WithAttrs([]slog.Attr{slog.String("extra", "attr")}))
	})

	t.Run("WithGroup returns a distinct handler", func(t *testing.T) {
		var buf bytes.Buffer
		handler := &attributeHandler{
			handler: slog.NewJSONHandler(&buf, nil),
		}

		assert.NotEqual(t, handler, handler.WithGroup("group"))
	})

	t.Run("Enabled delegates to the wrapped handler", func(t *testing.T) {
		var buf bytes.Buffer
		handler := &attributeHandler{
			handler: slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		}

		assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
		assert.True(t, handler.Enabled(context.Background(), slog.LevelWarn))
		assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
	})
}
