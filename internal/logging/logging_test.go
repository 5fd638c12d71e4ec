package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "json", Output: &buf})

	logger.Info("test message", "key", "value")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "test message", entries[0]["msg"])
	assert.Equal(t, "value", entries[0]["key"])
	assert.Equal(t, "INFO", entries[0]["level"])
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "text", Output: &buf})

	logger.Info("test message", "key", "value")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "key=value")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: "warn", Format: "json", Output: &buf})

	ctx := context.Background()
	Debug(ctx, "debug")
	Info(ctx, "info")
	Warn(ctx, "warn")
	Error(ctx, "error")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["msg"])
	assert.Equal(t, "error", entries[1]["msg"])
}

func TestContextHandler_AddsContextValues(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = WithClientID(ctx, "10.0.0.1")
	ctx = WithKeyID(ctx, "key-1")

	Info(ctx, "test message")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-123", entries[0]["request_id"])
	assert.Equal(t, "10.0.0.1", entries[0]["client_id"])
	assert.Equal(t, "key-1", entries[0]["key_id"])
}

func TestContextHandler_SurvivesWith(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-derived")
	logger.With("component", "optimizer").InfoContext(ctx, "derived")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "optimizer", entries[0]["component"])
	assert.Equal(t, "req-derived", entries[0]["request_id"])
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
	assert.Equal(t, "req-1", RequestID(WithRequestID(context.Background(), "req-1")))
}

func TestLogger_BindsContext(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: "info", Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-123")
	Logger(ctx).Info("bound")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-123", entries[0]["request_id"])
}

func TestAudit(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: "warn", Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-9")
	Audit(ctx, "preset_saved", "name", "Staging")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "AUDIT", entries[0]["msg"])
	assert.Equal(t, true, entries[0]["audit"])
	assert.Equal(t, "preset_saved", entries[0]["operation"])
	assert.Equal(t, "Staging", entries[0]["name"])
	assert.Equal(t, "req-9", entries[0]["request_id"])
}
