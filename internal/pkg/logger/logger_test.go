package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(format string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewLogger(&LogConfig{Level: "debug", Format: format, Writer: buf, ServiceName: "shelfstock"}), buf
}

func TestLogger_AddsContextIdentifiers(t *testing.T) {
	l, buf := newBufferLogger("json")
	saleID := uuid.New()

	ctx := WithSaleID(context.Background(), saleID)
	ctx = context.WithValue(ctx, ContextKeyRequestID, "req-1")
	l.InfoContext(ctx, "sale committed", slog.Int("lines", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, saleID.String(), entry["sale_id"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "shelfstock", entry["service"])
	assert.Equal(t, "INFO", entry["severity"])
	assert.EqualValues(t, 2, entry["lines"])
}

func TestLogger_RedactsSecrets(t *testing.T) {
	l, buf := newBufferLogger("json")

	l.Info("connecting", slog.String("db_password", "hunter2"),
		slog.String("dsn", "postgresql://shelf:hunter2@db:5432/shelfstock"))

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "***REDACTED***")
}

func TestLogger_TextFormat(t *testing.T) {
	l, buf := newBufferLogger("text")

	l.With(slog.String("component", "allocator")).Warn("retrying commit", slog.Int("attempt", 2))

	out := buf.String()
	assert.True(t, strings.Contains(out, "WARN"))
	assert.Contains(t, out, "retrying commit")
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "attempt")
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLogger(&LogConfig{Level: "warn", Format: "json", Writer: buf})

	l.Info("hidden")
	l.Error("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestFromContext(t *testing.T) {
	l, _ := newBufferLogger("json")
	ctx := WithLogger(context.Background(), l.Logger)

	assert.Same(t, l.Logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
