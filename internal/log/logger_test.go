package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")
	cfg := ConfigFromEnv()
	assert.Equal(t, slog.LevelDebug, cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)

	t.Setenv("LOG_FORMAT", "")
	assert.Equal(t, FormatText, ConfigFromEnv().Format)
}

func TestNewJSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatJSON, Output: &buf, Component: ComponentState})

	logger.With(FieldUserID, "alex").Info("Entry saved", FieldInstanceID, "id-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "state", rec[FieldComponent])
	assert.Equal(t, "alex", rec[FieldUserID])
	assert.Equal(t, "id-1", rec[FieldInstanceID])
	assert.Equal(t, "Entry saved", rec["msg"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})

	logger.Info("dropped")
	assert.Zero(t, buf.Len())
	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestWithComponentKeepsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).With(FieldRequestID, "r-1").WithComponent(ComponentHTTP)

	logger.Info("hello")
	assert.Equal(t, ComponentHTTP, logger.Component())
	assert.Contains(t, buf.String(), "component=http")
	assert.Contains(t, buf.String(), "request_id=r-1")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("nothing") })
}

func TestContextRoundTrip(t *testing.T) {
	logger := Discard().WithComponent(ComponentWorker)
	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)
	assert.Equal(t, ComponentApp, fallback.Component())
}

func TestFieldsToSliceSorted(t *testing.T) {
	f := NewFields().WithUser("alex", 2025).WithOperation(OpUpdate)
	assert.Equal(t, []any{FieldOperation, OpUpdate, FieldUserID, "alex", FieldYear, 2025}, f.ToSlice())

	assert.NotContains(t, NewFields().WithUser("sam", 0), FieldYear)
}

func TestLogHTTPEnd(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := New(Config{Format: FormatJSON, Output: &buf})
		r := httptest.NewRequest("GET", "/api/users/alex/credits?year=2025", nil)

		LogHTTPEnd(context.Background(), logger, r, "/api/users/{user}/credits", tt.status, 12, "10.0.0.1")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, tt.level, rec["level"])
		assert.Equal(t, "/api/users/{user}/credits", rec[FieldRoute])
		assert.Equal(t, "/api/users/alex/credits", rec[FieldPath])
		assert.Equal(t, "year=2025", rec[FieldQuery])
		assert.Equal(t, ComponentHTTP, rec[FieldComponent])
		assert.EqualValues(t, tt.status, rec[FieldStatusCode])
		assert.Equal(t, tt.status < 400, rec[FieldSuccess])
	}
}
