package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("ordering", &buf, slog.LevelDebug)

	log.Info("order_submitted", "Order submitted", "req-1", map[string]interface{}{
		"order_id": "abc",
		"items":    3,
	})

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))

	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "Order submitted", rec["msg"])
	assert.Equal(t, "ordering", rec["service"])
	assert.Equal(t, "order_submitted", rec["action"])
	assert.Equal(t, "req-1", rec["request_id"])

	details, ok := rec["details"].(map[string]interface{})
	require.True(t, ok, "details group missing: %s", buf.String())
	assert.Equal(t, "abc", details["order_id"])
	assert.EqualValues(t, 3, details["items"])
}

func TestLoggerErrorGroup(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("kitchen", &buf, slog.LevelInfo)

	log.Error("advance_failed", "Failed to advance order", "req-2", errors.New("boom"), nil)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))

	errGroup, ok := rec["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "boom", errGroup["msg"])
	assert.NotEmpty(t, errGroup["stack"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("kitchen", &buf, slog.LevelInfo)

	log.Debug("noise", "should be dropped", "", nil)
	assert.Zero(t, buf.Len())

	log.Error("validation_failed", "no error attached", "", nil, nil)
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
