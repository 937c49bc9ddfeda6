package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestSlogLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(LevelInfo, "json", &buf)

	logger.Info("session created", "session_id", "abc")
	logger.Debug("should be filtered")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "session created", record["msg"])
	assert.Equal(t, "abc", record["session_id"])
}

func TestSlogLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(LevelDebug, "text", &buf)

	logger.Debug("trace", "step", 1)

	assert.Contains(t, buf.String(), "trace")
	assert.Contains(t, buf.String(), "step=1")
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(LevelWarn, false, &buf)

	logger.Info("filtered out")
	logger.Warn("rate limited", "agent", "joker")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "rate limited", record["message"])
	assert.Equal(t, "joker", record["agent"])
}

func TestNoOpLogger(t *testing.T) {
	var logger Logger = NoOpLogger{}
	assert.NotPanics(t, func() {
		logger.Debug("a")
		logger.Info("b", "k", "v")
		logger.Warn("c")
		logger.Error("d")
	})
}
