package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestConfigure(t *testing.T) {
	t.Cleanup(func() {
		require.NoError(t, Configure("info", "text", os.Stderr))
	})

	var buf bytes.Buffer
	require.NoError(t, Configure("warn", "json", &buf))

	DefaultLogger.Info("hidden")
	DefaultLogger.Warn("shown", "index", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, float64(3), entry["index"])

	buf.Reset()
	SetVerbose(true)
	DefaultLogger.Debug("debugging")
	assert.Contains(t, buf.String(), "debugging")

	assert.Error(t, Configure("info", "xml", nil))
	assert.Error(t, Configure("chatty", "text", nil))
}
