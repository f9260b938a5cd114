package worker

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autopilot.log")
	logger := NewLogger("info", "json", path)

	logger.Debug("hidden")
	logger.Info("tick finished", "plan_id", 7)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"tick finished"`)
	assert.Contains(t, string(data), `"plan_id":7`)
	assert.NotContains(t, string(data), "hidden")
}
