package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	quiet, err := New(false)
	require.NoError(t, err)
	assert.False(t, quiet.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, quiet.Core().Enabled(zapcore.InfoLevel))

	verbose, err := New(true)
	require.NoError(t, err)
	assert.True(t, verbose.Core().Enabled(zapcore.DebugLevel))
}

func TestNewWithOutput_WritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sfhtools.log")
	logger, err := NewWithOutput(false, path)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("task succeeded", zap.String("run_id", "060"), zap.Int("exit_code", 0))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "sfhtools", rec["logger"])
	assert.Equal(t, "task succeeded", rec["msg"])
	assert.Equal(t, "060", rec["run_id"])
	assert.Equal(t, float64(0), rec["exit_code"])
	assert.Contains(t, rec, "ts")
}
