package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	require.NoError(t, Init(Config{Level: "WARN", Format: "text", Output: path}))
	t.Cleanup(func() {
		_ = Init(Config{Level: "INFO", Format: "text", Output: "stdout"})
	})

	Info("hidden %s", "info")
	Warn("visible %s", "warning")
	Error("visible %d", 42)
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.NotContains(t, out, "hidden info")
	assert.Contains(t, out, "visible warning")
	assert.Contains(t, out, "visible 42")
	assert.Contains(t, out, "WARN")
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("INFO") })

	SetLevel("debug")
	assert.True(t, Enabled(LevelDebug))

	SetLevel("ERROR")
	assert.False(t, Enabled(LevelWarn))
	assert.True(t, Enabled(LevelError))

	SetLevel("nonsense")
	assert.True(t, Enabled(LevelError))
	assert.False(t, Enabled(LevelInfo))
}

func TestJSONFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.json")
	require.NoError(t, Init(Config{Level: "DEBUG", Format: "json", Output: path}))
	t.Cleanup(func() {
		_ = Init(Config{Level: "INFO", Format: "text", Output: "stdout"})
	})

	Debug("action=%s", "readFile")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"action=readFile"`)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
