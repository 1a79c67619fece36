package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_NoSinksIsNop(t *testing.T) {
	log, closeLog, err := New(Options{Level: "info"})
	require.NoError(t, err)
	assert.NotNil(t, log)
	log.Info("dropped")
	closeLog()
}

func TestNew_RejectsBadOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud", Console: true})
	assert.Error(t, err)

	_, _, err = New(Options{Format: "xml", Console: true})
	assert.Error(t, err)
}

func TestNew_FileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "vcompress.log")

	log, closeLog, err := New(Options{Level: "debug", Format: "console", File: path})
	require.NoError(t, err)
	log.Info("encode finished", zap.String("input", "a.mp4"))
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "encode finished", entry["msg"])
	assert.Equal(t, "a.mp4", entry["input"])
}

func TestNewWriter_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter(&buf, "warn")
	require.NoError(t, err)

	log.Info("quiet")
	log.Warn("loud")

	out := buf.String()
	assert.False(t, strings.Contains(out, "quiet"))
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "WARN")
}

func TestNew_CloseReleasesLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vcompress.log")

	for i := 0; i < 3; i++ {
		log, closeLog, err := New(Options{Level: "info", File: path})
		require.NoError(t, err)
		log.Info("run", zap.Int("n", i))
		closeLog()
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)

	// A released file can be removed and recreated by the next run.
	require.NoError(t, os.Remove(path))
	_, closeLog, err := New(Options{File: path})
	require.NoError(t, err)
	closeLog()
	assert.FileExists(t, path)
}
