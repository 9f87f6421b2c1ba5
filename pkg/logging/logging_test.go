package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/pariopipe/pkg/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "model", "m1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "m1", entry["model"])
}

func TestNewWithWriterBadFormat(t *testing.T) {
	_, err := NewWithWriter(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewWritesFile(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default().Logging
	cfg.File = filepath.Join("logs", "pipeline.log")

	logger, closer, err := New(cfg, root)
	require.NoError(t, err)
	logger.Info("hello file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(root, "logs", "pipeline.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

func TestNewStderrOnly(t *testing.T) {
	logger, closer, err := New(config.Default().Logging, t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closer.Close())
}
