package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mcp-pantry-assistant/internal/config"
	"mcp-pantry-assistant/internal/models"
)

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pantry.log")
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "console", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Info("Pantry updated", zap.String("item", "Eggs"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"item":"Eggs"`)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestOrchestratorSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := OrchestratorSink(zap.New(core))

	sink(models.OrchestratorLogEntry{Step: "intent", Tool: "intentParser", OutputPreview: "[]"})
	sink(models.OrchestratorLogEntry{Step: "repair:1", Tool: "jsonFixer", Error: "no model configured"})

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "orchestrator", entries[0].LoggerName)
	assert.Equal(t, "[]", entries[0].ContextMap()["output"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "no model configured", entries[1].ContextMap()["error"])
	assert.Equal(t, "jsonFixer", entries[1].ContextMap()["tool"])
}

func TestOrchestratorSinkNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		OrchestratorSink(nil)(models.OrchestratorLogEntry{Step: "classify"})
	})
}
