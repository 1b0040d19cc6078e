package logger_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iscle/haven-go/internal/logger"
)

// decodeLines parses JSON log lines from buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), "invalid JSON line: %s", scanner.Text())
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestSlogLoggerFieldsAndModules(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)

	cacheLog := log.Module("datastore").Module("cache").With(logger.String("cache_key", "wallpaper nature"))
	cacheLog.Info("photo drawn",
		logger.Int("remaining", 4),
		logger.Bool("reset", false),
		logger.Error(errors.New("boom")),
		logger.Duration("elapsed", 1500*time.Millisecond))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "photo drawn", entry["msg"])
	assert.Equal(t, "datastore.cache", entry["module"])
	assert.Equal(t, "wallpaper nature", entry["cache_key"])
	assert.InDelta(t, 4, entry["remaining"], 0)
	assert.Equal(t, false, entry["reset"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "1.5s", entry["elapsed"])
	assert.Contains(t, entry, "time")
}

func TestSlogLoggerLevelFiltering(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelWarn, time.UTC)

	log.Trace("trace")
	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Log(logger.LogLevelError, "error")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["msg"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestSlogLoggerTraceLevel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelTrace, time.UTC)
	log.Trace("sql query", logger.String("sql", "SELECT 1"))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "TRACE", entries[0]["level"])
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)

	ctx := logger.WithTraceID(context.Background(), "rotation-42")
	log.WithContext(ctx).Info("rotating")
	log.WithContext(context.Background()).Info("no trace")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "rotation-42", entries[0]["trace_id"])
	assert.NotContains(t, entries[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mainPath := filepath.Join(dir, "logs", "haven.log")
	fetchPath := filepath.Join(dir, "logs", "unsplash.log")

	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		Timezone:     "UTC",
		DefaultLevel: "debug",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: mainPath, Level: "debug"},
		ModuleOutputs: map[string]logger.ModuleOutput{
			"unsplash": {Enabled: true, FilePath: fetchPath, Level: "info"},
		},
	})
	require.NoError(t, err)

	cl.Module("wallpaper").Debug("cache miss")
	cl.Module("unsplash").Debug("filtered out")
	cl.Module("unsplash").Info("search completed")

	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	mainData, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	assert.Contains(t, string(mainData), "cache miss")
	assert.NotContains(t, string(mainData), "search completed")

	fetchData, err := os.ReadFile(fetchPath)
	require.NoError(t, err)
	assert.Contains(t, string(fetchData), "search completed")
	assert.NotContains(t, string(fetchData), "filtered out")
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = logger.NewCentralLogger(nil)
	require.Error(t, err)
}
