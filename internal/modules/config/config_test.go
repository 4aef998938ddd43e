package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitInterval(t *testing.T) {
	cfg := &Config{TimeframeWaits: map[string]int{"1m": 30, "5m": 120}}

	assert.Equal(t, 30*time.Second, cfg.WaitInterval("1m"))
	assert.Equal(t, 120*time.Second, cfg.WaitInterval("5m"))
	// неизвестный таймфрейм: безопасный дефолт
	assert.Equal(t, time.Minute, cfg.WaitInterval("3d"))
}

func TestLoadTimeframes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timeframes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`timeframes:
  - timeframe: 1m
    wait: 30
  - timeframe: 1h
    wait: 600
`), 0o644))

	waits, err := loadTimeframes(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"1m": 30, "1h": 600}, waits)
}

func TestLoadTimeframesMissingFile(t *testing.T) {
	_, err := loadTimeframes(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
