package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "1d", c.Engine.Interval)
	assert.Equal(t, 4, c.Engine.Degree)
	assert.Equal(t, 2.0, c.Engine.KStd)
	assert.Equal(t, 24*time.Hour, c.Cache.TTL)
	assert.Equal(t, 0.7, c.Correlation.Threshold)
	assert.Equal(t, 2, c.Engine.Search.DegreeMin)
	assert.Equal(t, 6, c.Engine.Search.DegreeMax)
	assert.Equal(t, 720, c.Engine.Search.LookbackMax)
	assert.True(t, c.Correlation.Enabled)
	assert.NoError(t, c.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
engine:
  interval: 4h
  days: 90
  search:
    mode: random
    seed: 7
correlation:
  enabled: false
cache:
  ttl: 1h
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, "4h", c.Engine.Interval)
	assert.Equal(t, 90, c.Engine.Days)
	assert.Equal(t, "random", c.Engine.Search.Mode)
	assert.Equal(t, int64(7), c.Engine.Search.Seed)
	assert.False(t, c.Correlation.Enabled)
	assert.Equal(t, time.Hour, c.Cache.TTL)
	// untouched values keep their defaults
	assert.Equal(t, 300, c.Engine.Search.Budget)
	assert.Equal(t, "sharpe_adjusted", c.Engine.Objective)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad objective", "engine:\n  objective: maximize_everything\n"},
		{"inverted degree bounds", "engine:\n  search:\n    degree_min: 5\n    degree_max: 3\n"},
		{"threshold out of range", "correlation:\n  threshold: 1.5\n"},
		{"finnhub without key", "source:\n  provider: finnhub\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n  brokers: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv_AppliesOverrides(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	t.Setenv("SYMBOLS", "BTCUSDT,ETHUSDT")
	t.Setenv("OUTPUT_DIRECTORY", "/tmp/bundles")
	t.Setenv("ENGINE_SEED", "1234")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, c.Engine.Symbols)
	assert.Equal(t, "/tmp/bundles", c.Export.OutputDirectory)
	assert.Equal(t, int64(1234), c.Engine.Search.Seed)
}

func TestLoadWithEnv_MissingFileUsesDefaults(t *testing.T) {
	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
}
