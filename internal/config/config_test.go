package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Address())
	assert.Equal(t, 15*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, Defaults().Detection, cfg.Detection)
	assert.Equal(t, Defaults().Risk, cfg.Risk)
	assert.Equal(t, "data/transactions.csv", cfg.Data.DatasetPath)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
http:
  port: 9090
  write_timeout: 30s
detection:
  fan_in:
    max_amount: 5000
  workers: 8
data:
  dataset_path: /srv/data/tx.csv
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	t.Setenv("AML_DETECTION__WORKERS", "2")
	t.Setenv("AML_LOGGING__FORMAT", "json")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, 5000.0, cfg.Detection.FanIn.MaxAmount)
	assert.Equal(t, 24.0, cfg.Detection.FanIn.MaxTimeWindowHours)
	assert.Equal(t, 2, cfg.Detection.Workers)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/srv/data/tx.csv", cfg.Data.DatasetPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.HTTP.Port = 0
	cfg.Detection.FanIn.MaxAmount = 0
	cfg.Risk.NightStartHour = 7

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.port")
	assert.Contains(t, err.Error(), "max_amount")
	assert.Contains(t, err.Error(), "night hours")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "detection.fan_out.min_split", envKey("AML_DETECTION__FAN_OUT__MIN_SPLIT"))
	assert.Equal(t, "http.port", envKey("AML_HTTP__PORT"))
}
