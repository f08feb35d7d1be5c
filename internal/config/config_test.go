package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// No config.yaml in the temp dir.
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.Pool.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.ScanTimeout())
	assert.Len(t, cfg.Fetch.TrustedDomains, 8)
	assert.Contains(t, cfg.Fetch.TrustedDomains, "elecam.cm")
	assert.Equal(t, "https://%s/?s=%s", cfg.Fetch.SearchURLTemplate)
	assert.Equal(t, 15*time.Second, cfg.Fetch.FetchTimeout())
	assert.Equal(t, 3, cfg.Fetch.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Fetch.Breaker.FailureThreshold)
	assert.InDelta(t, 0.5, cfg.Scan.AutoApplyThreshold, 0.001)
	assert.InDelta(t, 0.5, cfg.Scan.DisputeThreshold, 0.001)
	assert.InDelta(t, 0.8, cfg.Scan.VerifiedThreshold, 0.001)
	assert.True(t, cfg.Scan.TransactionalCommit)
	assert.Equal(t, 15, cfg.Scan.StaleAfterMins)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.InDelta(t, 0.25, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: politica.db
log:
  level: debug
  format: console
fetch:
  trusted_domains: [prc.cm, senat.cm]
scan:
  verified_threshold: 0.75
  transactional_commit: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "politica.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"prc.cm", "senat.cm"}, cfg.Fetch.TrustedDomains)
	assert.InDelta(t, 0.75, cfg.Scan.VerifiedThreshold, 0.001)
	assert.False(t, cfg.Scan.TransactionalCommit)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.5, cfg.Scan.AutoApplyThreshold, 0.001)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("POLITICA_STORE_DRIVER", "postgres")
	t.Setenv("POLITICA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("POLITICA_SERVER_PORT", "3000")
	t.Setenv("POLITICA_STORE_DATABASE_URL", "postgres://localhost/politica")
	t.Setenv("POLITICA_SCAN_AUTO_APPLY_THRESHOLD", "0.7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/politica", cfg.Store.DatabaseURL)
	assert.InDelta(t, 0.7, cfg.Scan.AutoApplyThreshold, 0.001)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unterminated"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation in every mode.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/politica"
	cfg.Server.Port = 8080
	cfg.Fetch.TrustedDomains = []string{"prc.cm"}
	cfg.Fetch.SearchURLTemplate = "https://%s/?s=%s"
	cfg.Scan.AutoApplyThreshold = 0.5
	cfg.Scan.DisputeThreshold = 0.5
	cfg.Scan.VerifiedThreshold = 0.8
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	for _, mode := range []string{"serve", "scan", "migrate", "logs"} {
		assert.NoError(t, validDefaults().Validate(mode), mode)
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.Driver = "mysql"
	err = cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql"`)
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.NoError(t, cfg.Validate("scan"), "port only matters when serving")
}

func TestValidate_MonitoringLookback(t *testing.T) {
	cfg := validDefaults()
	cfg.Monitoring.Enabled = true

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.lookback_window_hours")

	cfg.Monitoring.LookbackWindowHours = 24
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_ScanSettings(t *testing.T) {
	cfg := validDefaults()
	cfg.Scan.VerifiedThreshold = 1.1
	cfg.Scan.DisputeThreshold = -0.1
	cfg.Fetch.TrustedDomains = nil
	cfg.Fetch.SearchURLTemplate = "https://%s/search"
	cfg.Scan.MaxConcurrent = -1

	err := cfg.Validate("scan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan.verified_threshold must be between 0 and 1")
	assert.Contains(t, err.Error(), "scan.dispute_threshold must be between 0 and 1")
	assert.Contains(t, err.Error(), "fetch.trusted_domains must not be empty")
	assert.Contains(t, err.Error(), "fetch.search_url_template")
	assert.Contains(t, err.Error(), "scan.max_concurrent")

	assert.NoError(t, cfg.Validate("logs"), "scan settings are ignored outside scan modes")
}
