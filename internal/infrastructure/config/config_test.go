package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, "bankrecon.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "EUR", cfg.Parsers.DefaultCurrency)
	assert.Equal(t, "credit", cfg.Parsers.MissingIndicator)
	assert.True(t, cfg.Parsers.MissingIndicatorCredit())
	assert.Equal(t, 0.8, cfg.Matching.MinConfidence)
	assert.Equal(t, 30, cfg.Matching.MaxDateDays)
	assert.Equal(t, "0.01", cfg.Matching.AmountTolerance)
	assert.Equal(t, 1000, cfg.Matching.CacheMaxEntries)
	assert.Equal(t, 15, cfg.Matching.CacheTTLMinutes)
	assert.Equal(t, "1460", cfg.Reconciliation.ClearingAccount)
	assert.Equal(t, "1200", cfg.Reconciliation.BankGLAccount)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("BANKRECON_DB_PATH", "/tmp/test.db")
	t.Setenv("BANKRECON_PORT", "9090")
	t.Setenv("BANKRECON_CURRENCY", "USD")
	t.Setenv("BANKRECON_MISSING_INDICATOR", "debit")
	t.Setenv("BANKRECON_MIN_CONFIDENCE", "0.95")
	t.Setenv("BANKRECON_CLEARING_ACCOUNT", "1470")

	cfg := LoadFromEnv()

	assert.Equal(t, "/tmp/test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "USD", cfg.Parsers.DefaultCurrency)
	assert.False(t, cfg.Parsers.MissingIndicatorCredit())
	assert.Equal(t, 0.95, cfg.Matching.MinConfidence)
	assert.Equal(t, "1470", cfg.Reconciliation.ClearingAccount)
}

func TestLoadYAML(t *testing.T) {
	yaml := `
storage:
  database_path: /data/recon.db
api:
  port: 8181
  allowed_origins:
    - https://recon.example.com
parsers:
  default_currency: CHF
matching:
  min_confidence: 0.9
  max_date_days: 14
reconciliation:
  clearing_account: "1461"
  bank_gl_account: "1210"
observability:
  logging:
    level: debug
    format: json
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/recon.db", cfg.Storage.DatabasePath)
	assert.Equal(t, 8181, cfg.API.Port)
	assert.Equal(t, []string{"https://recon.example.com"}, cfg.API.AllowedOrigins)
	assert.Equal(t, "CHF", cfg.Parsers.DefaultCurrency)
	assert.Equal(t, 0.9, cfg.Matching.MinConfidence)
	assert.Equal(t, 14, cfg.Matching.MaxDateDays)
	assert.Equal(t, "1461", cfg.Reconciliation.ClearingAccount)
	assert.Equal(t, "1210", cfg.Reconciliation.BankGLAccount)
	assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	assert.Equal(t, "json", cfg.Observability.Logging.Format)

	// Unset values still get defaults.
	assert.Equal(t, "0.01", cfg.Matching.AmountTolerance)
	assert.Equal(t, 1000, cfg.Matching.CacheMaxEntries)
}

func TestLoadWithoutParsersSectionKeepsCreditDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  database_path: /data/recon.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "credit", cfg.Parsers.MissingIndicator)
	assert.True(t, cfg.Parsers.MissingIndicatorCredit())
}

func TestLoadExplicitDebitIndicator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parsers:\n  missing_indicator: debit\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Parsers.MissingIndicatorCredit())
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("BANKRECON_DB_PATH", "/var/lib/recon.db")

	yaml := "storage:\n  database_path: ${BANKRECON_DB_PATH}\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/recon.db", cfg.Storage.DatabasePath)
}

func TestLoadOrEnvWithPathFallsBack(t *testing.T) {
	cfg := LoadOrEnvWithPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 8080, cfg.API.Port)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
