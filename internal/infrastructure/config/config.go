// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	minConf := cfg.Matching.MinConfidence
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage        StorageConfig        `yaml:"storage"`
	API            APIConfig            `yaml:"api"`
	Parsers        ParsersConfig        `yaml:"parsers"`
	Matching       MatchingConfig       `yaml:"matching"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ParsersConfig holds statement parser defaults
type ParsersConfig struct {
	DefaultCurrency string `yaml:"default_currency"`
	// MissingIndicator books CAMT entries without a credit/debit indicator
	// as "credit" or "debit". A business default, deliberately configurable.
	// A string so an omitted key falls back to credit instead of the bool
	// zero value.
	MissingIndicator string `yaml:"missing_indicator"`
}

// MissingIndicatorCredit reports whether entries without an indicator book
// as credits. Anything but an explicit "debit" means credit.
func (p ParsersConfig) MissingIndicatorCredit() bool {
	return p.MissingIndicator != "debit"
}

// MatchingConfig holds matching engine defaults
type MatchingConfig struct {
	MinConfidence   float64 `yaml:"min_confidence"`
	MaxDateDays     int     `yaml:"max_date_days"`
	AmountTolerance string  `yaml:"amount_tolerance"` // decimal string, e.g. "0.01"
	CacheMaxEntries int     `yaml:"cache_max_entries"`
	CacheTTLMinutes int     `yaml:"cache_ttl_minutes"`
}

// ReconciliationConfig holds reconciliation defaults. BankGLAccount is the
// single GL account every statement reconciles against; running multiple
// bank accounts needs a per-account mapping here first.
// TODO: map statement account IDs to GL accounts once a second bank account exists.
type ReconciliationConfig struct {
	ClearingAccount string `yaml:"clearing_account"`
	BankGLAccount   string `yaml:"bank_gl_account"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${BANKRECON_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("BANKRECON_DB_PATH", "bankrecon.db"),
		},
		API: APIConfig{
			Port: getEnvInt("BANKRECON_PORT", 8080),
		},
		Parsers: ParsersConfig{
			DefaultCurrency:  getEnv("BANKRECON_CURRENCY", "EUR"),
			MissingIndicator: getEnv("BANKRECON_MISSING_INDICATOR", "credit"),
		},
		Matching: MatchingConfig{
			MinConfidence:   getEnvFloat("BANKRECON_MIN_CONFIDENCE", 0.8),
			MaxDateDays:     getEnvInt("BANKRECON_MAX_DATE_DAYS", 30),
			AmountTolerance: getEnv("BANKRECON_AMOUNT_TOLERANCE", "0.01"),
		},
		Reconciliation: ReconciliationConfig{
			ClearingAccount: getEnv("BANKRECON_CLEARING_ACCOUNT", "1460"),
			BankGLAccount:   getEnv("BANKRECON_BANK_GL_ACCOUNT", "1200"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills in zero values that have sensible defaults
func (c *Config) applyDefaults() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "bankrecon.db"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if len(c.API.AllowedOrigins) == 0 {
		c.API.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Parsers.DefaultCurrency == "" {
		c.Parsers.DefaultCurrency = "EUR"
	}
	if c.Parsers.MissingIndicator == "" {
		c.Parsers.MissingIndicator = "credit"
	}
	if c.Matching.MinConfidence == 0 {
		c.Matching.MinConfidence = 0.8
	}
	if c.Matching.MaxDateDays == 0 {
		c.Matching.MaxDateDays = 30
	}
	if c.Matching.AmountTolerance == "" {
		c.Matching.AmountTolerance = "0.01"
	}
	if c.Matching.CacheMaxEntries == 0 {
		c.Matching.CacheMaxEntries = 1000
	}
	if c.Matching.CacheTTLMinutes == 0 {
		c.Matching.CacheTTLMinutes = 15
	}
	if c.Reconciliation.ClearingAccount == "" {
		c.Reconciliation.ClearingAccount = "1460"
	}
	if c.Reconciliation.BankGLAccount == "" {
		c.Reconciliation.BankGLAccount = "1200"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		var result float64
		if _, err := fmt.Sscanf(val, "%g", &result); err == nil {
			return result
		}
	}
	return fallback
}
