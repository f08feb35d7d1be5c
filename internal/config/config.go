package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Scan   ScanConfig   `yaml:"scan" mapstructure:"scan"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig tunes the Postgres connection pool.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// FetchConfig configures how trusted sources are queried.
type FetchConfig struct {
	TrustedDomains       []string      `yaml:"trusted_domains" mapstructure:"trusted_domains"`
	SearchURLTemplate    string        `yaml:"search_url_template" mapstructure:"search_url_template"`
	MaxRelevantSentences int           `yaml:"max_relevant_sentences" mapstructure:"max_relevant_sentences"`
	TimeoutSecs          int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes         int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	UserAgent            string        `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerHost          float64       `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	Retry                RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker              BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// RetryConfig bounds retries of transient fetch failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BreakerConfig configures the per-domain circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ScanConfig holds the decision thresholds and commit behavior of a scan.
type ScanConfig struct {
	AutoApplyThreshold  float64 `yaml:"auto_apply_threshold" mapstructure:"auto_apply_threshold"`
	DisputeThreshold    float64 `yaml:"dispute_threshold" mapstructure:"dispute_threshold"`
	VerifiedThreshold   float64 `yaml:"verified_threshold" mapstructure:"verified_threshold"`
	TransactionalCommit bool    `yaml:"transactional_commit" mapstructure:"transactional_commit"`
	MaxConcurrent       int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	StaleAfterMins      int     `yaml:"stale_after_mins" mapstructure:"stale_after_mins"`
}

// ServerConfig configures the HTTP endpoint.
type ServerConfig struct {
	Port            int `yaml:"port" mapstructure:"port"`
	ScanTimeoutSecs int `yaml:"scan_timeout_secs" mapstructure:"scan_timeout_secs"`
}

// MonitoringConfig configures scan health checks and webhook alerts.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinFinishedScans     int     `yaml:"min_finished_scans" mapstructure:"min_finished_scans"`
	StalePendingLimit    int     `yaml:"stale_pending_limit" mapstructure:"stale_pending_limit"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchTimeout returns the per-request fetch timeout.
func (c FetchConfig) FetchTimeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ScanTimeout returns the deadline applied to one API scan.
func (c ServerConfig) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutSecs) * time.Second
}

// Load reads configuration from config.yaml (if present) and POLITICA_*
// environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("POLITICA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.scan_timeout_secs", 120)
	v.SetDefault("fetch.trusted_domains", []string{
		"elecam.cm",
		"gov.cm",
		"minat.gov.cm",
		"assemblee-nationale.cm",
		"senat.cm",
		"cameroon-tribune.cm",
		"mincom.gov.cm",
		"prc.cm",
	})
	v.SetDefault("fetch.search_url_template", "https://%s/?s=%s")
	v.SetDefault("fetch.max_relevant_sentences", 10)
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("fetch.user_agent", "politica-scanner/1.0 (+https://politica.cm)")
	v.SetDefault("fetch.rate_per_host", 2.0)
	v.SetDefault("fetch.retry.max_attempts", 3)
	v.SetDefault("fetch.retry.initial_backoff_ms", 500)
	v.SetDefault("fetch.retry.max_backoff_ms", 5000)
	v.SetDefault("fetch.breaker.failure_threshold", 5)
	v.SetDefault("fetch.breaker.reset_timeout_secs", 30)
	v.SetDefault("scan.auto_apply_threshold", 0.5)
	v.SetDefault("scan.dispute_threshold", 0.5)
	v.SetDefault("scan.verified_threshold", 0.8)
	v.SetDefault("scan.transactional_commit", true)
	v.SetDefault("scan.max_concurrent", 0)
	v.SetDefault("scan.stale_after_mins", 15)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_finished_scans", 5)
	v.SetDefault("monitoring.stale_pending_limit", 1)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "serve",
// "scan", "migrate", "logs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required (sqlite file path)")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be postgres or sqlite", c.Store.Driver))
	}

	switch mode {
	case "serve", "scan":
		errs = append(errs, c.validateScan()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if mode == "serve" && c.Monitoring.Enabled && c.Monitoring.LookbackWindowHours <= 0 {
			errs = append(errs, "monitoring.lookback_window_hours must be > 0")
		}
	case "migrate", "logs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScan() []string {
	var errs []string
	thresholds := []struct {
		name string
		v    float64
	}{
		{"scan.auto_apply_threshold", c.Scan.AutoApplyThreshold},
		{"scan.dispute_threshold", c.Scan.DisputeThreshold},
		{"scan.verified_threshold", c.Scan.VerifiedThreshold},
	}
	for _, th := range thresholds {
		if th.v < 0 || th.v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 1", th.name))
		}
	}
	if len(c.Fetch.TrustedDomains) == 0 {
		errs = append(errs, "fetch.trusted_domains must not be empty")
	}
	if strings.Count(c.Fetch.SearchURLTemplate, "%s") != 2 {
		errs = append(errs, "fetch.search_url_template must contain two %s verbs (domain, query)")
	}
	if c.Scan.MaxConcurrent < 0 {
		errs = append(errs, "scan.max_concurrent must be >= 0")
	}
	return errs
}

// InitLogger configures the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
