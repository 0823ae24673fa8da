// Package config loads process configuration from YAML plus environment
// variables using viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration. It is loaded once at startup
// and passed explicitly through fx rather than held as a package-level
// singleton.
type Config struct {
	Database struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		User            string        `mapstructure:"user"`
		Password        string        `mapstructure:"password"`
		Name            string        `mapstructure:"name"`
		SSLMode         string        `mapstructure:"sslmode"`
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	} `mapstructure:"database"`

	Upstream struct {
		MetadataBaseURL string `mapstructure:"metadata_base_url"`
		BookBaseURL     string `mapstructure:"book_base_url"`
		TradesBaseURL   string `mapstructure:"trades_base_url"`

		// Authenticated-endpoint credentials. Absence of ApiKey disables
		// HMAC-signed endpoints (§6 Configuration).
		ApiKey     string `mapstructure:"api_key"`
		ApiSecret  string `mapstructure:"api_secret"`
		Passphrase string `mapstructure:"passphrase"`
		Address    string `mapstructure:"address"`

		RequestTimeout       time.Duration `mapstructure:"request_timeout"`
		RetryAttempts        int           `mapstructure:"retry_attempts"`
		RetryBaseDelay       time.Duration `mapstructure:"retry_base_delay"`
		RetryMaxDelay        time.Duration `mapstructure:"retry_max_delay"`
		PageSize             int           `mapstructure:"page_size"`
		PageSafetyCap        int           `mapstructure:"page_safety_cap"`
		OrderbookConcurrency int           `mapstructure:"orderbook_concurrency"`
		TradeConcurrency     int           `mapstructure:"trade_concurrency"`
		TradeLookback        time.Duration `mapstructure:"trade_lookback"`

		// RateLimitPerMinute bounds outbound requests per upstream host, on
		// top of the concurrency semaphore (§4.2, §5).
		RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`

		// TradeDebugDumpDir, when set, writes a gzip-compressed copy of each
		// raw recent-trades response the trade collector fetches, for
		// offline replay. Off by default.
		TradeDebugDumpDir string `mapstructure:"trade_debug_dump_dir"`
	} `mapstructure:"upstream"`

	Scheduler struct {
		Enabled           bool          `mapstructure:"enable_scheduler"`
		CollectInterval   time.Duration `mapstructure:"collect_interval"`
		TradeInterval     time.Duration `mapstructure:"trade_interval"`
		AnalysisInterval  time.Duration `mapstructure:"analysis_interval"`
		VolumeAggInterval time.Duration `mapstructure:"volume_agg_interval"`
		CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	} `mapstructure:"scheduler"`

	Retention struct {
		SnapshotDays    int `mapstructure:"snapshot_days"`
		TradeDays       int `mapstructure:"trade_days"`
		AlertDays       int `mapstructure:"alert_days"`
		MaxSnapshotRows int `mapstructure:"max_snapshot_rows"`
		MaxTradeRows    int `mapstructure:"max_trade_rows"`
	} `mapstructure:"retention"`

	Analysis struct {
		ArbitrageMinProfit        float64 `mapstructure:"arbitrage_min_profit"`
		ArbMinLiquidity           float64 `mapstructure:"arb_min_liquidity"`
		VolumeSpikeThreshold      float64 `mapstructure:"volume_spike_threshold"`
		SpreadAlertThreshold      float64 `mapstructure:"spread_alert_threshold"`
		RelationshipConfidenceMin float64 `mapstructure:"relationship_confidence_min"`
	} `mapstructure:"analysis"`

	Logging struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"logging"`

	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
	} `mapstructure:"metrics"`
}

// Load reads configuration from the given path (directory or file) layered
// with MARKETLENS_-prefixed environment variables, falling back to
// defaults for anything unset.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/marketlens")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("MARKETLENS")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Name = "marketlens"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxOpenConns = 15
	cfg.Database.MaxIdleConns = 5
	cfg.Database.ConnMaxLifetime = time.Hour

	cfg.Upstream.RequestTimeout = 30 * time.Second
	cfg.Upstream.RetryAttempts = 3
	cfg.Upstream.RetryBaseDelay = 500 * time.Millisecond
	cfg.Upstream.RetryMaxDelay = 10 * time.Second
	cfg.Upstream.PageSize = 500
	cfg.Upstream.PageSafetyCap = 50
	cfg.Upstream.OrderbookConcurrency = 5
	cfg.Upstream.TradeConcurrency = 3
	cfg.Upstream.TradeLookback = 10 * time.Minute
	cfg.Upstream.RateLimitPerMinute = 120
	cfg.Upstream.TradeDebugDumpDir = ""

	cfg.Scheduler.Enabled = false
	cfg.Scheduler.CollectInterval = 15 * time.Minute
	cfg.Scheduler.TradeInterval = 5 * time.Minute
	cfg.Scheduler.AnalysisInterval = 15 * time.Minute
	cfg.Scheduler.VolumeAggInterval = time.Hour
	cfg.Scheduler.CleanupInterval = 24 * time.Hour

	cfg.Retention.SnapshotDays = 7
	cfg.Retention.TradeDays = 14
	cfg.Retention.AlertDays = 30
	cfg.Retention.MaxSnapshotRows = 2_000_000
	cfg.Retention.MaxTradeRows = 5_000_000

	cfg.Analysis.ArbitrageMinProfit = 0.02
	cfg.Analysis.ArbMinLiquidity = 1000
	cfg.Analysis.VolumeSpikeThreshold = 3.0
	cfg.Analysis.SpreadAlertThreshold = 0.05
	cfg.Analysis.RelationshipConfidenceMin = 0.6

	cfg.Logging.Level = "info"

	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ":9090"
}

// AuthEnabled reports whether upstream credentials are present, which
// gates the HMAC-signed per-token trades endpoint (§6).
func (c *Config) AuthEnabled() bool {
	return c.Upstream.ApiKey != "" && c.Upstream.ApiSecret != ""
}
