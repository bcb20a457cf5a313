// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	SharePoint SharePointConfig `mapstructure:"sharepoint"`
	Host       HostConfig       `mapstructure:"host"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs discovery and download behavior.
type CrawlerConfig struct {
	UserAgent          string `mapstructure:"user_agent"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	DelayMs            int    `mapstructure:"delay_ms"`
	TopLinksPerPage    int    `mapstructure:"top_links_per_page"`
	MaxPagesDefault    int    `mapstructure:"max_pages_default"`
	DownloadTimeoutSec int    `mapstructure:"download_timeout_seconds"`
	MaxFileSizeMB      int    `mapstructure:"max_file_size_mb"`
}

// BrowserConfig configures the headless rendering crawler.
type BrowserConfig struct {
	Path          string `mapstructure:"path"`
	SettleDelayMs int    `mapstructure:"settle_delay_ms"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// DBConfig controls access to Postgres when it is the backend.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// SharePointConfig holds the Azure AD application credentials and the
// target site. Left empty, uploads are simulated.
type SharePointConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	SiteURL      string `mapstructure:"site_url"`
}

// HostConfig controls job subprocess supervision. An empty binary runs jobs
// in-process.
type HostConfig struct {
	Binary            string `mapstructure:"binary"`
	GracePeriodSec    int    `mapstructure:"grace_period_seconds"`
	SchedulerDisabled bool   `mapstructure:"scheduler_disabled"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.timeout_seconds", 30)
	v.SetDefault("crawler.delay_ms", 500)
	v.SetDefault("crawler.top_links_per_page", 15)
	v.SetDefault("crawler.max_pages_default", 100)
	v.SetDefault("crawler.download_timeout_seconds", 60)
	v.SetDefault("crawler.max_file_size_mb", 100)
	v.SetDefault("browser.settle_delay_ms", 2000)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("host.grace_period_seconds", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.MaxPagesDefault <= 0 {
		return fmt.Errorf("crawler.max_pages_default must be > 0")
	}
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when storage.backend is postgres")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or postgres, got %q", c.Storage.Backend)
	}
	return nil
}

// Timeout returns the page fetch timeout as a duration.
func (c CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Delay returns the politeness delay as a duration.
func (c CrawlerConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// DownloadTimeout returns the per-file download timeout as a duration.
func (c CrawlerConfig) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSec) * time.Second
}

// MaxFileSize returns the download size cap in bytes.
func (c CrawlerConfig) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// SettleDelay returns the post-render settle delay as a duration.
func (c BrowserConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// GracePeriod returns the child shutdown grace period as a duration.
func (c HostConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSec) * time.Second
}
