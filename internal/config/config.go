package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	TVDB      TVDBConfig      `mapstructure:"tvdb"`
	Mediathek MediathekConfig `mapstructure:"mediathek"`
	Sonarr    SonarrConfig    `mapstructure:"sonarr"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Download  DownloadConfig  `mapstructure:"download"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// TVDBConfig holds canonical metadata source configuration.
type TVDBConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// MediathekConfig holds candidate feed configuration.
type MediathekConfig struct {
	FeedURL string `mapstructure:"feed_url"`
	Sources string `mapstructure:"sources"` // feed source filter, e.g. "!ard"
	Timeout int    `mapstructure:"timeout"` // seconds
}

// SonarrConfig holds downstream consumer configuration.
// Leaving URL empty disables the integration; matches are then cached only.
type SonarrConfig struct {
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // seconds
	Tag     string `mapstructure:"tag"`     // membership marker label
}

// SyncConfig holds reconciliation and lifecycle configuration.
type SyncConfig struct {
	Cron           string `mapstructure:"cron"`
	SweepCron      string `mapstructure:"sweep_cron"`
	CacheTTLDays   int    `mapstructure:"cache_ttl_days"`
	RetentionDays  int    `mapstructure:"retention_days"`
	VariantTTLMins int    `mapstructure:"variant_ttl_minutes"`
}

// DownloadConfig holds transfer executor configuration.
type DownloadConfig struct {
	Dir            string `mapstructure:"dir"`
	TimeoutMinutes int    `mapstructure:"timeout_minutes"`
}

// Default returns a Config with default values.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.castarr")
	}

	v.SetEnvPrefix("CASTARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8484)

	v.SetDefault("database.path", "./data/castarr.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("tvdb.base_url", "https://api4.thetvdb.com/v4")
	v.SetDefault("tvdb.api_key", "")
	v.SetDefault("tvdb.timeout", 15)

	v.SetDefault("mediathek.feed_url", "https://mediathekviewweb.de/feed")
	v.SetDefault("mediathek.sources", "!ard")
	v.SetDefault("mediathek.timeout", 15)

	v.SetDefault("sonarr.url", "")
	v.SetDefault("sonarr.api_key", "")
	v.SetDefault("sonarr.timeout", 10)
	v.SetDefault("sonarr.tag", "castarr")

	v.SetDefault("sync.cron", "0 * * * *")
	v.SetDefault("sync.sweep_cron", "30 4 * * *")
	v.SetDefault("sync.cache_ttl_days", 30)
	v.SetDefault("sync.retention_days", 30)
	v.SetDefault("sync.variant_ttl_minutes", 60)

	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.timeout_minutes", 60)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheTTL returns the availability record lifetime.
func (c *SyncConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLDays) * 24 * time.Hour
}

// Retention returns the inactivity retention window for watched series.
func (c *SyncConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// VariantTTL returns the title-variant cache lifetime.
func (c *SyncConfig) VariantTTL() time.Duration {
	return time.Duration(c.VariantTTLMins) * time.Minute
}

// TransferTimeout returns the bounded timeout for a single transfer.
func (c *DownloadConfig) TransferTimeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// Configured reports whether the downstream consumer integration is enabled.
func (c *SonarrConfig) Configured() bool {
	return c.URL != "" && c.APIKey != ""
}
