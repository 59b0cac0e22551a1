package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	FRED        FREDConfig        `yaml:"fred" mapstructure:"fred"`
	Alternative AlternativeConfig `yaml:"alternative" mapstructure:"alternative"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Retention   RetentionConfig   `yaml:"retention" mapstructure:"retention"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the durable-store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// FREDConfig holds the primary provider's API settings.
type FREDConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// AlternativeConfig holds the optional secondary provider's settings.
type AlternativeConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	APIKey          string `yaml:"api_key" mapstructure:"api_key"`
	UseFallbackData bool   `yaml:"use_fallback_data" mapstructure:"use_fallback_data"`
}

// HTTPConfig configures outbound provider request behavior.
type HTTPConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`
}

// CacheConfig sizes the tiered cache pools.
type CacheConfig struct {
	CurveTTLHours        int `yaml:"curve_ttl_hours" mapstructure:"curve_ttl_hours"`
	CurveMaxEntries      int `yaml:"curve_max_entries" mapstructure:"curve_max_entries"`
	TimeSeriesTTLHours   int `yaml:"timeseries_ttl_hours" mapstructure:"timeseries_ttl_hours"`
	TimeSeriesMaxEntries int `yaml:"timeseries_max_entries" mapstructure:"timeseries_max_entries"`
	DefaultTTLHours      int `yaml:"default_ttl_hours" mapstructure:"default_ttl_hours"`
	DefaultMaxEntries    int `yaml:"default_max_entries" mapstructure:"default_max_entries"`
}

// RetentionConfig configures the age-based cleanup sweep.
type RetentionConfig struct {
	DaysToKeep int `yaml:"days_to_keep" mapstructure:"days_to_keep"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MARKETDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "marketdata.db")
	v.SetDefault("fred.base_url", "https://api.stlouisfed.org/fred/series/observations")
	v.SetDefault("alternative.enabled", false)
	v.SetDefault("alternative.use_fallback_data", true)
	v.SetDefault("http.timeout_secs", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("cache.curve_ttl_hours", 24)
	v.SetDefault("cache.curve_max_entries", 500)
	v.SetDefault("cache.timeseries_ttl_hours", 72)
	v.SetDefault("cache.timeseries_max_entries", 1000)
	v.SetDefault("cache.default_ttl_hours", 4)
	v.SetDefault("cache.default_max_entries", 1000)
	v.SetDefault("retention.days_to_keep", 365)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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

// InitLogger initializes the global zap logger.
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
