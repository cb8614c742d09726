// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/honorwall/roster-cli/internal/loader"
	"github.com/honorwall/roster-cli/internal/reconcile"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Apply     ApplyConfig     `yaml:"apply" mapstructure:"apply"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the record store backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        *StorePoolConfig `yaml:"pool,omitempty" mapstructure:"pool"`
}

// StorePoolConfig tunes the Postgres connection pool.
type StorePoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ReconcileConfig configures duplicate detection and field merging.
type ReconcileConfig struct {
	Thresholds reconcile.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`

	// Sentinels are dataset values treated as empty during merge
	// classification (e.g. "Unknown" in a branch column).
	Sentinels []string `yaml:"sentinels" mapstructure:"sentinels"`

	// Workers shards the pairwise duplicate scan. 1 disables sharding.
	Workers int `yaml:"workers" mapstructure:"workers"`

	// Mapping maps dataset column headers to record field names.
	Mapping loader.Mapping `yaml:"mapping" mapstructure:"mapping"`
}

// ApplyConfig configures change-set application.
type ApplyConfig struct {
	BatchSize     int     `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency   int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Verify        bool    `yaml:"verify" mapstructure:"verify"`
}

// FetchConfig configures remote roster fetching.
type FetchConfig struct {
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	TempDir       string  `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// ServerConfig configures the review server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment and validates the
// pieces that must fail fast (thresholds in particular).
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "roster.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("reconcile.thresholds.high_similarity", reconcile.DefaultHighSimilarity)
	v.SetDefault("reconcile.thresholds.first_name_similarity", reconcile.DefaultFirstNameSimilarity)
	v.SetDefault("reconcile.thresholds.prefix_match_min_len", reconcile.DefaultPrefixMatchMinLen)
	v.SetDefault("reconcile.sentinels", []string{"Unknown", "N/A", "None", "TBD"})
	v.SetDefault("reconcile.workers", 1)
	v.SetDefault("apply.batch_size", 500)
	v.SetDefault("apply.concurrency", 1)
	v.SetDefault("apply.verify", true)
	v.SetDefault("fetch.user_agent", "roster-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.rate_per_second", 2.0)
	v.SetDefault("fetch.temp_dir", "/tmp/roster-cli")

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

	// Bad thresholds would silently misclassify every pair; refuse to start.
	if err := cfg.Reconcile.Thresholds.Validate(); err != nil {
		return nil, eris.Wrap(err, "config: invalid thresholds")
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
