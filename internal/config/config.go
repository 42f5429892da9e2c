// Package config loads application configuration from config.yaml and
// MATCH_-prefixed environment variables.
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
	Remote      RemoteConfig      `yaml:"remote" mapstructure:"remote"`
	Match       MatchConfig       `yaml:"match" mapstructure:"match"`
	Underserved UnderservedConfig `yaml:"underserved" mapstructure:"underserved"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the registry database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"` // sqlite file path
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RemoteConfig configures the authoritative scoring service. When disabled,
// every call site runs the local pipeline directly.
type RemoteConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
}

// MatchConfig holds the tunable knobs of the matching pipeline. The rubric
// itself (criteria, thresholds, tiers) is fixed in code.
type MatchConfig struct {
	// ScanMinScore is the floor for allocator-initiated request scans.
	ScanMinScore int `yaml:"scan_min_score" mapstructure:"scan_min_score"`
	// RankMinScore is the floor for per-request allocator rankings.
	RankMinScore int `yaml:"rank_min_score" mapstructure:"rank_min_score"`
	// MaxResults caps either ranked output.
	MaxResults int `yaml:"max_results" mapstructure:"max_results"`
	// RegistryLimit caps allocator rows read per ranking.
	RegistryLimit int `yaml:"registry_limit" mapstructure:"registry_limit"`
	// RequestLimit caps candidate requests read per scan.
	RequestLimit int `yaml:"request_limit" mapstructure:"request_limit"`
	// ScanConcurrency bounds the scoring fan-out in the scan path.
	ScanConcurrency int `yaml:"scan_concurrency" mapstructure:"scan_concurrency"`
	// EnrichmentDisabled turns off heuristic mandate enrichment.
	EnrichmentDisabled bool `yaml:"enrichment_disabled" mapstructure:"enrichment_disabled"`
}

// UnderservedConfig points at an optional YAML override for the per-year
// underserved-geography lists.
type UnderservedConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// ServerConfig configures the HTTP server.
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

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.path", "match.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.base_url", "https://match.caprock-exchange.com/api/v1")
	v.SetDefault("remote.timeout_secs", 15)
	v.SetDefault("remote.rate_limit", 10)
	v.SetDefault("match.scan_min_score", 70)
	v.SetDefault("match.rank_min_score", 0)
	v.SetDefault("match.max_results", 500)
	v.SetDefault("match.registry_limit", 1000)
	v.SetDefault("match.request_limit", 500)
	v.SetDefault("match.scan_concurrency", 8)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
