package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Apollo    ApolloConfig    `yaml:"apollo" mapstructure:"apollo"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Plans     map[string]int  `yaml:"plans" mapstructure:"plans"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ApolloConfig holds the people-search provider settings. An empty key
// disables lead generation.
type ApolloConfig struct {
	Key       string      `yaml:"key" mapstructure:"key"`
	BaseURL   string      `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64     `yaml:"rate_limit" mapstructure:"rate_limit"`
	Retry     RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig bounds retries of transient provider errors.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// AnthropicConfig holds Anthropic API settings for email variations.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// AuthConfig holds the session token verification settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Issuer    string `yaml:"issuer" mapstructure:"issuer"`
}

// PipelineConfig configures lead generation.
type PipelineConfig struct {
	Threshold         int    `yaml:"threshold" mapstructure:"threshold"`
	StageTimeoutSecs  int    `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
	PerPageMultiplier int    `yaml:"per_page_multiplier" mapstructure:"per_page_multiplier"`
	MaxPerPage        int    `yaml:"max_per_page" mapstructure:"max_per_page"`
	VocabularyPath    string `yaml:"vocabulary_path" mapstructure:"vocabulary_path"`
	// HoldTTLSecs is how long an unclosed quota hold keeps its leads.
	// Zero uses the guard default.
	HoldTTLSecs int `yaml:"hold_ttl_secs" mapstructure:"hold_ttl_secs"`
}

// ScoringConfig overrides rule points by rule name.
type ScoringConfig struct {
	Points map[string]int `yaml:"points" mapstructure:"points"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins      []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReadTimeoutSecs     int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs    int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (if present) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. Unlike the default
// lookup, a named file that does not exist is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so env-only values still unmarshal.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("apollo.key", "")
	v.SetDefault("apollo.base_url", "https://api.apollo.io")
	v.SetDefault("apollo.rate_limit", 5.0)
	v.SetDefault("apollo.retry.max_attempts", 2)
	v.SetDefault("apollo.retry.initial_backoff_ms", 250)
	v.SetDefault("apollo.retry.max_backoff_ms", 2000)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1000)
	v.SetDefault("anthropic.temperature", 0.7)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("pipeline.threshold", 60)
	v.SetDefault("pipeline.stage_timeout_secs", 10)
	v.SetDefault("pipeline.per_page_multiplier", 3)
	v.SetDefault("pipeline.max_per_page", 100)
	v.SetDefault("pipeline.vocabulary_path", "")
	v.SetDefault("pipeline.hold_ttl_secs", 900)
	v.SetDefault("plans", map[string]int{"free": 5, "starter": 100, "pro": 400, "growth": 1500})
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 120)
	v.SetDefault("server.shutdown_timeout_secs", 20)
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

// Validate checks the settings a command mode depends on. Known modes are
// "serve", "generate" and "store".
func (c *Config) Validate(mode string) error {
	var errs []error
	req := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	req(c.Store.DatabaseURL != "", "store.database_url is required")

	switch mode {
	case "store":
	case "serve":
		req(c.Server.Port > 0 && c.Server.Port <= 65535, "server.port must be > 0 and <= 65535")
		req(c.Auth.JWTSecret != "", "auth.jwt_secret is required")
		c.validatePipeline(req)
	case "generate":
		c.validatePipeline(req)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "config: validation failed")
	}
	return nil
}

func (c *Config) validatePipeline(req func(bool, string, ...any)) {
	req(c.Pipeline.Threshold >= 0 && c.Pipeline.Threshold <= 100, "pipeline.threshold must be between 0 and 100")
	req(c.Pipeline.StageTimeoutSecs > 0, "pipeline.stage_timeout_secs must be > 0")
	req(c.Pipeline.MaxPerPage > 0 && c.Pipeline.MaxPerPage <= 200, "pipeline.max_per_page must be between 1 and 200")
	req(c.Pipeline.HoldTTLSecs >= 0, "pipeline.hold_ttl_secs must be >= 0")
	req(c.Apollo.Retry.MaxAttempts >= 1, "apollo.retry.max_attempts must be >= 1")
	for plan, n := range c.Plans {
		req(n >= 0, "plans.%s must be >= 0", plan)
	}
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
