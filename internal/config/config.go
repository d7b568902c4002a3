package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the document store backend. Every field is required;
// a blank value puts persistence into offline mode.
type StoreConfig struct {
	Driver                string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL           string `yaml:"database_url" mapstructure:"database_url"`
	Namespace             string `yaml:"namespace" mapstructure:"namespace"`
	CompaniesCollection   string `yaml:"companies_collection" mapstructure:"companies_collection"`
	FlagsCollection       string `yaml:"flags_collection" mapstructure:"flags_collection"`
	SubmissionsCollection string `yaml:"submissions_collection" mapstructure:"submissions_collection"`
	MaxConns              int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// CacheConfig configures the in-process snapshot caches.
type CacheConfig struct {
	CompanyTTLSecs  int `yaml:"company_ttl_secs" mapstructure:"company_ttl_secs"`
	CatalogTTLSecs  int `yaml:"catalog_ttl_secs" mapstructure:"catalog_ttl_secs"`
	FetchTimeoutSec int `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
}

// CompanyTTL returns the company snapshot lifetime.
func (c CacheConfig) CompanyTTL() time.Duration {
	return time.Duration(c.CompanyTTLSecs) * time.Second
}

// CatalogTTL returns the red flag catalog snapshot lifetime.
func (c CacheConfig) CatalogTTL() time.Duration {
	return time.Duration(c.CatalogTTLSecs) * time.Second
}

// FetchTimeout bounds a single collection fetch.
func (c CacheConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// MatchConfig holds company matching thresholds.
type MatchConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	ReuseThreshold float64 `yaml:"reuse_threshold" mapstructure:"reuse_threshold"`
	SearchLimit    int     `yaml:"search_limit" mapstructure:"search_limit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SubmitRPS      float64  `yaml:"submit_rps" mapstructure:"submit_rps"`
	SubmitBurst    int      `yaml:"submit_burst" mapstructure:"submit_burst"`
	DrainTimeout   int      `yaml:"drain_timeout_secs" mapstructure:"drain_timeout_secs"`
}

// ResilienceConfig tunes retries and the store circuit breaker.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// MonitoringConfig configures the background health checker.
type MonitoringConfig struct {
	Enabled               bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL            string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs     int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	CacheFailureThreshold int    `yaml:"cache_failure_threshold" mapstructure:"cache_failure_threshold"`
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
	v.SetEnvPrefix("CHECKUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	// Required store settings default to blank so an unset one leaves
	// persistence offline. The keys are registered for env binding.
	for _, key := range []string{
		"store.driver",
		"store.database_url",
		"store.namespace",
		"store.companies_collection",
		"store.flags_collection",
		"store.submissions_collection",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("cache.company_ttl_secs", 300)
	v.SetDefault("cache.catalog_ttl_secs", 300)
	v.SetDefault("cache.fetch_timeout_secs", 15)
	v.SetDefault("match.fuzzy_threshold", 0.7)
	v.SetDefault("match.reuse_threshold", 0.8)
	v.SetDefault("match.search_limit", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.submit_rps", 1.0)
	v.SetDefault("server.submit_burst", 5)
	v.SetDefault("server.drain_timeout_secs", 10)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 200)
	v.SetDefault("resilience.max_backoff_ms", 5000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.cache_failure_threshold", 3)
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

// MissingStoreKeys returns the env-style names of required store settings
// that are blank. The memory driver needs no database URL.
func (c *Config) MissingStoreKeys() []string {
	required := []struct {
		key   string
		value string
	}{
		{"CHECKUP_STORE_DRIVER", c.Store.Driver},
		{"CHECKUP_STORE_DATABASE_URL", c.Store.DatabaseURL},
		{"CHECKUP_STORE_NAMESPACE", c.Store.Namespace},
		{"CHECKUP_STORE_COMPANIES_COLLECTION", c.Store.CompaniesCollection},
		{"CHECKUP_STORE_FLAGS_COLLECTION", c.Store.FlagsCollection},
		{"CHECKUP_STORE_SUBMISSIONS_COLLECTION", c.Store.SubmissionsCollection},
	}

	var missing []string
	for _, r := range required {
		if r.key == "CHECKUP_STORE_DATABASE_URL" && c.Store.Driver == "memory" {
			continue
		}
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	return missing
}

// StoreOffline reports whether persistence must run in offline mode.
func (c *Config) StoreOffline() bool {
	return len(c.MissingStoreKeys()) > 0
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
