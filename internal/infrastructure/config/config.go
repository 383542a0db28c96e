// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	AI         AIConfig         `mapstructure:"ai"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Delivery   DeliveryConfig   `mapstructure:"delivery"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`

	v *viper.Viper
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	// RateLimitPerMinute bounds job-creating requests per user. Zero disables it.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int `mapstructure:"rate_limit_burst"`
	// StreamReloadInterval re-reads streamed jobs so steps committed by
	// other instances reach the client. Zero relies on local events only.
	StreamReloadInterval time.Duration `mapstructure:"stream_reload_interval"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ClusterNodes []string      `mapstructure:"cluster_nodes"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// QueueConfig selects the job trigger queue.
type QueueConfig struct {
	Driver   string `mapstructure:"driver"`
	Key      string `mapstructure:"key"`
	Capacity int    `mapstructure:"capacity"`
}

// ProviderConfig holds the credentials of one completion vendor.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// AIConfig contains AI service configuration
type AIConfig struct {
	OpenAI        ProviderConfig `mapstructure:"openai"`
	Gemini        ProviderConfig `mapstructure:"gemini"`
	Ollama        ProviderConfig `mapstructure:"ollama"`
	RetryAttempts int            `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration  `mapstructure:"retry_delay"`
	Timeout       time.Duration  `mapstructure:"timeout"`
	RatePerMinute int            `mapstructure:"rate_per_minute"`
	Temperature   float64        `mapstructure:"temperature"`
	MaxTokens     int            `mapstructure:"max_tokens"`
}

// CatalogConfig controls the catalog cache.
type CatalogConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	SampleSize int           `mapstructure:"sample_size"`
	CacheSize  int           `mapstructure:"cache_size"`
	// SeedFile is a JSON array of foods imported at startup when no index
	// is stored yet.
	SeedFile string `mapstructure:"seed_file"`
}

// PipelineConfig tunes selection and the job worker.
type PipelineConfig struct {
	MinFoods      int           `mapstructure:"min_foods"`
	Concurrency   int           `mapstructure:"concurrency"`
	Lease         time.Duration `mapstructure:"lease"`
	PollWait      time.Duration `mapstructure:"poll_wait"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	IdleAfter     time.Duration `mapstructure:"idle_after"`
	JitterSeed    int64         `mapstructure:"jitter_seed"`
	// LeverFoodIDs are the preferred caloric lever foods, in order.
	LeverFoodIDs []string `mapstructure:"lever_food_ids"`
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// DeliveryConfig points at the geocoding and ride quote services.
type DeliveryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	GeocoderURL    string  `mapstructure:"geocoder_url"`
	GeocoderKey    string  `mapstructure:"geocoder_key"`
	RideURL        string  `mapstructure:"ride_url"`
	RideKey        string  `mapstructure:"ride_key"`
	StoreLatitude  float64 `mapstructure:"store_latitude"`
	StoreLongitude float64 `mapstructure:"store_longitude"`
	FlatFee        float64 `mapstructure:"flat_fee"`
}

// PaymentConfig points at the charge gateway. An empty BaseURL keeps
// charges in memory.
type PaymentConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics  bool    `mapstructure:"enable_metrics"`
	MetricsPath    string  `mapstructure:"metrics_path"`
	TraceExporter  string  `mapstructure:"trace_exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
	HealthPath     string  `mapstructure:"health_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dietgen")
	}

	v.SetEnvPrefix("DIETGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.v = v
	return &cfg, nil
}

// Watch calls onChange with the reloaded configuration whenever the config
// file changes. Invalid edits are reported through onError and ignored.
func (c *Config) Watch(onChange func(*Config), onError func(error)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(c.v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(next)
	})
	c.v.WatchConfig()
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dietgen")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_minute", 30)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.stream_reload_interval", "5s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "dietgen.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "dietgen")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.key", "dietgen:jobs")
	v.SetDefault("queue.capacity", 1024)

	// Empty defaults register the keys so env overrides reach Unmarshal.
	for _, key := range []string{"ai.openai.api_key", "ai.gemini.api_key", "ai.ollama.api_key", "auth.jwt_secret",
		"delivery.geocoder_key", "delivery.ride_key", "payment.api_key", "database.password", "redis.password"} {
		v.SetDefault(key, "")
	}
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.gemini.model", "gemini-1.5-flash")
	v.SetDefault("ai.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai.ollama.model", "llama3.2:3b")
	v.SetDefault("ai.ollama.base_url", "http://localhost:11434")
	v.SetDefault("ai.retry_attempts", 3)
	v.SetDefault("ai.retry_delay", "2s")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.rate_per_minute", 60)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_tokens", 2048)

	v.SetDefault("catalog.ttl", "10m")
	v.SetDefault("catalog.sample_size", 60)
	v.SetDefault("catalog.cache_size", 64)
	v.SetDefault("catalog.seed_file", "")

	v.SetDefault("pipeline.min_foods", 15)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.lease", "5m")
	v.SetDefault("pipeline.poll_wait", "2s")
	v.SetDefault("pipeline.sweep_interval", "1m")
	v.SetDefault("pipeline.idle_after", "1m")
	v.SetDefault("pipeline.jitter_seed", 0)

	v.SetDefault("auth.issuer", "dietgen")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("delivery.enabled", false)
	v.SetDefault("delivery.geocoder_url", "")
	v.SetDefault("delivery.ride_url", "")
	v.SetDefault("delivery.store_latitude", -23.5505)
	v.SetDefault("delivery.store_longitude", -46.6333)
	v.SetDefault("delivery.flat_fee", 9.9)

	v.SetDefault("payment.enabled", false)
	v.SetDefault("payment.base_url", "")
	v.SetDefault("payment.timeout", "15s")

	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.trace_exporter", "none")
	v.SetDefault("monitoring.sampling_rate", 0.1)
	v.SetDefault("monitoring.health_path", "/health")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	switch c.Queue.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("queue.driver %q is not supported", c.Queue.Driver)
	}

	if c.AI.RetryAttempts < 1 {
		return fmt.Errorf("ai.retry_attempts must be at least 1")
	}

	if c.Pipeline.MinFoods < 1 {
		return fmt.Errorf("pipeline.min_foods must be at least 1")
	}

	switch c.Monitoring.TraceExporter {
	case "none", "otlp", "jaeger":
	default:
		return fmt.Errorf("monitoring.trace_exporter %q is not supported", c.Monitoring.TraceExporter)
	}

	if c.Auth.JWTSecret == "" && c.IsProduction() {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// GetDSN returns the postgres connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.Username,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}
