// Package config loads application configuration with Viper from:
//   - YAML files
//   - Environment variables
//   - Defaults
//
// Priority, highest to lowest: environment variables, config file,
// defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// loadDotEnv populates the process environment from a .env file in the
// working directory, if one exists, before Viper reads the environment.
// Missing files are not an error — .env is a local-development
// convenience, not a deployment requirement.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}
}

// ============================================
// Main Configuration
// ============================================

// Config is the top-level application configuration.
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Core   CoreConfig   `mapstructure:"core"`
	DB     DBConfig     `mapstructure:"db"`
	Broker BrokerConfig `mapstructure:"broker"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Trace  TraceConfig  `mapstructure:"trace"`
	Log    LogConfig    `mapstructure:"log"`
}

// ============================================
// App Configuration
// ============================================

// AppConfig identifies this deployment.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	BuildTime   string `mapstructure:"build_time"`
	GitCommit   string `mapstructure:"git_commit"`
}

// IsDevelopment reports whether the environment is development.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the environment is production.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ============================================
// Server Configuration (ops-only HTTP surface)
// ============================================

// ServerConfig configures the ops HTTP server exposing /healthz,
// /readyz, /metrics, and the saga debug endpoint.
type ServerConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server's listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ============================================
// Core Configuration (outbox, dispatcher, saga knobs)
// ============================================

// CoreConfig holds the tunables enumerated by the event-distribution
// and saga-orchestration core.
type CoreConfig struct {
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	BatchSize             int           `mapstructure:"batch_size" validate:"min=1"`
	PublishTimeout        time.Duration `mapstructure:"publish_timeout"`
	HandlerTimeout        time.Duration `mapstructure:"handler_timeout"`
	RetentionWindow       time.Duration `mapstructure:"retention_window"`
	IdempotencyRetention  time.Duration `mapstructure:"idempotency_retention"`
	MaxTransitionRetries  int           `mapstructure:"max_transition_retries" validate:"min=0"`
	ProducerSource        string        `mapstructure:"producer_source" validate:"required"`
	SweepInterval         time.Duration `mapstructure:"sweep_interval"`
	DispatcherConsumerTag string        `mapstructure:"dispatcher_consumer_tag" validate:"required"`
}

// ============================================
// Database Configuration
// ============================================

// DBConfig configures the Postgres connection pool.
type DBConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database" validate:"required"`
	SSLMode         string        `mapstructure:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	MaxConnections  int32         `mapstructure:"max_connections" validate:"min=1"`
	MinConnections  int32         `mapstructure:"min_connections" validate:"min=0"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN returns the Postgres connection string.
func (c *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// ============================================
// Broker Configuration
// ============================================

// BrokerConfig configures the NATS JetStream connection.
type BrokerConfig struct {
	URL          string `mapstructure:"url" validate:"required"`
	StreamName   string `mapstructure:"stream_name" validate:"required"`
	ConsumerName string `mapstructure:"consumer_name" validate:"required"`
}

// ============================================
// Redis Configuration (publisher leadership lease)
// ============================================

// RedisConfig configures the distributed lock backing the outbox
// publisher's leader lease.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LeaseKey string        `mapstructure:"lease_key"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

// ============================================
// Tracing Configuration
// ============================================

// TraceConfig configures the OpenTelemetry exporter binding behind
// the tracing facade.
type TraceConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
}

// ============================================
// Log Configuration
// ============================================

// LogConfig configures the slog-based structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, stderr
}

// ============================================
// Configuration Loading
// ============================================

// Load reads configuration from a config file and environment
// variables. configPath is the directory to search; configName is the
// file's base name without extension. Supported formats: yaml, json,
// toml.
func Load(configPath, configName string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/eventcore")

	v.SetEnvPrefix("EVENTCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EVENTCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "eventcore")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", true)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("core.poll_interval", "5s")
	v.SetDefault("core.batch_size", 100)
	v.SetDefault("core.publish_timeout", "10s")
	v.SetDefault("core.handler_timeout", "30s")
	v.SetDefault("core.retention_window", "168h")
	v.SetDefault("core.idempotency_retention", "168h")
	v.SetDefault("core.max_transition_retries", 3)
	v.SetDefault("core.producer_source", "/wallet-hub")
	v.SetDefault("core.sweep_interval", "1h")
	v.SetDefault("core.dispatcher_consumer_tag", "saga-dispatcher")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.database", "eventcore")
	v.SetDefault("db.ssl_mode", "disable")
	v.SetDefault("db.max_connections", 25)
	v.SetDefault("db.min_connections", 5)
	v.SetDefault("db.max_conn_lifetime", "1h")
	v.SetDefault("db.max_conn_idle_time", "30m")

	v.SetDefault("broker.url", "nats://localhost:4222")
	v.SetDefault("broker.stream_name", "WALLET_EVENTS")
	v.SetDefault("broker.consumer_name", "saga-dispatcher")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lease_key", "eventcore:outbox-publisher:lease")
	v.SetDefault("redis.lease_ttl", "15s")

	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.service_name", "eventcore")
	v.SetDefault("trace.otlp_endpoint", "localhost:4318")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("db.host", "EVENTCORE_DB_HOST", "DB_HOST")
	_ = v.BindEnv("db.port", "EVENTCORE_DB_PORT", "DB_PORT")
	_ = v.BindEnv("db.user", "EVENTCORE_DB_USER", "DB_USER")
	_ = v.BindEnv("db.password", "EVENTCORE_DB_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("db.database", "EVENTCORE_DB_DATABASE", "DB_NAME")

	_ = v.BindEnv("broker.url", "EVENTCORE_BROKER_URL", "NATS_URL")
	_ = v.BindEnv("redis.addr", "EVENTCORE_REDIS_ADDR", "REDIS_ADDR")

	_ = v.BindEnv("server.port", "EVENTCORE_SERVER_PORT", "PORT")
	_ = v.BindEnv("app.environment", "EVENTCORE_APP_ENVIRONMENT", "ENVIRONMENT", "ENV")
}

// ============================================
// Configuration Validation
// ============================================

// Validate checks invariants across the configuration.
var configValidator = validator.New()

func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.Redis.LeaseTTL <= 0 {
		return fmt.Errorf("redis.lease_ttl must be positive")
	}
	return nil
}

// ============================================
// Presets
// ============================================

// Development returns a configuration suitable for local development.
func Development() *Config {
	return &Config{
		App: AppConfig{Name: "eventcore", Version: "dev", Environment: "development", Debug: true},
		Server: ServerConfig{
			Host: "localhost", Port: 8081,
			ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second, ShutdownTimeout: 30 * time.Second,
		},
		Core: CoreConfig{
			PollInterval: 5 * time.Second, BatchSize: 100,
			PublishTimeout: 10 * time.Second, HandlerTimeout: 30 * time.Second,
			RetentionWindow: 168 * time.Hour, IdempotencyRetention: 168 * time.Hour,
			MaxTransitionRetries: 3, ProducerSource: "/wallet-hub",
			SweepInterval: time.Hour, DispatcherConsumerTag: "saga-dispatcher",
		},
		DB: DBConfig{
			Host: "localhost", Port: 5432, User: "postgres", Password: "postgres",
			Database: "eventcore", SSLMode: "disable",
			MaxConnections: 10, MinConnections: 2,
			MaxConnLifetime: time.Hour, MaxConnIdleTime: 30 * time.Minute,
		},
		Broker: BrokerConfig{URL: "nats://localhost:4222", StreamName: "WALLET_EVENTS", ConsumerName: "saga-dispatcher"},
		Redis: RedisConfig{
			Addr: "localhost:6379", LeaseKey: "eventcore:outbox-publisher:lease", LeaseTTL: 15 * time.Second,
		},
		Trace: TraceConfig{Enabled: false, ServiceName: "eventcore", OTLPEndpoint: "localhost:4318"},
		Log:   LogConfig{Level: "debug", Format: "text", Output: "stdout"},
	}
}

// Test returns a configuration suitable for automated tests.
func Test() *Config {
	cfg := Development()
	cfg.App.Environment = "test"
	cfg.DB.Database = "eventcore_test"
	cfg.Log.Level = "error"
	return cfg
}
