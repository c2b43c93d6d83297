// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // redis | postgres | memory (dev only)
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type OrigamiConfig struct {
	Environment string        `yaml:"environment"` // homolog | production
	BaseURL     string        `yaml:"base_url"`    // overrides the environment's URL
	Key         string        `yaml:"key"`
	Token       string        `yaml:"token"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
}

type ConnectorConfig struct {
	AppID           string        `yaml:"app_id"` // vendor.name@version
	Acquirer        string        `yaml:"acquirer"`
	TestSuite       bool          `yaml:"test_suite"`
	AsyncDelay      time.Duration `yaml:"async_delay"`
	EligibilityPath string        `yaml:"eligibility_path"`
	ConfirmPath     string        `yaml:"confirm_path"`
	CallbackTimeout time.Duration `yaml:"callback_timeout"`
	Workers         int           `yaml:"workers"`
}

type IdempotencyConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type EligibilityConfig struct {
	RateLimit  int           `yaml:"rate_limit"` // requests per window per client; 0 disables
	RateWindow time.Duration `yaml:"rate_window"`
}

type SecurityConfig struct {
	ConfirmSecret   string        `yaml:"confirm_secret"` // empty disables confirm tokens
	ConfirmTokenTTL time.Duration `yaml:"confirm_token_ttl"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"` // empty disables tracing
}

type Config struct {
	Log         LogConfig         `yaml:"log"`
	HTTP        HTTPConfig        `yaml:"http"`
	Store       StoreConfig       `yaml:"store"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Origami     OrigamiConfig     `yaml:"origami"`
	Connector   ConnectorConfig   `yaml:"connector"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Security    SecurityConfig    `yaml:"security"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays secrets from the
// environment (and an optional .env file) and applies defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	applyEnv(cfg)

	cfg.Runtime.Dev = dev
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML and applies defaults without touching the environment.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.ReadTimeout = orDefault(cfg.HTTP.ReadTimeout, 15*time.Second)
	cfg.HTTP.WriteTimeout = orDefault(cfg.HTTP.WriteTimeout, 30*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 10*time.Second)

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "redis"
	}
	cfg.Store.Backend = strings.ToLower(cfg.Store.Backend)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}

	if cfg.Origami.Environment == "" {
		cfg.Origami.Environment = "homolog"
	}
	cfg.Origami.Timeout = orDefault(cfg.Origami.Timeout, 8*time.Second)
	if cfg.Origami.Retries < 0 {
		cfg.Origami.Retries = 0
	} else if cfg.Origami.Retries == 0 {
		cfg.Origami.Retries = 2
	}

	if cfg.Connector.AppID == "" {
		cfg.Connector.AppID = "acctglobal.origamipay-connector@0.0.0"
	}
	if cfg.Connector.Acquirer == "" {
		cfg.Connector.Acquirer = "OrigamiPay"
	}
	cfg.Connector.AsyncDelay = orDefault(cfg.Connector.AsyncDelay, 15*time.Second)
	if cfg.Connector.EligibilityPath == "" {
		cfg.Connector.EligibilityPath = "/_v/api/origami-vtex-connector/eligibility"
	}
	if cfg.Connector.ConfirmPath == "" {
		cfg.Connector.ConfirmPath = "/_v/api/origami-vtex-connector/confirm"
	}
	cfg.Connector.CallbackTimeout = orDefault(cfg.Connector.CallbackTimeout, 10*time.Second)
	if cfg.Connector.Workers <= 0 {
		cfg.Connector.Workers = 4
	}

	cfg.Idempotency.TTL = orDefault(cfg.Idempotency.TTL, 24*time.Hour)
	cfg.Idempotency.SweepInterval = orDefault(cfg.Idempotency.SweepInterval, time.Hour)

	if cfg.Eligibility.RateLimit < 0 {
		cfg.Eligibility.RateLimit = 0
	}
	cfg.Eligibility.RateWindow = orDefault(cfg.Eligibility.RateWindow, time.Minute)

	cfg.Security.ConfirmTokenTTL = orDefault(cfg.Security.ConfirmTokenTTL, 24*time.Hour)

	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "payment-authorizations.v1"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "origami-connector"
	}
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Origami.Key, "ORIGAMI_KEY")
	setFromEnv(&cfg.Origami.Token, "ORIGAMI_TOKEN")
	setFromEnv(&cfg.Origami.Environment, "ORIGAMI_ENVIRONMENT")
	setFromEnv(&cfg.Database.URL, "DATABASE_URL")
	setFromEnv(&cfg.Redis.URL, "REDIS_URL")
	setFromEnv(&cfg.Redis.Password, "REDIS_PASSWORD")
	setFromEnv(&cfg.Security.ConfirmSecret, "CONFIRM_SECRET")
	setFromEnv(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.Kafka.Brokers = splitAndTrim(v)
	}
	if v := strings.TrimSpace(os.Getenv("VTEX_APP_ID")); v != "" {
		cfg.Connector.AppID = v
	}
}

// Validate checks what the selected backends need. Provider credentials are
// not checked here; a missing key surfaces as ErrConfiguration on first use.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for store.backend=redis")
		}
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url is required for store.backend=postgres")
		}
	case "memory":
		if !c.Runtime.Dev {
			return errors.New("store.backend=memory is only allowed with -dev")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

// AppName returns "vendor.name" from an app id like "vendor.name@1.2.3".
func (c ConnectorConfig) AppName() string {
	name, _, _ := strings.Cut(c.AppID, "@")
	return strings.TrimSpace(name)
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
