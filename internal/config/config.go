// Package config loads service configuration from an optional YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	PaymentModeStripe  = "stripe"
	PaymentModeSandbox = "sandbox"
)

type Config struct {
	Env         string      `yaml:"env" env:"ENV" env-default:"dev"`
	ServiceName string      `yaml:"service_name" env:"SERVICE_NAME" env-default:"ecomarket"`
	LogLevel    string      `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFile     string      `yaml:"log_file" env:"LOG_FILE"`
	Storage     string      `yaml:"storage" env:"STORAGE" env-default:"memory"`
	HTTP        HTTP        `yaml:"http"`
	Postgres    Postgres    `yaml:"postgres"`
	Redis       Redis       `yaml:"redis"`
	Kafka       Kafka       `yaml:"kafka"`
	Auth        Auth        `yaml:"auth"`
	Payment     Payment     `yaml:"payment"`
	Reservation Reservation `yaml:"reservation"`
	Webhook     Webhook     `yaml:"webhook"`
	OTel        OTel        `yaml:"otel"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type Postgres struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"10m"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"ecomarket.orders"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type Payment struct {
	Mode          string        `yaml:"mode" env:"PAYMENT_MODE" env-default:"stripe"`
	SecretKey     string        `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string        `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	SuccessURL    string        `yaml:"success_url" env:"PAYMENT_SUCCESS_URL" env-default:"http://localhost:3000/checkout/success"`
	CancelURL     string        `yaml:"cancel_url" env:"PAYMENT_CANCEL_URL" env-default:"http://localhost:3000/checkout/cancel"`
	Currency      string        `yaml:"currency" env:"PAYMENT_CURRENCY" env-default:"usd"`
	Timeout       time.Duration `yaml:"timeout" env:"PAYMENT_TIMEOUT" env-default:"10s"`
	APIURL        string        `yaml:"api_url" env:"STRIPE_API_URL"`
}

type Reservation struct {
	TTL           time.Duration `yaml:"ttl" env:"RESERVATION_TTL" env-default:"30m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"RESERVATION_SWEEP_INTERVAL" env-default:"1m"`
}

type Webhook struct {
	MaxAttempts   int           `yaml:"max_attempts" env:"WEBHOOK_MAX_ATTEMPTS" env-default:"8"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"WEBHOOK_RETRY_INTERVAL" env-default:"30s"`
	Retention     time.Duration `yaml:"retention" env:"WEBHOOK_RETENTION" env-default:"720h"`
}

type OTel struct {
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env (when present), then CONFIG_PATH (when set) or the environment alone, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the service cannot start with. Sandbox payments must be chosen
// explicitly; missing Stripe credentials never fall back to it.
func (c *Config) Validate() error {
	var problems []string

	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.URL == "" {
			problems = append(problems, "postgres.url is required when storage is postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage %q", c.Storage))
	}

	switch c.Payment.Mode {
	case PaymentModeStripe:
		if c.Payment.SecretKey == "" {
			problems = append(problems, "payment.secret_key is required in stripe mode")
		}
		if c.Payment.WebhookSecret == "" {
			problems = append(problems, "payment.webhook_secret is required in stripe mode")
		}
	case PaymentModeSandbox:
		if c.Payment.WebhookSecret == "" {
			c.Payment.WebhookSecret = "whsec_sandbox"
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown payment mode %q", c.Payment.Mode))
	}

	if c.Auth.JWTSecret == "" {
		problems = append(problems, "auth.jwt_secret is required")
	}
	if c.Reservation.TTL < 30*time.Minute || c.Reservation.TTL > 24*time.Hour {
		problems = append(problems, "reservation.ttl must be between 30m and 24h")
	}
	if c.Reservation.SweepInterval <= 0 {
		problems = append(problems, "reservation.sweep_interval must be positive")
	}
	if c.Webhook.MaxAttempts < 1 {
		problems = append(problems, "webhook.max_attempts must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
