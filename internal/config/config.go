package config

import (
	"errors"
	"fmt"
	"os"
	"time"

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

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	DedupTTL time.Duration `yaml:"dedup_ttl"` // how long seen webhook event ids are remembered
}

type AuthConfig struct {
	HMACSecret string        `yaml:"hmac_secret"`
	TTL        time.Duration `yaml:"ttl"`
}

// FlowConfig holds credentials for the Chilean card-redirect processor.
type FlowConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
	ReturnURL string `yaml:"return_url"`
	// ConfirmURL is where the processor delivers the confirmation webhook.
	ConfirmURL string `yaml:"confirm_url"`
}

type PayPalConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	WebhookID    string `yaml:"webhook_id"`
	BaseURL      string `yaml:"base_url"`
	ReturnURL    string `yaml:"return_url"`
	CancelURL    string `yaml:"cancel_url"`
}

type MercadoPagoConfig struct {
	AccessToken   string `yaml:"access_token"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
	ReturnURL     string `yaml:"return_url"`
	// PlanIDs maps subscription tier -> registered preapproval plan id.
	// Recurring checkout for a tier missing here is a configuration error.
	PlanIDs map[string]string `yaml:"plan_ids"`
}

type NOWPaymentsConfig struct {
	APIKey    string `yaml:"api_key"`
	IPNSecret string `yaml:"ipn_secret"`
	BaseURL   string `yaml:"base_url"`
}

type PaymentConfig struct {
	// CallTimeout bounds every outbound provider call.
	CallTimeout time.Duration     `yaml:"call_timeout"`
	Flow        FlowConfig        `yaml:"flow"`
	PayPal      PayPalConfig      `yaml:"paypal"`
	MercadoPago MercadoPagoConfig `yaml:"mercadopago"`
	NOWPayments NOWPaymentsConfig `yaml:"nowpayments"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Payment    PaymentConfig    `yaml:"payment"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Redis.DedupTTL <= 0 {
		cfg.Redis.DedupTTL = 48 * time.Hour
	}
	if cfg.Auth.TTL <= 0 {
		cfg.Auth.TTL = 30 * time.Minute
	}
	if cfg.Payment.CallTimeout <= 0 {
		cfg.Payment.CallTimeout = 15 * time.Second
	}
	if cfg.Payment.Flow.BaseURL == "" {
		cfg.Payment.Flow.BaseURL = "https://www.flow.cl/api"
	}
	if cfg.Payment.PayPal.BaseURL == "" {
		cfg.Payment.PayPal.BaseURL = "https://api-m.paypal.com"
	}
	if cfg.Payment.MercadoPago.BaseURL == "" {
		cfg.Payment.MercadoPago.BaseURL = "https://api.mercadopago.com"
	}
	if cfg.Payment.NOWPayments.BaseURL == "" {
		cfg.Payment.NOWPayments.BaseURL = "https://api.nowpayments.io/v1"
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 30 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.HMACSecret == "" && !dev {
		return nil, errors.New("auth.hmac_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
