package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Pricing     PricingConfig
	Payment     PaymentConfig
	Carrier     CarrierConfig
	Idempotency IdempotencyConfig
	Telemetry   TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// PricingConfig holds the pricing constants applied at checkout
type PricingConfig struct {
	TaxRate               float64 // consumption tax rate, e.g. 0.10
	TaxInclusive          bool    // listed prices already contain tax
	DefaultShippingFee    int64   // yen, used for cart previews
	FreeShippingThreshold int64   // yen, 0 disables free shipping
}

// GatewayConfig holds one payment provider's credentials
type GatewayConfig struct {
	Enabled      bool
	MerchantID   string
	APIKey       string
	APISecret    string
	CallbackURL  string
	SandboxMode  bool
	QueryTimeout time.Duration
}

// PaymentConfig holds payment orchestration settings
type PaymentConfig struct {
	Expiry time.Duration // how long an attempt stays open
	GMO    GatewayConfig
	PayPay GatewayConfig
	Komoju GatewayConfig
}

// CarrierConfig holds the shipping carrier credentials and the
// warehouse sender address
type CarrierConfig struct {
	Name          string
	APIKey        string
	WebhookSecret string
	SenderPostal  string
	SenderPref    string
	SenderCity    string
	SenderLine1   string
	SenderName    string
	SenderPhone   string
}

// IdempotencyConfig holds webhook dedupe settings
type IdempotencyConfig struct {
	TTL      time.Duration
	UseRedis bool
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	ServiceName       string
	CollectorEndpoint string
	ExportInterval    time.Duration
	Insecure          bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with KOMONO_ prefix (e.g., KOMONO_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file is fine, defaults and env vars apply
	}

	v.SetEnvPrefix("KOMONO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Pricing: PricingConfig{
			TaxRate:               v.GetFloat64("pricing.tax_rate"),
			TaxInclusive:          v.GetBool("pricing.tax_inclusive"),
			DefaultShippingFee:    v.GetInt64("pricing.default_shipping_fee"),
			FreeShippingThreshold: v.GetInt64("pricing.free_shipping_threshold"),
		},
		Payment: PaymentConfig{
			Expiry: v.GetDuration("payment.expiry"),
			GMO:    loadGateway(v, "payment.gmo"),
			PayPay: loadGateway(v, "payment.paypay"),
			Komoju: loadGateway(v, "payment.komoju"),
		},
		Carrier: CarrierConfig{
			Name:          v.GetString("carrier.name"),
			APIKey:        v.GetString("carrier.api_key"),
			WebhookSecret: v.GetString("carrier.webhook_secret"),
			SenderPostal:  v.GetString("carrier.sender_postal"),
			SenderPref:    v.GetString("carrier.sender_prefecture"),
			SenderCity:    v.GetString("carrier.sender_city"),
			SenderLine1:   v.GetString("carrier.sender_line1"),
			SenderName:    v.GetString("carrier.sender_name"),
			SenderPhone:   v.GetString("carrier.sender_phone"),
		},
		Idempotency: IdempotencyConfig{
			TTL:      v.GetDuration("idempotency.ttl"),
			UseRedis: v.GetBool("idempotency.use_redis"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			ServiceName:       v.GetString("telemetry.service_name"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadGateway(v *viper.Viper, prefix string) GatewayConfig {
	return GatewayConfig{
		Enabled:      v.GetBool(prefix + ".enabled"),
		MerchantID:   v.GetString(prefix + ".merchant_id"),
		APIKey:       v.GetString(prefix + ".api_key"),
		APISecret:    v.GetString(prefix + ".api_secret"),
		CallbackURL:  v.GetString(prefix + ".callback_url"),
		SandboxMode:  v.GetBool(prefix + ".sandbox_mode"),
		QueryTimeout: v.GetDuration(prefix + ".query_timeout"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "komono-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "komono"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Pricing.TaxRate == 0 {
		cfg.Pricing.TaxRate = 0.10
		cfg.Pricing.TaxInclusive = true
	}
	if cfg.Pricing.DefaultShippingFee == 0 {
		cfg.Pricing.DefaultShippingFee = 800
	}
	if cfg.Payment.Expiry == 0 {
		cfg.Payment.Expiry = 30 * time.Minute
	}
	if cfg.Carrier.Name == "" {
		cfg.Carrier.Name = "yamato"
	}
	// sandbox carrier credentials and the warehouse address keep a
	// fresh development checkout working end to end; production still
	// requires real credentials via validate
	if cfg.App.Env != "production" {
		if cfg.Carrier.APIKey == "" {
			cfg.Carrier.APIKey = "sandbox-api-key"
		}
		if cfg.Carrier.WebhookSecret == "" {
			cfg.Carrier.WebhookSecret = "sandbox-webhook-secret"
		}
	}
	if cfg.Carrier.SenderPostal == "" {
		cfg.Carrier.SenderPostal = "110-0005"
		cfg.Carrier.SenderPref = "東京都"
		cfg.Carrier.SenderCity = "台東区"
		cfg.Carrier.SenderLine1 = "上野7-1-1"
		cfg.Carrier.SenderName = "Komono Fulfillment"
		cfg.Carrier.SenderPhone = "03-0000-0000"
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "komono-backend"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate >= 1 {
		return fmt.Errorf("pricing.tax_rate must be in [0, 1), got %f", c.Pricing.TaxRate)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for name, gw := range map[string]GatewayConfig{
			"gmo": c.Payment.GMO, "paypay": c.Payment.PayPay, "komoju": c.Payment.Komoju,
		} {
			if gw.Enabled && gw.APISecret == "" {
				return fmt.Errorf("payment.%s.api_secret is required when the gateway is enabled in production", name)
			}
		}
		if c.Carrier.WebhookSecret == "" {
			return fmt.Errorf("carrier.webhook_secret is required in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisAddr returns the host:port address for the Redis client
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
