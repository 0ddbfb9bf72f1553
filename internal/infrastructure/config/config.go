package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all storefront configuration
type Config struct {
	App       AppConfig
	API       APIConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Payment   PaymentConfig
	Checkout  CheckoutConfig
	Image     ImageConfig
	Guard     GuardConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// APIConfig describes the remote store API
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Storage backends for the local key/value store
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// StorageConfig selects and configures the local storage backend
type StorageConfig struct {
	Backend   string // memory, file, redis
	Path      string // file backend only
	KeyPrefix string // redis backend only
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// PaymentConfig holds the payment widget settings
type PaymentConfig struct {
	KeyID        string
	Currency     string
	MerchantName string
	Description  string
	ThemeColor   string
	// SandboxSecret enables the built-in sandbox widget which signs
	// callbacks locally. Never set in production.
	SandboxSecret string
}

// Journal drivers
const (
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
	JournalNone     = "none"
)

// CheckoutConfig holds checkout journal settings
type CheckoutConfig struct {
	JournalDriver string // sqlite, postgres, none
	JournalDSN    string
}

// ImageConfig holds product image settings
type ImageConfig struct {
	PlaceholderURL string
}

// GuardConfig holds route guard settings
type GuardConfig struct {
	// PendingTimeout bounds how long a guarded request waits for auth
	// hydration before answering with the pending state
	PendingTimeout time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	ExportLogs        bool // Also ship zap logs to the collector
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STOREFRONT_ prefix (e.g., STOREFRONT_API_BASE_URL)
// 2. storefront.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("storefront")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/storefront")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		API: APIConfig{
			BaseURL:   v.GetString("api.base_url"),
			Timeout:   v.GetDuration("api.timeout"),
			UserAgent: v.GetString("api.user_agent"),
		},
		Storage: StorageConfig{
			Backend:   v.GetString("storage.backend"),
			Path:      v.GetString("storage.path"),
			KeyPrefix: v.GetString("storage.key_prefix"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Payment: PaymentConfig{
			KeyID:         v.GetString("payment.key_id"),
			Currency:      v.GetString("payment.currency"),
			MerchantName:  v.GetString("payment.merchant_name"),
			Description:   v.GetString("payment.description"),
			ThemeColor:    v.GetString("payment.theme_color"),
			SandboxSecret: v.GetString("payment.sandbox_secret"),
		},
		Checkout: CheckoutConfig{
			JournalDriver: v.GetString("checkout.journal_driver"),
			JournalDSN:    v.GetString("checkout.journal_dsn"),
		},
		Image: ImageConfig{
			PlaceholderURL: v.GetString("image.placeholder_url"),
		},
		Guard: GuardConfig{
			PendingTimeout: v.GetDuration("guard.pending_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			ExportLogs:        v.GetBool("telemetry.export_logs"),
		},
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "3000"
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8080"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = "storefront/1.0"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageFile
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./.storefront/localstorage.json"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "storefront:"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "INR"
	}
	if cfg.Payment.MerchantName == "" {
		cfg.Payment.MerchantName = "Ecomm Store"
	}
	if cfg.Payment.Description == "" {
		cfg.Payment.Description = "Order payment"
	}
	if cfg.Payment.ThemeColor == "" {
		cfg.Payment.ThemeColor = "#3399cc"
	}
	if cfg.Checkout.JournalDriver == "" {
		cfg.Checkout.JournalDriver = JournalSQLite
	}
	if cfg.Checkout.JournalDSN == "" && cfg.Checkout.JournalDriver == JournalSQLite {
		cfg.Checkout.JournalDSN = "./.storefront/checkout.db"
	}
	if cfg.Image.PlaceholderURL == "" {
		cfg.Image.PlaceholderURL = "/static/placeholder-image.png"
	}
	if cfg.Guard.PendingTimeout == 0 {
		cfg.Guard.PendingTimeout = 3 * time.Second
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
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB, product images
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "storefront"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}

	switch c.Storage.Backend {
	case StorageMemory, StorageFile, StorageRedis:
	default:
		return fmt.Errorf("storage.backend must be one of memory, file, redis; got %q", c.Storage.Backend)
	}

	switch c.Checkout.JournalDriver {
	case JournalSQLite, JournalNone:
	case JournalPostgres:
		if c.Checkout.JournalDSN == "" {
			return fmt.Errorf("checkout.journal_dsn is required for the postgres journal")
		}
	default:
		return fmt.Errorf("checkout.journal_driver must be one of sqlite, postgres, none; got %q", c.Checkout.JournalDriver)
	}

	if len(c.Payment.Currency) != 3 {
		return fmt.Errorf("payment.currency must be an ISO 4217 code, got %q", c.Payment.Currency)
	}

	if c.App.Env == "production" {
		if c.Payment.KeyID == "" {
			return fmt.Errorf("payment.key_id is required in production")
		}
		if c.Payment.SandboxSecret != "" {
			return fmt.Errorf("payment.sandbox_secret must not be set in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// IsProduction reports whether the app runs in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
