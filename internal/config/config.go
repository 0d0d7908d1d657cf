// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// Instagram and Telegram credentials, payment-provider keys, and the polling
// interval for the comment monitor.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// InstagramConfig holds Graph API and Messaging API credentials.
type InstagramConfig struct {
	AccessToken       string // INSTAGRAM_ACCESS_TOKEN (Graph API user token)
	BusinessAccountID string // INSTAGRAM_BUSINESS_ACCOUNT_ID
	PageAccessToken   string // INSTAGRAM_PAGE_ACCESS_TOKEN (Messaging API)
}

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	BotToken string // TELEGRAM_BOT_TOKEN; empty disables the bot
}

// WebhookConfig gates delivery of Messaging API events.
type WebhookConfig struct {
	VerifyToken string // WEBHOOK_VERIFY_TOKEN for the hub.challenge handshake
}

// AdminConfig protects the settings API.
type AdminConfig struct {
	Password string // ADMIN_PASSWORD
}

// YooKassaConfig holds payment-provider credentials. Payments are disabled
// when ShopID or SecretKey is empty.
type YooKassaConfig struct {
	ShopID      string  // YOOKASSA_SHOP_ID
	SecretKey   string  // YOOKASSA_SECRET_KEY
	Price       float64 // COURSE_PRICE (rubles), default payment amount
	Description string  // COURSE_PAYMENT_DESCRIPTION
	SuccessURL  string  // PAYMENT_SUCCESS_URL override for the return_url
	FallbackURL string  // PAYMENT_URL used when payment creation fails
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath        string        // SQLite path
	PublicURL     string        // public base URL for redirects and logs
	CheckInterval time.Duration // pause between comment-poll cycles
	PostFetchLim  int           // how many recent posts each cycle scans

	// Collaborators
	Instagram InstagramConfig
	Telegram  TelegramConfig
	Webhook   WebhookConfig
	Admin     AdminConfig
	YooKassa  YooKassaConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:        getenv("DB_PATH", "funnel.db"),
		PublicURL:     strings.TrimRight(getenv("PUBLIC_URL", "http://localhost:8080"), "/"),
		CheckInterval: getdur("CHECK_INTERVAL", 30*time.Second),
		PostFetchLim:  getint("POST_FETCH_LIMIT", 50),

		Instagram: InstagramConfig{
			AccessToken:       getenv("INSTAGRAM_ACCESS_TOKEN", ""),
			BusinessAccountID: getenv("INSTAGRAM_BUSINESS_ACCOUNT_ID", ""),
			PageAccessToken:   getenv("INSTAGRAM_PAGE_ACCESS_TOKEN", ""),
		},
		Telegram: TelegramConfig{
			BotToken: getenv("TELEGRAM_BOT_TOKEN", ""),
		},
		Webhook: WebhookConfig{
			VerifyToken: getenv("WEBHOOK_VERIFY_TOKEN", ""),
		},
		Admin: AdminConfig{
			Password: getenv("ADMIN_PASSWORD", "admin"),
		},
		YooKassa: YooKassaConfig{
			ShopID:      getenv("YOOKASSA_SHOP_ID", ""),
			SecretKey:   getenv("YOOKASSA_SECRET_KEY", ""),
			Price:       getfloat("COURSE_PRICE", 0),
			Description: getenv("COURSE_PAYMENT_DESCRIPTION", "Course payment"),
			SuccessURL:  getenv("PAYMENT_SUCCESS_URL", ""),
			FallbackURL: getenv("PAYMENT_URL", "/payment"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-funnel-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.CheckInterval <= 0 {
		return cfg, errors.New("CHECK_INTERVAL must be > 0")
	}
	if cfg.PostFetchLim < 1 {
		return cfg, errors.New("POST_FETCH_LIMIT must be >= 1")
	}
	if cfg.YooKassa.Price < 0 {
		return cfg, errors.New("COURSE_PRICE must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
