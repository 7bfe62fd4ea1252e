package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	CommerceBaseURL       string
	CommerceAPISecret     string
	CommerceTokenIssuer   string
	CommerceTokenAudience string
	CommerceTimeout       time.Duration
	CommerceMaxAttempts   int
	BreakerMinRequests    int
	BreakerFailureRatio   float64
	BreakerOpenFor        time.Duration

	SessionCookieName string
	SessionTTL        time.Duration
	CookieSecure      bool

	SecurityHeaders bool
	HSTSEnabled     bool
	CSRFEnabled     bool
	MaxBodyBytes    int64

	MetroZoneKeyword       string
	ShippingInsideCharge   int64
	ShippingOutsideCharge  int64
	ShippingFreeMinAmount  int64
	CurrencySymbol         string
	ShippingConfigCacheTTL time.Duration
	ProductCacheTTL        time.Duration

	CouponRateLimit string
	CheckoutLockTTL time.Duration
	CartLockTTL     time.Duration

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	HTTPBucketsMS    string
	EnableTracing    bool
	TracingExporter  string
	OTLPEndpoint     string
	TracingRatio     float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CommerceBaseURL:       strings.TrimSpace(k.String("COMMERCE_BASE_URL")),
		CommerceAPISecret:     k.String("COMMERCE_API_SECRET"),
		CommerceTokenIssuer:   valueOrDefault(k.String("COMMERCE_TOKEN_ISSUER"), "toko-storefront"),
		CommerceTokenAudience: valueOrDefault(k.String("COMMERCE_TOKEN_AUDIENCE"), "commerce-api"),
		CommerceTimeout:       parseDuration(k.String("COMMERCE_TIMEOUT"), "5s"),
		CommerceMaxAttempts:   parseInt(k.String("COMMERCE_MAX_ATTEMPTS"), 3),
		BreakerMinRequests:    parseInt(k.String("COMMERCE_BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio:   parseFloat(k.String("COMMERCE_BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:        parseDuration(k.String("COMMERCE_BREAKER_OPEN_FOR"), "30s"),

		SessionCookieName: valueOrDefault(k.String("SESSION_COOKIE_NAME"), "toko_sid"),
		SessionTTL:        parseDuration(k.String("SESSION_TTL"), "720h"),
		CookieSecure:      parseBool(k.String("COOKIE_SECURE")),

		SecurityHeaders: parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
		HSTSEnabled:     parseBool(k.String("SECURITY_HSTS_ENABLED")),
		CSRFEnabled:     parseBoolDefault(k.String("CSRF_ENABLED"), true),
		MaxBodyBytes:    parseInt64(k.String("MAX_BODY_BYTES"), 64<<10),

		MetroZoneKeyword:       valueOrDefault(k.String("METRO_ZONE_KEYWORD"), "Dhaka"),
		ShippingInsideCharge:   parseInt64(k.String("SHIPPING_INSIDE_CHARGE"), 60),
		ShippingOutsideCharge:  parseInt64(k.String("SHIPPING_OUTSIDE_CHARGE"), 120),
		ShippingFreeMinAmount:  parseInt64(k.String("SHIPPING_FREE_MIN_AMOUNT"), 0),
		CurrencySymbol:         valueOrDefault(k.String("CURRENCY_SYMBOL"), "৳"),
		ShippingConfigCacheTTL: parseDuration(k.String("SHIPPING_CONFIG_CACHE_TTL"), "5m"),
		ProductCacheTTL:        parseDuration(k.String("PRODUCT_CACHE_TTL"), "1m"),

		CouponRateLimit: valueOrDefault(k.String("COUPON_RATE_LIMIT"), "10-M"),
		CheckoutLockTTL: parseDuration(k.String("CHECKOUT_LOCK_TTL"), "60s"),
		CartLockTTL:     parseDuration(k.String("CART_LOCK_TTL"), "5s"),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
		HTTPBucketsMS:    k.String("OBS_HTTP_BUCKETS_MS"),
		EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING")),
		TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingRatio:     parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.CommerceBaseURL == "" {
		return nil, errors.New("COMMERCE_BASE_URL is required")
	}
	if cfg.IsProduction() && cfg.CommerceAPISecret == "" {
		return nil, errors.New("COMMERCE_API_SECRET is required in production")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return parseBool(value)
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func parseInt64(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
