package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/smallbiznis/invoray/pkg/db"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool

	// EnforceInvoiceTransitions gates the strict status transition graph.
	// When false any enumerated target status is accepted, which matches
	// the manual-correction workflow operators rely on today.
	EnforceInvoiceTransitions bool

	SessionTTLHours int

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Stripe StripeConfig

	RateLimit RateLimitConfig

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	LogLevel             string
	LogFormat            string
}

// StripeConfig carries the platform-level gateway credentials.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	PortalBaseURL string
}

// RateLimitConfig configures the redis-backed payment-intent limiter.
type RateLimitConfig struct {
	Enabled            bool
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	PaymentIntentRate  float64
	PaymentIntentBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:          getenv("APP_SERVICE", "invoray"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		AuthCookieSecure: authCookieSecure,

		EnforceInvoiceTransitions: getenvBool("INVOICE_ENFORCE_TRANSITIONS", false),

		SessionTTLHours: getenvInt("SESSION_TTL_HOURS", 24*7),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 0),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 0),

		Stripe: StripeConfig{
			APIKey:        strings.TrimSpace(getenv("STRIPE_API_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			PortalBaseURL: strings.TrimSpace(getenv("STRIPE_PORTAL_RETURN_URL", "")),
		},

		RateLimit: RateLimitConfig{
			Enabled:            getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:          strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:      getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:            getenvInt("RATE_LIMIT_REDIS_DB", 0),
			PaymentIntentRate:  getenvFloat("RATE_LIMIT_PAYMENT_INTENT_RATE", 1),
			PaymentIntentBurst: getenvInt("RATE_LIMIT_PAYMENT_INTENT_BURST", 5),
		},

		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		OtelExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_PROTOCOL", "grpc")),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogFormat:            getenv("LOG_FORMAT", "json"),
	}
}

// DBConfig maps Config onto the shared pkg/db config.
func (c Config) DBConfig() db.Config {
	return db.Config{
		Type:            c.DBType,
		Host:            c.DBHost,
		Port:            c.DBPort,
		Name:            c.DBName,
		User:            c.DBUser,
		Password:        c.DBPassword,
		SSLMode:         c.DBSSLMode,
		MaxIdleConn:     c.DBMaxIdleConn,
		MaxOpenConn:     c.DBMaxOpenConn,
		ConnMaxLifetime: c.DBConnMaxLifetime,
		ConnMaxIdleTime: c.DBConnMaxIdleTime,
	}
}

func (c Config) Debug() bool {
	return c.Environment != "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
