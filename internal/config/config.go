package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(LoadPricingCatalog),
	fx.Invoke(func(cfg Config) error { return cfg.Validate() }),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	// TrustedProxies lists the proxy addresses or CIDRs whose
	// X-Forwarded-For is believed when deciding a client's IP.
	TrustedProxies []string

	DBType            string
	DBPath            string
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
	DBMetricsEnabled  bool

	AdminToken string

	Telegram TelegramConfig
	Notify   NotifyConfig
	Redis    RedisConfig
	Limit    RateLimitConfig

	PricingFile string
	Telemetry   TelemetryConfig
}

// TelemetryConfig carries logging and OpenTelemetry settings.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	LogOutput     string
	OtelEnabled   bool
	OTLPEndpoint  string
	OTLPProtocol  string
	SamplingRatio float64
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	APIURL   string
	Timeout  time.Duration
}

// Configured reports whether both bot credentials are present.
func (t TelegramConfig) Configured() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type NotifyConfig struct {
	Timezone  string
	QueueSize int
	Workers   int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "repairdesk"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       strings.ToLower(getenv("ENVIRONMENT", "development")),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		NodeID:            getenvInt64("NODE_ID", 1),
		TrustedProxies:    getenvList("TRUSTED_PROXIES"),
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBPath:            getenv("DATABASE_PATH", "instance/requests.db"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "repairdesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBMetricsEnabled:  getenvBool("DATABASE_METRICS_ENABLED", true),
		AdminToken:        strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),
		Telegram: TelegramConfig{
			BotToken: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
			ChatID:   strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")),
			APIURL:   strings.TrimRight(getenv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
			Timeout:  getenvDuration("TELEGRAM_TIMEOUT", 10*time.Second),
		},
		Notify: NotifyConfig{
			Timezone:  getenv("NOTIFY_TIMEZONE", "Europe/Moscow"),
			QueueSize: getenvInt("NOTIFY_QUEUE_SIZE", 100),
			Workers:   getenvInt("NOTIFY_WORKERS", 2),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Limit: RateLimitConfig{
			PerMinute: getenvInt("RATE_LIMIT_PER_MINUTE", 10),
			Burst:     getenvInt("RATE_LIMIT_BURST", 5),
		},
		PricingFile: strings.TrimSpace(os.Getenv("PRICING_FILE")),
		Telemetry: TelemetryConfig{
			LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat: strings.ToLower(getenv("LOG_FORMAT", "json")),
			LogOutput: strings.TrimSpace(os.Getenv("LOG_OUTPUT")),
			// A single-instance intake site usually runs without a collector.
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OTLPEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OTLPProtocol:  strings.ToLower(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
	}

	return cfg
}

const EnvProduction = "production"

var (
	ErrMissingTelegramToken  = errors.New("TELEGRAM_BOT_TOKEN is required in production")
	ErrMissingTelegramChatID = errors.New("TELEGRAM_CHAT_ID is required in production")
	ErrMissingAdminToken     = errors.New("ADMIN_TOKEN is required in production")
)

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate rejects configurations that must not reach production. Missing
// notifier credentials outside production select the no-op notifier instead.
func (c Config) Validate() error {
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be between 0 and 1023, got %d", c.NodeID)
	}
	if !c.IsProduction() {
		return nil
	}

	var errs []error
	if c.Telegram.BotToken == "" {
		errs = append(errs, ErrMissingTelegramToken)
	}
	if c.Telegram.ChatID == "" {
		errs = append(errs, ErrMissingTelegramChatID)
	}
	if c.AdminToken == "" {
		errs = append(errs, ErrMissingAdminToken)
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvList splits a comma-separated value, dropping empty items.
func getenvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
