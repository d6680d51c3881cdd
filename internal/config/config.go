package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// RequestTimeout bounds every HTTP command at the service boundary.
	RequestTimeout time.Duration

	// OTLPEndpoint is a host:port for OTLP/gRPC trace export; empty disables export.
	OTLPEndpoint string

	// SnowflakeNode must differ between replicas sharing a database.
	SnowflakeNode int64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Log       LogConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Tax       TaxSettings

	SeedFile string
}

type LogConfig struct {
	Level  string
	// Format is json or console.
	Format string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// Enabled reports whether a redis endpoint was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// RateLimitConfig throttles transaction imports per client. It needs redis.
type RateLimitConfig struct {
	Enabled     bool
	ImportRate  float64
	ImportBurst int
}

type TaxSettings struct {
	// ConfigPath points at an optional tax.yml; empty means the default search paths.
	ConfigPath string
	// RateOverride, when non-empty, wins over the file value at startup.
	RateOverride string
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewTaxConfigHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "vatdesk"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		RequestTimeout:    getenvDuration("HTTP_REQUEST_TIMEOUT", 15*time.Second),
		OTLPEndpoint:      strings.TrimSpace(getenv("OTLP_ENDPOINT", "")),
		SnowflakeNode:     int64(getenvInt("SNOWFLAKE_NODE", 1)),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "vatdesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "vatdesk.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			Format: strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
			LockTTL:  getenvDuration("REDIS_LOCK_TTL", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getenvBool("RATE_LIMIT_ENABLED", false),
			ImportRate:  getenvFloat("RATE_LIMIT_IMPORT_RATE", 1),
			ImportBurst: getenvInt("RATE_LIMIT_IMPORT_BURST", 5),
		},
		Tax: TaxSettings{
			ConfigPath:   strings.TrimSpace(getenv("TAX_CONFIG_PATH", "")),
			RateOverride: strings.TrimSpace(getenv("VAT_RATE", "")),
		},
		SeedFile: strings.TrimSpace(getenv("SEED_FILE", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
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
