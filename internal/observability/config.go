package observability

import (
	"strings"

	"github.com/smallbiznis/vatdesk/internal/config"
)

// Config is the slice of application config the logger and metrics need.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string
}

func LoadConfig(cfg config.Config) Config {
	return Config{
		ServiceName: firstNonEmpty(cfg.AppName, "vatdesk"),
		Environment: strings.ToLower(strings.TrimSpace(cfg.Environment)),
		Version:     strings.TrimSpace(cfg.AppVersion),
		LogLevel:    firstNonEmpty(cfg.Log.Level, "info"),
		LogFormat:   firstNonEmpty(cfg.Log.Format, "json"),
	}
}

// Debug turns on gin debug mode, stack traces and query logging.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch c.Environment {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
