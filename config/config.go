package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Log      LogConfig
	Gateways GatewaysConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type GatewaysConfig struct {
	// HTTPTimeout caps every outbound gateway API call.
	HTTPTimeout time.Duration

	// Settings holds the per-gateway baseline read from the environment,
	// keyed by gateway code. Merchant profiles and per-request overrides
	// layer on top.
	Settings map[string]map[string]string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "gateways-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Gateways: GatewaysConfig{
			HTTPTimeout: getSecondsEnv("GATEWAYS_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			Settings:    gatewaySettingsFromEnv(os.Environ()),
		},
	}, nil
}

// gatewaySettingsFromEnv collects GATEWAY_<CODE>_<KEY> variables into
// per-gateway settings maps; the key part keeps its underscores, lowercased,
// so grouped options such as GATEWAY_AUTHORIZENET_HOSTED_RETURNOPTIONS come
// through as hosted_returnoptions.
func gatewaySettingsFromEnv(environ []string) map[string]map[string]string {
	const prefix = "GATEWAY_"

	settings := map[string]map[string]string{}
	for _, pair := range environ {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" || !strings.HasPrefix(name, prefix) {
			continue
		}

		code, key, ok := strings.Cut(strings.TrimPrefix(name, prefix), "_")
		if !ok || code == "" || key == "" {
			continue
		}

		code = strings.ToLower(code)
		if settings[code] == nil {
			settings[code] = map[string]string{}
		}
		settings[code][strings.ToLower(key)] = value
	}
	return settings
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
