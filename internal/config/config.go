package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env                string
	LogLevel           string
	HTTPAddr           string
	DatabaseURL        string
	JWTSecret          string
	DeviceTokenSecret  string
	RabbitMQURL        string
	RabbitMQWorkerMode string
	CorsAllowedOrigins []string
	RedisURL           string

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string

	SettingsDriver   string
	SQLitePath       string
	SettingsCacheTTL time.Duration
	DefaultTimezone  string

	GeofenceDefaultRadius   float64
	GeofenceRecheckInterval time.Duration
	LocationTimeout         time.Duration
	LocationWatchMaxAge     time.Duration
	OrderPollInterval       time.Duration
	WSHeartbeatInterval     time.Duration
}

func Load() Config {
	cfg := Config{
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", ""),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8087"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		DeviceTokenSecret:  getEnv("DEVICE_TOKEN_SECRET", ""),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQWorkerMode: getEnv("RABBITMQ_WORKER_MODE", "daemon"),
		CorsAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RedisURL:           getEnv("REDIS_URL", ""),

		MQTTBrokerURL:   getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "genfity-floor"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "genfity/devices"),

		SettingsDriver:   strings.ToLower(getEnv("SETTINGS_DRIVER", "")),
		SQLitePath:       getEnv("SQLITE_PATH", "genfity-floor.db"),
		SettingsCacheTTL: getEnvDuration("SETTINGS_CACHE_TTL", 60*time.Second),
		DefaultTimezone:  getEnv("DEFAULT_TIMEZONE", "Australia/Sydney"),

		GeofenceDefaultRadius:   getEnvFloat64("GEOFENCE_DEFAULT_RADIUS", 50),
		GeofenceRecheckInterval: getEnvDuration("GEOFENCE_RECHECK_INTERVAL", 30*time.Second),
		LocationTimeout:         getEnvDuration("LOCATION_TIMEOUT", 10*time.Second),
		LocationWatchMaxAge:     getEnvDuration("LOCATION_WATCH_MAX_AGE", 60*time.Second),
		OrderPollInterval:       getEnvDuration("ORDER_POLL_INTERVAL", 5*time.Second),
		WSHeartbeatInterval:     getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second),
	}

	if cfg.SettingsDriver == "" {
		cfg.SettingsDriver = "memory"
		if cfg.DatabaseURL != "" {
			cfg.SettingsDriver = "postgres"
		}
	}
	if cfg.GeofenceDefaultRadius <= 0 {
		cfg.GeofenceDefaultRadius = 50
	}

	return cfg
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvFloat64(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
