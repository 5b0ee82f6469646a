package config

import (
	"os"
	"strconv"
)

// ServerConfig is the relay's configuration, read from the environment.
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	GinMode        string
	Redis          RedisConfig
}

// RedisConfig enables the membership mirror when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LoadServer reads the relay configuration from the environment.
// An empty AllowedOrigins accepts every origin.
func LoadServer() *ServerConfig {
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		db = 0
	}

	return &ServerConfig{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		GinMode:        getEnv("GIN_MODE", "release"),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
