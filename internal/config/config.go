// Package config loads the relay's runtime settings from the environment.
// A .env file, when present, is applied first via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const devOwnerTokenSecret = "konferans-dev-secret"

// Config holds everything cmd/main.go and cmd/admin need to wire the relay.
type Config struct {
	HTTPAddr string

	// AllowedOrigins limits WebSocket upgrades to these Origin values. Empty allows any origin.
	AllowedOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
	RoomKeyPrefix string

	// DatabaseDSN enables the Postgres session history when non-empty.
	DatabaseDSN string

	OwnerTokenSecret []byte

	LogLevel  zerolog.Level
	LogPretty bool
}

// LoadDotEnv applies a .env file if one exists. The returned error is informational.
func LoadDotEnv(files ...string) error {
	return godotenv.Load(files...)
}

// Load reads the configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RoomKeyPrefix: getEnv("ROOM_KEY_PREFIX", "room:"),
		DatabaseDSN:   os.Getenv("DATABASE_DSN"),
	}

	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.RedisPoolSize, err = getEnvInt("REDIS_POOL_SIZE", 10); err != nil {
		return Config{}, err
	}

	secret := os.Getenv("OWNER_TOKEN_SECRET")
	if secret == "" {
		secret = devOwnerTokenSecret
	}
	cfg.OwnerTokenSecret = []byte(secret)

	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info")))
	if err != nil {
		return Config{}, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	if raw := os.Getenv("LOG_PRETTY"); raw != "" {
		pretty, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: LOG_PRETTY: %w", err)
		}
		cfg.LogPretty = pretty
	}

	return cfg, nil
}

// UsesDevSecret reports whether the owner token secret fell back to the built-in value.
func (c Config) UsesDevSecret() bool {
	return string(c.OwnerTokenSecret) == devOwnerTokenSecret
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return v, nil
}
