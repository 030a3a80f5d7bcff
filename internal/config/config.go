package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment. VAPID keys
// and the database URL have no defaults: without them the service cannot
// authenticate to push services or reach the record store, so startup fails.
type Config struct {
	Port string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	AdminContact    string // sub claim of the VAPID JWT, without the mailto: prefix

	// TZOffset is the fixed UTC offset applied to meeting wall-clock times.
	// The deployment historically ran with +05:30; changing it changes which
	// instant every meeting is considered to start at.
	TZOffset     time.Duration
	TickInterval time.Duration

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	// A missing .env file is fine, the system environment is used as-is.
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getenvInt("REDIS_DB", 0),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		AdminContact:    getenv("ADMIN_CONTACT", "admin@example.com"),
		TZOffset:        time.Duration(getenvInt("TZ_OFFSET_MINUTES", 330)) * time.Minute,
		TickInterval:    time.Duration(getenvInt("TICK_INTERVAL_SECONDS", 60)) * time.Second,
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
	}

	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, errors.New("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY are required (run with -genkeys to mint a pair)")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.TickInterval <= 0 {
		return nil, errors.New("TICK_INTERVAL_SECONDS must be positive")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
