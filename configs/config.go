package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

func loadEnv() {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
}

func Config(key string) string {
	loadEnv()
	return os.Getenv(key)
}

// ConfigDefault returns def when key is unset or empty.
func ConfigDefault(key, def string) string {
	if v := Config(key); v != "" {
		return v
	}
	return def
}

// Duration parses key with time.ParseDuration. A bare integer is read as
// seconds.
func Duration(key string, def time.Duration) time.Duration {
	return DurationUnit(key, def, time.Second)
}

// DurationUnit is Duration with bare integers counted in unit, e.g. days for
// HIDE_DELETED_MESSAGES_AFTER.
func DurationUnit(key string, def, unit time.Duration) time.Duration {
	raw := Config(key)
	if raw == "" {
		return def
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(n) * unit
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid duration for %s=%q, using %s", key, raw, def)
		return def
	}
	return d
}
