/*
Package config loads server settings from the environment.

VARIABLES:
  APP_PORT              HTTP port (default 8080)
  DB_PATH               SQLite database path (default charges.db)
  LOG_LEVEL             logrus level name (default info)
  CORS_ALLOWED_ORIGINS  Comma separated origins
  REDIS_ADDR            Enables the Redis scheme cache when set
  REDIS_PASSWORD, REDIS_DB, REDIS_MAX_RETRIES
  REDIS_DIAL_TIMEOUT, REDIS_TIMEOUT  Seconds
  REDIS_PREFIX          Key prefix (default charges)
  CACHE_TTL             Go duration for cached schemes (default 10m)
  CACHE_WARM_INTERVAL   Go duration between cache warm runs, 0 disables

  cmd/server loads a .env file first when one exists.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type CacheConfig struct {
	TTL          time.Duration
	WarmInterval time.Duration
}

type AppConfig struct {
	Port           int
	DBPath         string
	LogLevel       log.Level
	AllowedOrigins []string
	Redis          RedisConfig
	Cache          CacheConfig
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads the environment. The first malformed value is returned as an error.
func Load() (AppConfig, error) {
	var (
		cfg AppConfig
		err error
	)

	if cfg.Port, err = atoi("APP_PORT", "8080"); err != nil {
		return cfg, err
	}
	cfg.DBPath = getenv("DB_PATH", "charges.db")

	if cfg.LogLevel, err = log.ParseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg.AllowedOrigins = splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080"))

	cfg.Redis = RedisConfig{
		Addr:     getenv("REDIS_ADDR", ""),
		Password: getenv("REDIS_PASSWORD", ""),
		Prefix:   getenv("REDIS_PREFIX", "charges"),
	}
	if cfg.Redis.DB, err = atoi("REDIS_DB", "0"); err != nil {
		return cfg, err
	}
	if cfg.Redis.MaxRetries, err = atoi("REDIS_MAX_RETRIES", "3"); err != nil {
		return cfg, err
	}
	if cfg.Redis.DialTimeout, err = atoi("REDIS_DIAL_TIMEOUT", "5"); err != nil {
		return cfg, err
	}
	if cfg.Redis.Timeout, err = atoi("REDIS_TIMEOUT", "3"); err != nil {
		return cfg, err
	}

	if cfg.Cache.TTL, err = duration("CACHE_TTL", "10m"); err != nil {
		return cfg, err
	}
	if cfg.Cache.WarmInterval, err = duration("CACHE_WARM_INTERVAL", "0"); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks ranges that parse fine but make no sense.
func (c AppConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("APP_PORT out of range: %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is empty")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative: %d", c.Redis.DB)
	}
	if c.Cache.TTL < 0 || c.Cache.WarmInterval < 0 {
		return fmt.Errorf("cache durations must not be negative")
	}
	return nil
}

func atoi(key, def string) (int, error) {
	s := getenv(key, def)
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid int value %q: %w", key, s, err)
	}
	return i, nil
}

func duration(key, def string) (time.Duration, error) {
	s := getenv(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
