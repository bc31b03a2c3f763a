package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

type Config struct {
	Addr              string
	LogLevel          string
	DatabaseURL       string // empty keeps the archive in memory
	GoalsCSVURL       string
	QuantityThreshold int
	TickInterval      time.Duration
	RoomIdleTimeout   time.Duration
	OriginPatterns    []string
}

func Defaults() Config {
	return Config{
		Addr:              ":8080",
		LogLevel:          "info",
		QuantityThreshold: 13,
		TickInterval:      time.Second,
		RoomIdleTimeout:   10 * time.Minute,
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, reporting every bad value at once.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Defaults()
	var errs error

	if v := getenv("ADDR"); v != "" {
		c.Addr = v
	} else if port := getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	c.DatabaseURL = getenv("DATABASE_URL")
	c.GoalsCSVURL = getenv("GOALS_CSV_URL")

	if v := getenv("QUANTITY_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("QUANTITY_THRESHOLD: %w", err))
		case n < 1:
			errs = multierr.Append(errs, fmt.Errorf("QUANTITY_THRESHOLD: must be positive, got %d", n))
		default:
			c.QuantityThreshold = n
		}
	}
	if d, err := duration(getenv, "TICK_INTERVAL"); err != nil {
		errs = multierr.Append(errs, err)
	} else if d > 0 {
		c.TickInterval = d
	}
	if d, err := duration(getenv, "ROOM_IDLE_TIMEOUT"); err != nil {
		errs = multierr.Append(errs, err)
	} else if d > 0 {
		c.RoomIdleTimeout = d
	}
	if v := getenv("WS_ORIGINS"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.OriginPatterns = append(c.OriginPatterns, p)
			}
		}
	}

	if errs != nil {
		return Config{}, errs
	}
	return c, nil
}

// duration parses key as a positive duration; unset yields zero.
func duration(getenv func(string) string, key string) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, d)
	}
	return d, nil
}
