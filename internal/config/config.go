package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// ClinicTimezone is the single fixed IANA timezone of the whole
	// deployment. Every civil-time projection uses it.
	ClinicTimezone string
	// DBSessionTimezone is the timezone the database session is
	// configured with. The persistence layer interprets the naive
	// local-time strings we write in this zone, so it must match
	// ClinicTimezone exactly; Validate refuses to start otherwise.
	DBSessionTimezone string

	CalendarStartHour     int
	CalendarEndHour       int
	CalendarPixelsPerHour int

	MonthCacheTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		Env:                   getEnv("ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisTLS:              getEnvAsBool("REDIS_TLS", false),
		ClinicTimezone:        getEnv("CLINIC_TIMEZONE", "America/Argentina/Buenos_Aires"),
		DBSessionTimezone:     getEnv("DB_SESSION_TIMEZONE", ""),
		CalendarStartHour:     getEnvAsInt("CALENDAR_START_HOUR", 7),
		CalendarEndHour:       getEnvAsInt("CALENDAR_END_HOUR", 21),
		CalendarPixelsPerHour: getEnvAsInt("CALENDAR_PIXELS_PER_HOUR", 60),
		MonthCacheTTL:         getEnvAsDuration("MONTH_CACHE_TTL", 5*time.Minute),
	}
	if cfg.DBSessionTimezone == "" {
		cfg.DBSessionTimezone = cfg.ClinicTimezone
	}
	return cfg
}

// Validate checks the invariants the scheduling core depends on.
func (c *Config) Validate() error {
	if c.ClinicTimezone == "" {
		return fmt.Errorf("config: CLINIC_TIMEZONE is required")
	}
	if c.DBSessionTimezone != c.ClinicTimezone {
		return fmt.Errorf("config: DB_SESSION_TIMEZONE %q must match CLINIC_TIMEZONE %q; naive timestamps would be reinterpreted",
			c.DBSessionTimezone, c.ClinicTimezone)
	}
	if c.CalendarStartHour < 0 || c.CalendarEndHour > 24 || c.CalendarStartHour >= c.CalendarEndHour {
		return fmt.Errorf("config: invalid calendar hour window [%d, %d)", c.CalendarStartHour, c.CalendarEndHour)
	}
	if c.CalendarPixelsPerHour <= 0 {
		return fmt.Errorf("config: CALENDAR_PIXELS_PER_HOUR must be positive")
	}
	return nil
}

// getEnv gets an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a fallback default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean with a fallback default
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration with a fallback default
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
