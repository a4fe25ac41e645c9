/*
config.go - Service configuration

PURPOSE:
  Reads settings from the environment (and an optional .env in path) with
  viper. cmd/server flags override the port and SQLite path afterwards.

SEE ALSO:
  - cmd/server/main.go: flag overrides and wiring
*/
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every setting the server reads at startup.
type Config struct {
	ServerPort         string `mapstructure:"SERVER_PORT"`
	DBDriver           string `mapstructure:"DB_DRIVER"`
	SQLitePath         string `mapstructure:"SQLITE_PATH"`
	DatabaseURL        string `mapstructure:"DATABASE_URL"`
	RabbitMQURL        string `mapstructure:"RABBITMQ_URL"`
	EventsExchange     string `mapstructure:"EVENTS_EXCHANGE"`
	ActorHeader        string `mapstructure:"ACTOR_HEADER"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LegacyErrorStatus  bool   `mapstructure:"LEGACY_ERROR_STATUS"`
	AuditSchedule      string `mapstructure:"AUDIT_SCHEDULE"`
	LogLevel           string `mapstructure:"LOG_LEVEL"`
}

// LoadConfig reads configuration from environment variables, falling back to
// a .env file in path when one exists.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_DRIVER", DriverSQLite)
	viper.SetDefault("SQLITE_PATH", "revenue.db")
	viper.SetDefault("EVENTS_EXCHANGE", "beneficiary_events")
	viper.SetDefault("ACTOR_HEADER", "X-User-Id")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")
	viper.SetDefault("LEGACY_ERROR_STATUS", false)
	viper.SetDefault("AUDIT_SCHEDULE", "@every 1h")
	viper.SetDefault("LOG_LEVEL", "info")

	// Bind environment variables explicitly so they appear in Unmarshal
	for _, key := range []string{
		"SERVER_PORT", "DB_DRIVER", "SQLITE_PATH", "DATABASE_URL", "RABBITMQ_URL",
		"EVENTS_EXCHANGE", "ACTOR_HEADER", "CORS_ALLOWED_ORIGINS",
		"LEGACY_ERROR_STATUS", "AUDIT_SCHEDULE", "LOG_LEVEL",
	} {
		_ = viper.BindEnv(key)
	}

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("failed to read config file, using environment values", "error", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unable to decode config: %w", err)
	}

	// PORT is what most container platforms inject.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && os.Getenv("SERVER_PORT") == "" {
		config.ServerPort = port
	}
	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)

	return config, config.Validate()
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when DB_DRIVER=%s", DriverSQLite)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q (want %s or %s)", c.DBDriver, DriverSQLite, DriverPostgres)
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SlogLevel maps LOG_LEVEL to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
