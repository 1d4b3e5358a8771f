// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	AllowedOrigins []string
	Upstream       UpstreamConfig
	Database       DatabaseConfig
	Display        DisplayConfig
	Timeout        TimeoutConfig
}

// UpstreamConfig locates the external identity and message services.
type UpstreamConfig struct {
	AuthURL     string
	MessagesURL string
	Timeout     time.Duration
}

// DatabaseConfig selects the message store.
type DatabaseConfig struct {
	Driver string // sqlite, postgres or sqlserver
	DSN    string
	Schema string
}

// DisplayConfig controls how timestamps are rendered.
type DisplayConfig struct {
	Locale   string
	TimeZone string
}

// TimeoutConfig holds server-side timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Shutdown    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "3000"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		Upstream: UpstreamConfig{
			AuthURL:     getEnv("AUTH_URL", "https://backcvbgtmdesa.azurewebsites.net/api/login/authenticate"),
			MessagesURL: getEnv("MESSAGES_URL", "https://backcvbgtmdesa.azurewebsites.net/api/Mensajes"),
			Timeout:     getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			DSN:    getEnv("DB_DSN", "./data/chat.db"),
			Schema: getEnv("DB_SCHEMA", ""),
		},
		Display: DisplayConfig{
			Locale:   getEnv("DISPLAY_LOCALE", "es-GT"),
			TimeZone: getEnv("DISPLAY_TIMEZONE", "America/Guatemala"),
		},
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			Shutdown:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
	}

	// SQL_* variables describe a SQL Server connection and win over DB_DSN.
	if server := getEnv("SQL_SERVER", ""); server != "" {
		cfg.Database.Driver = "sqlserver"
		cfg.Database.DSN = sqlServerDSN(
			server,
			getEnv("SQL_USER", ""),
			getEnv("SQL_PASSWORD", ""),
			getEnv("SQL_DATABASE", ""),
			getEnvInt("SQL_PORT", 1433),
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if err := validateURL("AUTH_URL", c.Upstream.AuthURL); err != nil {
		return err
	}
	if err := validateURL("MESSAGES_URL", c.Upstream.MessagesURL); err != nil {
		return err
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be > 0")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN cannot be empty")
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pgx", "sqlserver", "mssql":
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", c.Database.Driver)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", key)
	}
	return nil
}

func sqlServerDSN(server, user, password, database string, port int) string {
	q := url.Values{}
	if database != "" {
		q.Set("database", database)
	}
	q.Set("encrypt", "true")
	q.Set("TrustServerCertificate", "true")
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(user, password),
		Host:     fmt.Sprintf("%s:%d", server, port),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
