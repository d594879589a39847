package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP           HTTPConfig
	DatabaseURL    string
	MigrateOnStart bool
	Auth           AuthConfig
	AuditLogFile   string
	LogLevel       string
	ServiceName    string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	SessionSecret     string
	SessionTTL        time.Duration
	SessionIssuer     string
	SessionPurgeEvery time.Duration
	CookieName        string
	CookieSecure      bool
	BcryptCost        int
	BootstrapName     string
	BootstrapUsername string
	BootstrapEmail    string
	BootstrapPassword string
}

var defaults = map[string]any{
	"HTTP_ADDR":                       ":8080",
	"HTTP_READ_TIMEOUT_SEC":           10,
	"HTTP_WRITE_TIMEOUT_SEC":          15,
	"HTTP_SHUTDOWN_TIMEOUT_SEC":       20,
	"DATABASE_URL":                    "",
	"DB_MIGRATE_ON_START":             true,
	"AUTH_SESSION_SECRET":             "change-me-in-production-0123456789abcdef",
	"AUTH_SESSION_TTL_SEC":            7 * 24 * 3600,
	"AUTH_SESSION_ISSUER":             "useradmin",
	"AUTH_SESSION_PURGE_INTERVAL_SEC": 300,
	"AUTH_COOKIE_NAME":                "useradmin_session",
	"AUTH_COOKIE_SECURE":              true,
	"AUTH_BCRYPT_COST":                10,
	"AUTH_BOOTSTRAP_NAME":             "System Admin",
	"AUTH_BOOTSTRAP_USERNAME":         "admin",
	"AUTH_BOOTSTRAP_EMAIL":            "admin@safed.id",
	"AUTH_BOOTSTRAP_PASSWORD":         "Admin123",
	"AUDIT_LOG_FILE":                  "./data/audit.log",
	"LOG_LEVEL":                       "info",
	"OTEL_SERVICE_NAME":               "useradmin",
}

// Load reads the environment, and the file named by CONFIG_FILE when set.
// Empty environment values fall back to defaults.
func Load() (Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            strings.TrimSpace(v.GetString("HTTP_ADDR")),
			ReadTimeout:     seconds(v, "HTTP_READ_TIMEOUT_SEC"),
			WriteTimeout:    seconds(v, "HTTP_WRITE_TIMEOUT_SEC"),
			ShutdownTimeout: seconds(v, "HTTP_SHUTDOWN_TIMEOUT_SEC"),
		},
		DatabaseURL:    strings.TrimSpace(v.GetString("DATABASE_URL")),
		MigrateOnStart: v.GetBool("DB_MIGRATE_ON_START"),
		Auth: AuthConfig{
			SessionSecret:     v.GetString("AUTH_SESSION_SECRET"),
			SessionTTL:        seconds(v, "AUTH_SESSION_TTL_SEC"),
			SessionIssuer:     v.GetString("AUTH_SESSION_ISSUER"),
			SessionPurgeEvery: seconds(v, "AUTH_SESSION_PURGE_INTERVAL_SEC"),
			CookieName:        v.GetString("AUTH_COOKIE_NAME"),
			CookieSecure:      v.GetBool("AUTH_COOKIE_SECURE"),
			BcryptCost:        v.GetInt("AUTH_BCRYPT_COST"),
			BootstrapName:     v.GetString("AUTH_BOOTSTRAP_NAME"),
			BootstrapUsername: v.GetString("AUTH_BOOTSTRAP_USERNAME"),
			BootstrapEmail:    v.GetString("AUTH_BOOTSTRAP_EMAIL"),
			BootstrapPassword: v.GetString("AUTH_BOOTSTRAP_PASSWORD"),
		},
		AuditLogFile: v.GetString("AUDIT_LOG_FILE"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// seconds falls back to the default for non-numeric or non-positive values.
func seconds(v *viper.Viper, key string) time.Duration {
	n := v.GetInt(key)
	if n <= 0 {
		n, _ = defaults[key].(int)
	}
	return time.Duration(n) * time.Second
}

func (c Config) validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if len(c.Auth.SessionSecret) < 32 {
		return fmt.Errorf("AUTH_SESSION_SECRET must be at least 32 bytes")
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("AUTH_COOKIE_NAME must not be empty")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("AUTH_BCRYPT_COST must be between 4 and 31")
	}
	if c.Auth.BootstrapUsername == "" {
		return fmt.Errorf("AUTH_BOOTSTRAP_USERNAME must not be empty")
	}
	if c.Auth.BootstrapPassword == "" {
		return fmt.Errorf("AUTH_BOOTSTRAP_PASSWORD must not be empty")
	}
	return nil
}
