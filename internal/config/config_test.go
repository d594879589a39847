package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("AUTH_SESSION_SECRET", "")
	t.Setenv("AUTH_BCRYPT_COST", "")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected HTTP addr: %q", cfg.HTTP.Addr)
	}
	if cfg.HTTP.ReadTimeout != 10*time.Second || cfg.HTTP.WriteTimeout != 15*time.Second || cfg.HTTP.ShutdownTimeout != 20*time.Second {
		t.Fatalf("unexpected http timeouts: %+v", cfg.HTTP)
	}
	if !cfg.MigrateOnStart {
		t.Fatalf("expected migrations on start by default")
	}
	if cfg.Auth.SessionTTL != 7*24*time.Hour {
		t.Fatalf("unexpected session ttl: %s", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.CookieName != "useradmin_session" || !cfg.Auth.CookieSecure {
		t.Fatalf("unexpected cookie config: %+v", cfg.Auth)
	}
	if cfg.Auth.BcryptCost != 10 {
		t.Fatalf("unexpected bcrypt cost: %d", cfg.Auth.BcryptCost)
	}
	if cfg.Auth.BootstrapUsername != "admin" || cfg.Auth.BootstrapPassword != "Admin123" || cfg.Auth.BootstrapEmail != "admin@safed.id" {
		t.Fatalf("unexpected bootstrap account: %+v", cfg.Auth)
	}
	if cfg.AuditLogFile != "./data/audit.log" || cfg.LogLevel != "info" || cfg.ServiceName != "useradmin" {
		t.Fatalf("unexpected ambient config: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("HTTP_READ_TIMEOUT_SEC", "3")
	t.Setenv("DATABASE_URL", " postgres://u:p@localhost/useradmin?sslmode=disable ")
	t.Setenv("DB_MIGRATE_ON_START", "false")
	t.Setenv("AUTH_SESSION_SECRET", strings.Repeat("s", 48))
	t.Setenv("AUTH_SESSION_TTL_SEC", "3600")
	t.Setenv("AUTH_COOKIE_SECURE", "false")
	t.Setenv("AUTH_BCRYPT_COST", "4")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.HTTP.ReadTimeout != 3*time.Second {
		t.Fatalf("unexpected http config: %+v", cfg.HTTP)
	}
	if cfg.DatabaseURL != "postgres://u:p@localhost/useradmin?sslmode=disable" {
		t.Fatalf("expected trimmed database url, got %q", cfg.DatabaseURL)
	}
	if cfg.MigrateOnStart {
		t.Fatalf("expected migrations disabled")
	}
	if cfg.Auth.SessionTTL != time.Hour || cfg.Auth.CookieSecure || cfg.Auth.BcryptCost != 4 {
		t.Fatalf("unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.LogLevel)
	}
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT_SEC", "not-a-number")
	t.Setenv("AUTH_SESSION_TTL_SEC", "-5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTP.ReadTimeout != 10*time.Second {
		t.Fatalf("expected fallback read timeout, got %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Auth.SessionTTL != 7*24*time.Hour {
		t.Fatalf("expected fallback session ttl, got %s", cfg.Auth.SessionTTL)
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("AUTH_SESSION_SECRET", "too-short")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "AUTH_SESSION_SECRET") {
		t.Fatalf("expected session secret error, got %v", err)
	}
}

func TestLoadRejectsBcryptCostOutOfRange(t *testing.T) {
	t.Setenv("AUTH_BCRYPT_COST", "40")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "AUTH_BCRYPT_COST") {
		t.Fatalf("expected bcrypt cost error, got %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "useradmin.yaml")
	body := "HTTP_ADDR: \":7070\"\nAUTH_BOOTSTRAP_USERNAME: root\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("AUTH_BOOTSTRAP_USERNAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("expected file addr, got %q", cfg.HTTP.Addr)
	}
	if cfg.Auth.BootstrapUsername != "root" {
		t.Fatalf("expected file bootstrap username, got %q", cfg.Auth.BootstrapUsername)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
