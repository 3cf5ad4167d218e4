package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setenv sets the minimum environment for a valid username-mode config.
func setenv(t *testing.T, extra map[string]string) {
	t.Helper()
	// Blank values count as unset for viper, so this hides the host's env.
	for _, k := range []string{
		"PORT", "DB_PATH", "STORE", "AUTH_MODE", "APP_NAME", "LOG_LEVEL",
		"SESSION_SECRET", "SESSION_MAX_AGE", "COOKIE_SECURE",
		"CLIENT_ID", "CLIENT_SECRET", "GOOGLE_CALLBACK_URL",
	} {
		t.Setenv(k, "")
	}
	base := map[string]string{
		"AUTH_MODE":      AuthUsername,
		"SESSION_SECRET": "test-secret-at-least-16",
	}
	for k, v := range extra {
		base[k] = v
	}
	for k, v := range base {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setenv(t, nil)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.Store != StoreSQLite {
		t.Errorf("Store = %q, want sqlite", cfg.Store)
	}
	if cfg.AppName != "PixBlog" {
		t.Errorf("AppName = %q, want PixBlog", cfg.AppName)
	}
	if cfg.SessionMaxAge != 168*time.Hour {
		t.Errorf("SessionMaxAge = %s, want 168h", cfg.SessionMaxAge)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.GoogleCallbackURL != "http://localhost:3000/auth/google/callback" {
		t.Errorf("GoogleCallbackURL = %q", cfg.GoogleCallbackURL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setenv(t, map[string]string{
		"PORT":            "8081",
		"STORE":           "MEMORY",
		"LOG_LEVEL":       "debug",
		"SESSION_MAX_AGE": "2h",
		"COOKIE_SECURE":   "true",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8081 || cfg.Store != StoreMemory || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SessionMaxAge != 2*time.Hour || !cfg.CookieSecure {
		t.Errorf("session settings = %s secure=%v", cfg.SessionMaxAge, cfg.CookieSecure)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	setenv(t, nil)
	os.WriteFile(filepath.Join(dir, "microblog.yaml"), []byte("APP_NAME: FileBlog\nPORT: 4000\n"), 0o644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AppName != "FileBlog" || cfg.Port != 4000 {
		t.Errorf("AppName=%q Port=%d, want FileBlog/4000", cfg.AppName, cfg.Port)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{"short secret", map[string]string{"SESSION_SECRET": "short"}, "SESSION_SECRET"},
		{"google without credentials", map[string]string{"AUTH_MODE": AuthGoogle}, "CLIENT_ID"},
		{"unknown store", map[string]string{"STORE": "redis"}, "STORE"},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			setenv(t, tt.env)

			_, err := Load()
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %s", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	os.WriteFile(path, []byte("MICROBLOG_TEST_VALUE=from-dotenv\n"), 0o644)
	t.Setenv("MICROBLOG_TEST_VALUE", "")
	os.Unsetenv("MICROBLOG_TEST_VALUE")

	got, err := LoadDotenv(filepath.Join(dir, "missing.env"), path)
	if err != nil {
		t.Fatalf("LoadDotenv() error = %v", err)
	}
	if got != path {
		t.Errorf("LoadDotenv() = %q, want %q", got, path)
	}
	if v := os.Getenv("MICROBLOG_TEST_VALUE"); v != "from-dotenv" {
		t.Errorf("MICROBLOG_TEST_VALUE = %q", v)
	}
}

func TestLoadDotenv_NoneFound(t *testing.T) {
	got, err := LoadDotenv(filepath.Join(t.TempDir(), ".env"))
	if err != nil || got != "" {
		t.Errorf("LoadDotenv() = %q, %v, want \"\", nil", got, err)
	}
}
