// Package config loads runtime settings from the environment, an optional
// .env file and an optional microblog.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"

	AuthGoogle   = "google"
	AuthUsername = "username"
)

// Config is everything main needs to build a server.
type Config struct {
	Port     int
	DBPath   string
	Store    string // "sqlite" or "memory"
	AuthMode string // "google" or "username"
	AppName  string
	LogLevel slog.Level

	SessionSecret string
	SessionMaxAge time.Duration
	CookieSecure  bool

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	GoogleAuthURL      string // optional endpoint overrides
	GoogleTokenURL     string
	GoogleUserInfoURL  string
}

// LoadDotenv reads the first of paths that exists into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadDotenv(paths ...string) (string, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return "", fmt.Errorf("config: reading %s: %w", p, err)
		}
		return p, nil
	}
	return "", nil
}

// Load builds a Config from viper. Environment variables win over the
// optional microblog.yaml, which wins over the defaults below.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("PORT", 3000)
	v.SetDefault("DB_PATH", "data/microblog.db")
	v.SetDefault("STORE", StoreSQLite)
	v.SetDefault("AUTH_MODE", AuthGoogle)
	v.SetDefault("APP_NAME", "PixBlog")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_MAX_AGE", "168h")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("CLIENT_ID", "")
	v.SetDefault("CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_CALLBACK_URL", "")
	v.SetDefault("GOOGLE_AUTH_URL", "")
	v.SetDefault("GOOGLE_TOKEN_URL", "")
	v.SetDefault("GOOGLE_USERINFO_URL", "")

	v.SetConfigName("microblog")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: reading microblog.yaml: %w", err)
		}
	}
	v.AutomaticEnv()

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return Config{}, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	cfg := Config{
		Port:               v.GetInt("PORT"),
		DBPath:             v.GetString("DB_PATH"),
		Store:              strings.ToLower(v.GetString("STORE")),
		AuthMode:           strings.ToLower(v.GetString("AUTH_MODE")),
		AppName:            v.GetString("APP_NAME"),
		LogLevel:           level,
		SessionSecret:      v.GetString("SESSION_SECRET"),
		SessionMaxAge:      v.GetDuration("SESSION_MAX_AGE"),
		CookieSecure:       v.GetBool("COOKIE_SECURE"),
		GoogleClientID:     v.GetString("CLIENT_ID"),
		GoogleClientSecret: v.GetString("CLIENT_SECRET"),
		GoogleCallbackURL:  v.GetString("GOOGLE_CALLBACK_URL"),
		GoogleAuthURL:      v.GetString("GOOGLE_AUTH_URL"),
		GoogleTokenURL:     v.GetString("GOOGLE_TOKEN_URL"),
		GoogleUserInfoURL:  v.GetString("GOOGLE_USERINFO_URL"),
	}
	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the combinations Load cannot express as defaults.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StoreSQLite, StoreMemory, c.Store))
	}
	switch c.AuthMode {
	case AuthGoogle:
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
			errs = append(errs, errors.New("CLIENT_ID and CLIENT_SECRET are required when AUTH_MODE=google"))
		}
	case AuthUsername:
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthGoogle, AuthUsername, c.AuthMode))
	}
	if len(c.SessionSecret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 16 characters"))
	}
	if c.SessionMaxAge < time.Minute {
		errs = append(errs, fmt.Errorf("SESSION_MAX_AGE %s is too short", c.SessionMaxAge))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
