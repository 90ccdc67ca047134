// config/config.go
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Env  string
	Host string
	Port string

	DBDriver      string
	DatabaseURL   string
	DBAutoMigrate bool

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	AllowedOrigins []string
	AdminToken     string

	Redis RedisConfig

	LoginRatePerSec float64
	LoginBurst      int

	BalanceReconcileInterval time.Duration
	LedgerExportInterval     time.Duration
	TokenPruneInterval       time.Duration

	R2 R2Config
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// R2Config is the Cloudflare R2 (S3-compatible) bucket used for ledger exports.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
}

// Enabled reports whether enough is set to build an R2 client.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

// IsDevelopment switches on verbose logging and error traces in responses.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// Load reads .env (if present) and the process environment.
// It returns an error if a required secret is missing or a value cannot be parsed.
func Load() (*Config, error) {
	loadedDotenv := godotenv.Load() == nil

	cfg := &Config{
		Env:            getEnv("APP_ENV", "production"),
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "4000"),
		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		AllowedOrigins: splitAndTrim(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
		},
		AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
	}

	var err error
	if cfg.DBAutoMigrate, err = getBool("DB_AUTO_MIGRATE", true); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.BalanceReconcileInterval, err = getDuration("BALANCE_RECONCILE_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LedgerExportInterval, err = getDuration("LEDGER_EXPORT_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.TokenPruneInterval, err = getDuration("REFRESH_TOKEN_PRUNE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.LoginBurst, err = getInt("LOGIN_BURST", 5); err != nil {
		return nil, err
	}
	rate := getEnv("LOGIN_RATE_PER_SEC", "1")
	if cfg.LoginRatePerSec, err = strconv.ParseFloat(rate, 64); err != nil {
		return nil, fmt.Errorf("invalid LOGIN_RATE_PER_SEC %q: %w", rate, err)
	}

	if cfg.DatabaseURL == "" {
		if cfg.DBDriver != "sqlite" {
			return nil, fmt.Errorf("DATABASE_URL environment variable not set")
		}
		cfg.DatabaseURL = "referrals.db"
	}
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}

	if slices.Contains(cfg.AllowedOrigins, "*") {
		return nil, fmt.Errorf("ALLOWED_ORIGINS cannot contain \"*\": auth cookies need explicit origins")
	}
	if cfg.AdminToken == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("ADMIN_TOKEN must be set outside development")
	}

	if !loadedDotenv && cfg.IsDevelopment() {
		fmt.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

// splitAndTrim turns a comma-separated list into a clean slice.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
