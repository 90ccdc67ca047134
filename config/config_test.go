package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/referrals")
	t.Setenv("ACCESS_TOKEN_SECRET", "access")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh")
	t.Setenv("ADMIN_TOKEN", "admin")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.True(t, cfg.DBAutoMigrate)
	assert.Equal(t, time.Hour, cfg.TokenPruneInterval)
	assert.False(t, cfg.R2.Enabled())
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/referrals")
	t.Setenv("ACCESS_TOKEN_SECRET", "")
	t.Setenv("REFRESH_TOKEN_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadSqliteDefaultsPath(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_DRIVER", "SQLite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "referrals.db", cfg.DatabaseURL)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_TTL", "fifteen")

	_, err := Load()
	assert.ErrorContains(t, err, "ACCESS_TOKEN_TTL")
}

func TestLoadParsesOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example,, ")
	t.Setenv("LOGIN_RATE_PER_SEC", "2.5")
	t.Setenv("LOGIN_BURST", "9")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.LoginRatePerSec)
	assert.Equal(t, 9, cfg.LoginBurst)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadRejectsWildcardOrigin(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, *")

	_, err := Load()
	assert.ErrorContains(t, err, "ALLOWED_ORIGINS")
}

func TestLoadRequiresAdminTokenOutsideDevelopment(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_TOKEN", "")

	_, err := Load()
	assert.ErrorContains(t, err, "ADMIN_TOKEN")

	t.Setenv("APP_ENV", "development")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AdminToken)
}
