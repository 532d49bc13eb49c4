package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"JWT_SECRET":           "secret",
		"STORE_DRIVER":         "",
		"REDIS_URL":            "",
		"DATABASE_URL":         "",
		"BACKUP_MAX_AUTO":      "",
		"ACCESS_TOKEN_TTL":     "",
		"CORS_ALLOWED_ORIGINS": "",
		"PORT":                 "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 12*time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, 20, cfg.BackupMaxAuto)
	require.True(t, cfg.Obs.MetricsEnabled)
	require.False(t, cfg.Obs.TracingEnabled)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	env := baseEnv()
	env["JWT_SECRET"] = ""
	_, err := LoadForTests(env)
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRedisDriverNeedsURL(t *testing.T) {
	env := baseEnv()
	env["STORE_DRIVER"] = "redis"
	_, err := LoadForTests(env)
	require.ErrorContains(t, err, "REDIS_URL")

	env["REDIS_URL"] = "redis://localhost:6379/0"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, StoreRedis, cfg.StoreDriver)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	env := baseEnv()
	env["STORE_DRIVER"] = "sqlite"
	_, err := LoadForTests(env)
	require.Error(t, err)
}

func TestLoadParsesOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ":9000"
	env["BACKUP_MAX_AUTO"] = "3"
	env["ACCESS_TOKEN_TTL"] = "bogus"
	env["CORS_ALLOWED_ORIGINS"] = "http://a.test, ,http://b.test"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddr())
	require.Equal(t, 3, cfg.BackupMaxAuto)
	require.Equal(t, 12*time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
}
