package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_BACKEND", "s3")
	t.Setenv("QUOTA_MAX_ITEMS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Address())
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "s3", cfg.Store.Backend)
	assert.Equal(t, 10, cfg.Quota.MaxItems)
	assert.Equal(t, int64(10485760), cfg.Quota.MaxImageBytes)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 60, cfg.RateLimit.SyncPerWindow)
	assert.Equal(t, "localhost:6379", cfg.Redis.RedisAddress())
}

func TestLoad_MissingSecretFails(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "x") // register restore, then drop it
	require.NoError(t, os.Unsetenv("AUTH_JWT_SECRET"))
	_, err := Load()
	assert.Error(t, err)
}
