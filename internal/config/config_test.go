package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/clinic")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/clinic")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "America/Los_Angeles", cfg.ClinicTimezone)
	assert.Equal(t, 9, cfg.OpenHour)
	assert.Equal(t, 20, cfg.CloseHour)
	assert.Equal(t, 15*time.Minute, cfg.SlotDuration)
	assert.Equal(t, 90*24*time.Hour, cfg.EarliestHorizon)
	assert.Equal(t, 20, cfg.ChatContextWindow)
	assert.Equal(t, "stub", cfg.EmailProvider)
}

func TestLoadRejectsInvertedBusinessHours(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/clinic")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CLINIC_OPEN_HOUR", "20")
	t.Setenv("CLINIC_CLOSE_HOUR", "9")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesRedisURL(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/clinic")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_URL", "redis://user:pw@redis.internal:6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	assert.Equal(t, "user", cfg.RedisUsername)
	assert.Equal(t, "pw", cfg.RedisPassword)
}

func TestGetDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("LOCK_TTL", "30")
	assert.Equal(t, 30*time.Second, getDuration("LOCK_TTL", time.Second))

	t.Setenv("LOCK_TTL", "2m")
	assert.Equal(t, 2*time.Minute, getDuration("LOCK_TTL", time.Second))

	t.Setenv("LOCK_TTL", "junk")
	assert.Equal(t, time.Second, getDuration("LOCK_TTL", time.Second))
}
