package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvRequiresJWTSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_ADMIN_JWT_SECRET", "")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("AUTH_ADMIN_JWT_SECRET", "")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("API_ALLOWED_ORIGINS", "")
	t.Setenv("SURVEY_CACHE_TTL", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Len(t, cfg.JWTConfigs, 1)
	assert.Equal(t, "wellnest-auth", cfg.JWTConfigs[0].Issuer)
	assert.Equal(t, []byte("secret"), cfg.JWTConfigs[0].Secret)
	assert.Equal(t, "surveys", cfg.Collections.Surveys)
	assert.Equal(t, "content_approvals", cfg.Collections.Approvals)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 1, cfg.Messenger.Attempts)
	assert.Empty(t, cfg.Storage.Bucket)
	assert.NotNil(t, cfg.ServerLog)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "a")
	t.Setenv("AUTH_ADMIN_JWT_SECRET", "b")
	t.Setenv("AUTH_ADMIN_JWT_ISSUER", "console")
	t.Setenv("API_ALLOWED_ORIGINS", " https://a.test, ,https://b.test ")
	t.Setenv("MESSENGER_GATEWAY_URL", "http://gateway:3000/")
	t.Setenv("SURVEY_CACHE_TTL", "90s")
	t.Setenv("WRITE_RATE_LIMIT", "0.5")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("S3_BASE_PATH", "/media/")

	cfg, err := FromEnv()
	require.NoError(t, err)

	require.Len(t, cfg.JWTConfigs, 2)
	assert.Equal(t, "console", cfg.JWTConfigs[1].Issuer)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, "http://gateway:3000", cfg.Messenger.Endpoint)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.InDelta(t, 0.5, cfg.WriteRateLimit, 1e-9)
	assert.Equal(t, 0, cfg.Cache.DB)
	assert.Equal(t, "media", cfg.Storage.BasePath)
}
