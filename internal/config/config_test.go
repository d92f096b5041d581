package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "ORDER_SOURCE", "API_BASE_URL", "SABORE_API_URL", "MAX_UPLOAD_SIZE", "R2_ACCOUNT_ID", "OBJECT_STORE_ENDPOINT", "R2_S3_ENDPOINT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, SourceBackend, cfg.OrderSource)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadSize)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, "R$", cfg.ReportCurrency)
	assert.True(t, cfg.CorsAllowCredentials)
	assert.False(t, cfg.ObjectStoreEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sabore")
	t.Setenv("ORDER_SOURCE", "")
	t.Setenv("SABORE_API_URL", "http://localhost:3000/")
	t.Setenv("REPORT_CACHE_TTL", "90s")
	t.Setenv("API_TIMEOUT", "soon")
	t.Setenv("REFRESH_RESTAURANTS", "1, 2,,all")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")
	t.Setenv("R2_ACCOUNT_ID", "acct")
	t.Setenv("OBJECT_STORE_ENDPOINT", "")
	t.Setenv("R2_S3_ENDPOINT", "")

	cfg := Load()
	assert.Equal(t, SourcePostgres, cfg.OrderSource)
	assert.Equal(t, "http://localhost:3000", cfg.APIBaseURL)
	assert.Equal(t, 90*time.Second, cfg.ReportCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, []string{"1", "2", "all"}, cfg.RefreshRestaurants)
	assert.False(t, cfg.CorsAllowCredentials)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", cfg.ObjectStoreEndpoint)
}
