package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.MetadataDriver)
	assert.Equal(t, "minio", cfg.StorageDriver)
	assert.Equal(t, "localhost:9000", cfg.StorageEndpoint)
	assert.Equal(t, "files", cfg.KeyPrefix)
	assert.Equal(t, time.Hour, cfg.PresignTTL)
	assert.Equal(t, 24*time.Hour, cfg.SweepGracePeriod)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.AuthEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("METADATA_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/var/lib/files/meta.db")
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("FILES_PRESIGN_TTL", "15m")
	t.Setenv("FILES_URL_CACHE_SIZE", "512")
	t.Setenv("SWEEP_INTERVAL", "1h")
	t.Setenv("JWT_SECRET", "a-long-enough-secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "sqlite", cfg.MetadataDriver)
	assert.Equal(t, "/var/lib/files/meta.db", cfg.SQLitePath)
	assert.Equal(t, "s3", cfg.StorageDriver)
	assert.Empty(t, cfg.StorageEndpoint)
	assert.True(t, cfg.StorageUseSSL)
	assert.Equal(t, 15*time.Minute, cfg.PresignTTL)
	assert.Equal(t, 512, cfg.URLCacheSize)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadReportsParseErrors(t *testing.T) {
	t.Setenv("FILES_PRESIGN_TTL", "soon")
	t.Setenv("FILES_URL_CACHE_SIZE", "many")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FILES_PRESIGN_TTL")
	assert.Contains(t, err.Error(), "FILES_URL_CACHE_SIZE")
}

func TestLoadValidates(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown metadata driver": {"METADATA_DRIVER": "mongo"},
		"unknown storage driver":  {"STORAGE_DRIVER": "ftp"},
		"bad public base":         {"STORAGE_PUBLIC_BASE": "not a url"},
		"short jwt secret":        {"JWT_SECRET": "abc"},
		"non-numeric port":        {"PORT": "http"},
		"negative cache size":     {"FILES_URL_CACHE_SIZE": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}
