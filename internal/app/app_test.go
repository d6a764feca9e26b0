package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eyueldk/edkstack-files/internal/config"
	"github.com/eyueldk/edkstack-files/internal/sqlite"
	"github.com/eyueldk/edkstack-files/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:            "test",
		MetadataDriver:    "sqlite",
		SQLitePath:        filepath.Join(t.TempDir(), "files.db"),
		StorageDriver:     "s3",
		StorageRegion:     "us-east-1",
		StorageAccessKey:  "key",
		StorageSecretKey:  "secret",
		StorageBucket:     "files",
		StoragePublicBase: "https://cdn.example.com",
		KeyPrefix:         "uploads",
		PresignTTL:        10 * time.Minute,
		SweepGracePeriod:  time.Hour,
	}
}

func TestNewWiresSQLiteAndS3(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop(), Options{})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.IsType(t, &sqlite.Store{}, a.Store)
	assert.IsType(t, &storage.S3Storage{}, a.Objects)
	assert.Equal(t, "uploads", a.Files.KeyPrefix())
	assert.ElementsMatch(t, []string{"avatar", "document"}, a.Policies.Purposes())
	assert.NotNil(t, a.Sweeper(true))
	assert.Equal(t, "https://cdn.example.com/uploads/public/a.png", a.Objects.PublicURL("uploads/public/a.png"))
}

func TestNewLoadsPolicyFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PolicyFile = filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(cfg.PolicyFile, []byte("receipt:\n  visibility: private\n"), 0o600))

	a, err := New(context.Background(), cfg, zap.NewNop(), Options{})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Equal(t, []string{"receipt"}, a.Policies.Purposes())
}

func TestNewFailsOnMissingPolicyFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PolicyFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg, zap.NewNop(), Options{})
	require.Error(t, err)
}

func TestS3Endpoint(t *testing.T) {
	cfg := &config.Config{}
	assert.Empty(t, s3Endpoint(cfg))

	cfg.StorageEndpoint = "minio:9000"
	assert.Equal(t, "http://minio:9000", s3Endpoint(cfg))

	cfg.StorageUseSSL = true
	assert.Equal(t, "https://minio:9000", s3Endpoint(cfg))

	cfg.StorageEndpoint = "https://s3.example.com"
	assert.Equal(t, "https://s3.example.com", s3Endpoint(cfg))
}
