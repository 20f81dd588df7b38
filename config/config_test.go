package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", ":9090")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("ASSET_ORIGIN_ALLOWLIST", "")
	t.Setenv("RENDERER", "")
	t.Setenv("PREVIEW_SIZE", "")
	t.Setenv("PRODUCTION_SIZE", "")
	t.Setenv("UPLOAD_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://localhost:9090/static", cfg.StorageBaseURL)
	assert.Equal(t, StorageFilesystem, cfg.StorageBackend)
	assert.Equal(t, RendererNative, cfg.Renderer)
	assert.Equal(t, []string{"localhost"}, cfg.AssetOriginAllowed)
	assert.Equal(t, 600, cfg.PreviewSize)
	assert.Equal(t, 3500, cfg.ProductionSize)
	assert.Equal(t, 60*time.Second, cfg.UploadTimeout)
}

func TestLoad_BuildsDSNFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "armario")
	t.Setenv("DB_NAME", "estampados")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("RENDERER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=armario password=secret dbname=estampados sslmode=disable", cfg.DatabaseURL)
}

func TestLoad_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DriveNeedsCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORAGE_BACKEND", "drive")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")

	_, err := Load()
	assert.ErrorContains(t, err, "GOOGLE_APPLICATION_CREDENTIALS")
}

func TestLoad_AllowlistMergesStorageHost(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/static")
	t.Setenv("ASSET_ORIGIN_ALLOWLIST", "images.example.com, CDN.example.com")
	t.Setenv("RENDERER", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"cdn.example.com", "images.example.com"}, cfg.AssetOriginAllowed)
}

func TestLoad_RejectsUnknownRenderer(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("RENDERER", "gpu")

	_, err := Load()
	assert.Error(t, err)
}
