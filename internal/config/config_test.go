package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddress())
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Provider.BaseURL)
	assert.Equal(t, "meta-llama/llama-4-scout-17b-16e-instruct", cfg.Provider.Model)
	assert.Equal(t, 1024, cfg.Provider.MaxTokens)
	assert.Equal(t, time.Duration(0), cfg.Provider.Timeout)
	assert.Nil(t, cfg.Provider.Temperature)
	assert.Equal(t, 75, cfg.Analysis.JPEGQuality)
	assert.Equal(t, "❌ ERROR: API KEY REQUIRED", cfg.Analysis.CredentialRequiredMessage)
	assert.Equal(t, "⚠️ SYSTEM ERROR: ", cfg.Analysis.ErrorPrefix)
	assert.Equal(t, "▲▲ ANALYSIS COMPLETE ▲▲", cfg.Analysis.Banner)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, int64(10*1024*1024), cfg.Analysis.MaxImageBytes)
	assert.Equal(t, cfg.Analysis.MaxImageBytes+MultipartOverhead, cfg.MaxRequestBodySize)
	assert.Equal(t, []string{"http", "https"}, cfg.Fetch.AllowedSchemes)
	assert.Empty(t, cfg.Fetch.AllowedHosts)
	assert.False(t, cfg.Fetch.AllowPrivateNetworks)
	assert.False(t, cfg.Storage.Azure.Configured())
	assert.False(t, cfg.Storage.Minio.Configured())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("NEURAVISION_SERVER_PORT", "9090")
	t.Setenv("NEURAVISION_PROVIDER_MODEL", "llama-3.2-11b-vision-preview")
	t.Setenv("NEURAVISION_PROVIDER_MAX_TOKENS", "512")
	t.Setenv("NEURAVISION_PROVIDER_TIMEOUT", "45s")
	t.Setenv("NEURAVISION_PROVIDER_TEMPERATURE", "0.2")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "llama-3.2-11b-vision-preview", cfg.Provider.Model)
	assert.Equal(t, 512, cfg.Provider.MaxTokens)
	assert.Equal(t, 45*time.Second, cfg.Provider.Timeout)
	require.NotNil(t, cfg.Provider.Temperature)
	assert.InDelta(t, 0.2, *cfg.Provider.Temperature, 1e-9)
}

func TestLoadFromEnv_BodyLimitFollowsImageLimit(t *testing.T) {
	t.Setenv("NEURAVISION_ANALYSIS_MAX_IMAGE_BYTES", "2097152")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(2097152+MultipartOverhead), cfg.MaxRequestBodySize)
}

func TestLoadFromEnv_FetchPolicy(t *testing.T) {
	t.Setenv("NEURAVISION_FETCH_ALLOWED_HOSTS", "cdn.example.com, blob.core.windows.net")
	t.Setenv("NEURAVISION_FETCH_ALLOWED_SCHEMES", "https")
	t.Setenv("NEURAVISION_FETCH_ALLOW_PRIVATE_NETWORKS", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"cdn.example.com", "blob.core.windows.net"}, cfg.Fetch.AllowedHosts)
	assert.Equal(t, []string{"https"}, cfg.Fetch.AllowedSchemes)
	assert.True(t, cfg.Fetch.AllowPrivateNetworks)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "7000"
provider:
  max_tokens: 256
analysis:
  jpeg_quality: 90
  banner: "RESULT"
fetch:
  allowed_hosts:
    - images.example.com
storage:
  minio:
    endpoint: "minio.local:9000"
    bucket: "uploads"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 256, cfg.Provider.MaxTokens)
	assert.Equal(t, 90, cfg.Analysis.JPEGQuality)
	assert.Equal(t, "RESULT", cfg.Analysis.Banner)
	assert.Equal(t, []string{"images.example.com"}, cfg.Fetch.AllowedHosts)
	assert.True(t, cfg.Storage.Minio.Configured())
	assert.Equal(t, "uploads", cfg.Storage.Minio.Bucket)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric port", "NEURAVISION_SERVER_PORT", "http"},
		{"port out of range", "NEURAVISION_SERVER_PORT", "70000"},
		{"zero max tokens", "NEURAVISION_PROVIDER_MAX_TOKENS", "0"},
		{"jpeg quality too high", "NEURAVISION_ANALYSIS_JPEG_QUALITY", "101"},
		{"negative dimension", "NEURAVISION_ANALYSIS_MAX_IMAGE_DIMENSION", "-1"},
		{"empty model", "NEURAVISION_PROVIDER_MODEL", " "},
		{"body limit below image limit", "NEURAVISION_SERVER_MAX_REQUEST_BODY_SIZE", "1024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
