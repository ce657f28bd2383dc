package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 300, cfg.ClusterMaxItems)
	assert.Equal(t, 500, cfg.ImportChunkSize)
	assert.Equal(t, 90*time.Second, cfg.AITimeout)
	assert.Equal(t, DefaultClusterPrompt, cfg.ClusterPrompt)
	assert.Contains(t, cfg.CORSOrigins, "http://localhost:4200")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("PORT: \"9000\"\nCLUSTER_MAX_ITEMS: 50\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "")
	t.Setenv("CLUSTER_MAX_ITEMS", "120")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, ,https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 120, cfg.ClusterMaxItems)
	assert.Equal(t, []string{"http://localhost:4200", "https://app.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
}

func TestValidate(t *testing.T) {
	cfg := Config{Port: "8081", DatabaseURL: "postgres://x", ClusterMaxItems: 1, ImportChunkSize: 1}
	assert.NoError(t, cfg.Validate())

	cfg.ClusterMaxItems = 0
	assert.Error(t, cfg.Validate())
}
