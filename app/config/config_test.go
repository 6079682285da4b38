package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  port: "9090"
cache:
  backend: redis
resolver:
  threshold: 0.75
  weights:
    ward: 0.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 0.75, cfg.Resolver.Threshold)
	assert.Equal(t, 0.5, cfg.Resolver.Weights.Ward)
	assert.Equal(t, 0.3, cfg.Resolver.Weights.Province)
	assert.Equal(t, "admin_units", cfg.Meilisearch.Index)

	pc := cfg.ParserConfig()
	assert.Equal(t, 0.75, pc.Threshold)
	assert.Equal(t, 0.7, pc.Matcher.LevWeight)
	assert.False(t, cfg.NeedsMongo())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RESOLVER_THRESHOLD", "0.85")
	t.Setenv("CACHE_BACKEND", "hybrid")

	cfg, err := Load(writeConfig(t, "app:\n  env: test\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.85, cfg.Resolver.Threshold)
	assert.Equal(t, "hybrid", cfg.Cache.Backend)
	assert.True(t, cfg.NeedsMongo())
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "resolver:\n  threshold: 1.5\ncache:\n  backend: disk\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "resolver.threshold")
	assert.Contains(t, err.Error(), "cache.backend")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
