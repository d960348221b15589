package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.HTTPAddress)
	assert.Equal(t, "smoothed", cfg.Engine.VelocityMode)
	assert.Equal(t, 7, cfg.Engine.R0Window)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trendpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`server:
  httpAddress: ":9000"
engine:
  velocityMode: simple
cache:
  enabled: true
  backend: redis
  addr: "localhost:6379"
  ttl: 30s
`), 0644))

	clearEnv(t)
	t.Setenv("TRENDPULSE_GRPC_ADDRESS", ":6000")
	t.Setenv("TRENDPULSE_CACHE_TTL", "1m")
	t.Setenv("TRENDPULSE_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddress)
	assert.Equal(t, ":6000", cfg.Server.GRPCAddress)
	assert.Equal(t, "simple", cfg.Engine.VelocityMode)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TRENDPULSE_CONFIG", "PORT", "TRENDPULSE_HTTP_ADDRESS", "TRENDPULSE_VELOCITY_MODE", "TRENDPULSE_CACHE_ENABLED"} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	bad := defaultConfig()
	bad.Engine.VelocityMode = "savgol"
	assert.Error(t, bad.Validate())

	bad = defaultConfig()
	bad.Cache.Enabled = true
	bad.Cache.Backend = CacheBackendRedis
	assert.Error(t, bad.Validate())

	bad = defaultConfig()
	bad.Cache.Enabled = true
	bad.Cache.Backend = "memcached"
	assert.Error(t, bad.Validate())
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recommendations.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(string) error {
			reloads.Add(1)
			return nil
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))

	assert.Eventually(t, func() bool { return reloads.Load() > 0 }, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
