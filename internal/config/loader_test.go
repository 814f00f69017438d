package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfigFile(t *testing.T, settings map[string]any) string {
	t.Helper()

	payload, err := yaml.Marshal(settings)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, payload, 0o644))
	return path
}

func newViperWithFile(t *testing.T, settings map[string]any) *viper.Viper {
	t.Helper()

	v := viper.New()
	v.SetConfigFile(writeConfigFile(t, settings))
	require.NoError(t, v.ReadInConfig())
	return v
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()

	cfg, err := Load(v)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// With nothing set, only the store path is filled in.
	require.Equal(t, DefaultStorePath(), cfg.Store.Path)
}

func TestLoadFullConfig(t *testing.T) {
	v := newViperWithFile(t, map[string]any{
		"server": map[string]any{
			"host":             "0.0.0.0",
			"port":             9999,
			"read_timeout":     "15s",
			"shutdown_timeout": "5s",
		},
		"store": map[string]any{
			"driver": "libsql",
			"path":   "/tmp/posts.db",
		},
		"redis": map[string]any{
			"addr":         "redis.internal:6379",
			"db":           2,
			"dial_timeout": "3s",
		},
		"rate_limit": map[string]any{
			"enabled":   true,
			"driver":    "redis",
			"timeout":   "250ms",
			"fail_open": true,
			"routes": map[string]any{
				"GET /posts": map[string]any{
					"requests": 100,
					"window":   "30s",
				},
			},
		},
		"logging": map[string]any{"level": "debug"},
		"metrics": map[string]any{"enabled": false, "port": 9191},
	})

	cfg, err := Load(v)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "libsql", cfg.Store.Driver)
	require.Equal(t, "/tmp/posts.db", cfg.Store.Path)

	require.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	require.Equal(t, 2, cfg.Redis.DB)
	require.Equal(t, 3*time.Second, cfg.Redis.DialTimeout)

	require.True(t, cfg.RateLimit.Enabled)
	require.Equal(t, "redis", cfg.RateLimit.Driver)
	require.Equal(t, 250*time.Millisecond, cfg.RateLimit.Timeout)
	require.True(t, cfg.RateLimit.FailOpen)

	require.Equal(t, "debug", cfg.Logging.Level)
	require.False(t, cfg.Metrics.Enabled)
	require.Equal(t, 9191, cfg.Metrics.Port)
}

// routeFor looks up a route policy tolerating viper's key lower-casing.
func routeFor(t *testing.T, routes map[string]PolicyConfig, key string) PolicyConfig {
	t.Helper()

	for k, v := range routes {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	t.Fatalf("route %q not found in %v", key, routes)
	return PolicyConfig{}
}

func TestLoadRoutePolicies(t *testing.T) {
	v := newViperWithFile(t, map[string]any{
		"rate_limit": map[string]any{
			"routes": map[string]any{
				"GET /posts":  map[string]any{"requests": 60, "window": "1m"},
				"POST /posts": map[string]any{"requests": 10, "window": "90s"},
			},
		},
	})

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Len(t, cfg.RateLimit.Routes, 2)

	list := routeFor(t, cfg.RateLimit.Routes, "GET /posts")
	require.Equal(t, 60, list.Requests)
	require.Equal(t, time.Minute, list.Window)

	create := routeFor(t, cfg.RateLimit.Routes, "POST /posts")
	require.Equal(t, 10, create.Requests)
	require.Equal(t, 90*time.Second, create.Window)
}

func TestLoadWeakTyping(t *testing.T) {
	// Environment overrides arrive as strings; the decoder converts them.
	v := viper.New()
	v.Set("server.port", "8081")
	v.Set("rate_limit.fail_open", "true")

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, 8081, cfg.Server.Port)
	require.True(t, cfg.RateLimit.FailOpen)
}
