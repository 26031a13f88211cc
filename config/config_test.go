package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var renderEnv = []string{
	"RENDER_ADDRESS", "RENDER_CODEC", "RENDER_CALLBACK_ADDRESS", "RENDER_TIMEOUT",
	"RENDER_RATE_LIMIT", "RENDER_LOG_LEVEL", "RENDER_LOG_FORMAT", "RENDER_LOG_CALLS",
	"RENDER_ETCD_ENDPOINTS", "RENDER_CLIENT_ID",
}

// clearEnv isolates a test from RENDER_* variables set in the outer environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range renderEnv {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:51022", cfg.Endpoint.Address)
	assert.Equal(t, "proto", cfg.Codec)
	assert.Equal(t, "127.0.0.1:0", cfg.Callback.ListenAddress)
	assert.Zero(t, cfg.Timeout)
	assert.False(t, cfg.Endpoint.Discovery.Enabled)
}

func TestLoadConfigFormats(t *testing.T) {
	clearEnv(t)
	files := map[string]string{
		"client.json": `{
			"endpoint": {"address": "10.0.0.5:51022"},
			"codec": "JSON",
			"timeout": "2s",
			"rate_limit": {"per_second": 50},
			"logging": {"level": "debug", "format": "console"},
			"headers": {"x-render-client": "tests"}
		}`,
		"client.yaml": `
endpoint:
  address: 10.0.0.5:51022
codec: JSON
timeout: 2s
rate_limit:
  per_second: 50
logging:
  level: debug
  format: console
headers:
  x-render-client: tests
`,
		"client.toml": `
codec = "JSON"
timeout = "2s"

[endpoint]
address = "10.0.0.5:51022"

[rate_limit]
per_second = 50.0

[logging]
level = "debug"
format = "console"

[headers]
x-render-client = "tests"
`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadConfig(write(t, name, content))
			require.NoError(t, err)
			assert.Equal(t, "10.0.0.5:51022", cfg.Endpoint.Address)
			assert.Equal(t, "json", cfg.Codec)
			assert.Equal(t, 2*time.Second, cfg.Timeout.Std())
			assert.Equal(t, 50.0, cfg.RateLimit.PerSecond)
			assert.Equal(t, 50, cfg.RateLimit.Burst)
			assert.Equal(t, "debug", cfg.Logging.Level)
			assert.Equal(t, "tests", cfg.Headers["x-render-client"])
			// defaults survive
			assert.Equal(t, "127.0.0.1:0", cfg.Callback.ListenAddress)
			assert.Zero(t, cfg.Heartbeat, "keepalive pings are opt-in")
			assert.False(t, cfg.Logging.Calls)
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = LoadConfig(write(t, "client.ini", "address=x"))
	require.ErrorContains(t, err, "unsupported")

	_, err = LoadConfig(write(t, "client.json", `{"codec": "msgpack"}`))
	require.ErrorContains(t, err, "codec")

	_, err = LoadConfig(write(t, "client.json", `{"timeout": "soon"}`))
	require.Error(t, err)

	_, err = LoadConfig(write(t, "client.yaml", "logging:\n  level: verbose\n"))
	require.ErrorContains(t, err, "log level")
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RENDER_ADDRESS", " 192.168.1.9:51022 ")
	t.Setenv("RENDER_TIMEOUT", "750ms")
	t.Setenv("RENDER_RATE_LIMIT", "5")
	t.Setenv("RENDER_LOG_LEVEL", "WARN")
	t.Setenv("RENDER_ETCD_ENDPOINTS", "etcd-1:2379, etcd-2:2379,")
	t.Setenv("RENDER_CLIENT_ID", "workstation-7")
	t.Setenv("RENDER_LOG_CALLS", "true")

	cfg, err := LoadConfig(write(t, "client.json", `{"endpoint": {"address": "10.0.0.5:1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.9:51022", cfg.Endpoint.Address)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout.Std())
	assert.Equal(t, 5.0, cfg.RateLimit.PerSecond)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Endpoint.Discovery.Enabled)
	assert.Equal(t, []string{"etcd-1:2379", "etcd-2:2379"}, cfg.Endpoint.Discovery.Endpoints)
	assert.Equal(t, "workstation-7", cfg.ClientID)
	assert.True(t, cfg.Logging.Calls)
}

func TestInvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("RENDER_TIMEOUT", "forever")
	_, err := FromEnv()
	require.ErrorContains(t, err, "RENDER_TIMEOUT")

	clearEnv(t)
	t.Setenv("RENDER_RATE_LIMIT", "fast")
	_, err = FromEnv()
	require.ErrorContains(t, err, "RENDER_RATE_LIMIT")

	clearEnv(t)
	t.Setenv("RENDER_LOG_CALLS", "sometimes")
	_, err = FromEnv()
	require.ErrorContains(t, err, "RENDER_LOG_CALLS")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty address":      func(c *Config) { c.Endpoint.Address = "" },
		"discovery no etcd":  func(c *Config) { c.Endpoint.Discovery.Enabled = true },
		"unknown balancer":   func(c *Config) { c.Endpoint.Discovery = Discovery{Enabled: true, Endpoints: []string{"e:1"}, Balancer: "fastest"} },
		"negative timeout":   func(c *Config) { c.Timeout = Duration(-time.Second) },
		"negative rate":      func(c *Config) { c.RateLimit.PerSecond = -1 },
		"unknown log format": func(c *Config) { c.Logging.Format = "xml" },
		"negative heartbeat": func(c *Config) { c.Heartbeat = Duration(-1) },
	}
	for name, mutate := range cases {
		cfg := NewConfig()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}

	cfg := NewConfig()
	cfg.Endpoint.Address = ""
	cfg.Endpoint.Discovery = Discovery{Enabled: true, Endpoints: []string{"e:1"}, Balancer: "consistent_hash"}
	assert.NoError(t, cfg.Validate(), "discovery does not need a static address")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	clearEnv(t)
	for _, name := range []string{"out.json", "out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Timeout = Duration(3 * time.Second)
			cfg.Headers = map[string]string{"x-render-client": "saved"}

			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, SaveConfig(cfg, path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}
