// Package config loads client settings from a file and the environment.
//
// Files may be JSON, YAML or TOML, chosen by extension. Environment variables
// override file values:
//
//	RENDER_ADDRESS           render host address (host:port)
//	RENDER_CODEC             proto | json
//	RENDER_CALLBACK_ADDRESS  listen address of the callback endpoint
//	RENDER_TIMEOUT           channel-wide call timeout, e.g. 30s
//	RENDER_RATE_LIMIT        calls per second, 0 disables
//	RENDER_LOG_LEVEL         debug | info | warn | error
//	RENDER_LOG_FORMAT        json | console
//	RENDER_LOG_CALLS         true logs every call through the logging interceptor
//	RENDER_ETCD_ENDPOINTS    comma separated; enables discovery
//	RENDER_CLIENT_ID         session key for consistent hashing
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"renderlink/codec"
	"renderlink/loadbalance"
	"renderlink/registry"
)

// Config is the client configuration.
type Config struct {
	ClientID  string            `json:"client_id" yaml:"client_id" toml:"client_id"`
	Endpoint  Endpoint          `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Codec     string            `json:"codec" yaml:"codec" toml:"codec"`
	Callback  Callback          `json:"callback" yaml:"callback" toml:"callback"`
	Timeout   Duration          `json:"timeout" yaml:"timeout" toml:"timeout"`
	// Heartbeat is the keepalive ping interval. Zero sends no pings; a host
	// must permit the interval in its keepalive enforcement policy.
	Heartbeat Duration          `json:"heartbeat" yaml:"heartbeat" toml:"heartbeat"`
	RateLimit RateLimit         `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"`
	Logging   Logging           `json:"logging" yaml:"logging" toml:"logging"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers,omitempty"`
}

// Endpoint locates the render host: a fixed address, or discovery through etcd.
type Endpoint struct {
	Address   string    `json:"address" yaml:"address" toml:"address"`
	Discovery Discovery `json:"discovery" yaml:"discovery" toml:"discovery"`
}

type Discovery struct {
	Enabled     bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Endpoints   []string `json:"endpoints" yaml:"endpoints" toml:"endpoints"`
	Service     string   `json:"service" yaml:"service" toml:"service"`
	Balancer    string   `json:"balancer" yaml:"balancer" toml:"balancer"`
	DialTimeout Duration `json:"dial_timeout" yaml:"dial_timeout" toml:"dial_timeout"`
}

// Callback configures the client's inbound callback endpoint.
type Callback struct {
	ListenAddress string `json:"listen_address" yaml:"listen_address" toml:"listen_address"`
}

type RateLimit struct {
	PerSecond float64 `json:"per_second" yaml:"per_second" toml:"per_second"`
	Burst     int     `json:"burst" yaml:"burst" toml:"burst"`
}

type Logging struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
	// Calls installs the logging interceptor. Off by default: the client
	// does not log calls unless asked to.
	Calls bool `json:"calls" yaml:"calls" toml:"calls"`
}

// Duration is a time.Duration written as a string ("30s") in every format.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Endpoint: Endpoint{
			Address: "127.0.0.1:51022",
			Discovery: Discovery{
				Service:     registry.DefaultService,
				Balancer:    loadbalance.RoundRobin,
				DialTimeout: Duration(5 * time.Second),
			},
		},
		Codec: string(codec.CodecTypeProto),
		Callback: Callback{
			ListenAddress: "127.0.0.1:0",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig reads path over the defaults, applies environment overrides,
// normalizes and validates.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config: unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return finish(cfg)
}

// FromEnv builds a Config from defaults and environment variables only.
func FromEnv() (*Config, error) {
	return finish(NewConfig())
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg in the format implied by path's extension.
func SaveConfig(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: invalid config: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".toml":
		data, err = toml.Marshal(cfg)
	default:
		return fmt.Errorf("config: unsupported file extension %q", ext)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("RENDER_ADDRESS"); v != "" {
		cfg.Endpoint.Address = v
	}
	if v := os.Getenv("RENDER_CODEC"); v != "" {
		cfg.Codec = v
	}
	if v := os.Getenv("RENDER_CALLBACK_ADDRESS"); v != "" {
		cfg.Callback.ListenAddress = v
	}
	if v := os.Getenv("RENDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid RENDER_TIMEOUT %q: %w", v, err)
		}
		cfg.Timeout = Duration(d)
	}
	if v := os.Getenv("RENDER_RATE_LIMIT"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: invalid RENDER_RATE_LIMIT %q: %w", v, err)
		}
		cfg.RateLimit.PerSecond = r
	}
	if v := os.Getenv("RENDER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RENDER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RENDER_LOG_CALLS"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid RENDER_LOG_CALLS %q: %w", v, err)
		}
		cfg.Logging.Calls = on
	}
	if v := os.Getenv("RENDER_ETCD_ENDPOINTS"); v != "" {
		cfg.Endpoint.Discovery.Enabled = true
		cfg.Endpoint.Discovery.Endpoints = parseCSV(v)
	}
	if v := os.Getenv("RENDER_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	return nil
}

func parseCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Normalize canonicalizes values so validation and runtime code see stable
// representations.
func (c *Config) Normalize() {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.Endpoint.Address = strings.TrimSpace(c.Endpoint.Address)
	c.Endpoint.Discovery.Service = strings.TrimSpace(c.Endpoint.Discovery.Service)
	if c.Endpoint.Discovery.Service == "" {
		c.Endpoint.Discovery.Service = registry.DefaultService
	}
	c.Endpoint.Discovery.Balancer = strings.ToLower(strings.TrimSpace(c.Endpoint.Discovery.Balancer))
	if c.Endpoint.Discovery.Balancer == "" {
		c.Endpoint.Discovery.Balancer = loadbalance.RoundRobin
	}
	var endpoints []string
	for _, ep := range c.Endpoint.Discovery.Endpoints {
		if ep = strings.TrimSpace(ep); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	c.Endpoint.Discovery.Endpoints = endpoints

	c.Codec = strings.ToLower(strings.TrimSpace(c.Codec))
	if c.Codec == "" {
		c.Codec = string(codec.CodecTypeProto)
	}
	c.Callback.ListenAddress = strings.TrimSpace(c.Callback.ListenAddress)
	if c.Callback.ListenAddress == "" {
		c.Callback.ListenAddress = "127.0.0.1:0"
	}
	if c.RateLimit.PerSecond > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = max(1, int(c.RateLimit.PerSecond))
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Endpoint.Discovery.Enabled {
		if len(c.Endpoint.Discovery.Endpoints) == 0 {
			return errors.New("config: discovery enabled without etcd endpoints")
		}
		if _, err := loadbalance.New(c.Endpoint.Discovery.Balancer); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	} else if c.Endpoint.Address == "" {
		return errors.New("config: render host address cannot be empty")
	}

	if _, err := codec.ParseCodecType(c.Codec); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Timeout < 0 {
		return errors.New("config: timeout cannot be negative")
	}
	if c.Heartbeat < 0 {
		return errors.New("config: heartbeat cannot be negative")
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("config: rate limit cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("config: invalid log level %q", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("config: invalid log format %q", c.Logging.Format)
	}

	return nil
}
