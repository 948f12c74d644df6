// Package config loads jobpacer's configuration: the limiter table, the
// gate's wait behavior, polling defaults, the server and logging.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"github.com/SmitUplenchwar2687/jobpacer/internal/clock"
	"github.com/SmitUplenchwar2687/jobpacer/internal/limiter"
	jplog "github.com/SmitUplenchwar2687/jobpacer/internal/log"
	"github.com/SmitUplenchwar2687/jobpacer/internal/poller"
	"github.com/SmitUplenchwar2687/jobpacer/internal/registry"
)

// Environment variables read by ApplyEnv.
const (
	EnvEnableRateLimiting = "ENABLE_RATE_LIMITING"
	EnvRateLimitWait      = "RATE_LIMIT_WAIT"
	EnvPollInterval       = "DEFAULT_POLL_INTERVAL" // seconds
	EnvMaxAttempts        = "DEFAULT_MAX_ATTEMPTS"
)

// Config is the top-level configuration for a jobpacer process.
type Config struct {
	Server       ServerConfig              `json:"server" yaml:"server"`
	RateLimiting RateLimitingConfig        `json:"rate_limiting" yaml:"rate_limiting"`
	Limiters     map[string]limiter.Config `json:"limiters" yaml:"limiters"`
	Polling      PollingConfig             `json:"polling" yaml:"polling"`
	Log          LogConfig                 `json:"log" yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// Per-remote-address throttle on the server's own endpoints.
	InboundRPS   float64 `json:"inbound_rps" yaml:"inbound_rps"`
	InboundBurst int     `json:"inbound_burst" yaml:"inbound_burst"`
	// TrustProxy keys the throttle on X-Forwarded-For. Only safe behind a
	// proxy that sets the header.
	TrustProxy bool `json:"trust_proxy" yaml:"trust_proxy"`
}

type RateLimitingConfig struct {
	// Enabled false leaves the registry empty, so every admission passes.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Wait selects blocking admission for the CLI and server; false fails
	// fast with a rate-limit error.
	Wait bool `json:"wait" yaml:"wait"`
}

type PollingConfig struct {
	Interval                time.Duration `json:"interval" yaml:"interval"`
	MaxAttempts             int           `json:"max_attempts" yaml:"max_attempts"`
	InferSuccessFromOutputs bool          `json:"infer_success_from_outputs" yaml:"infer_success_from_outputs"`
}

type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
}

// Default returns a Config with the built-in limiter table.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			InboundRPS:   50,
			InboundBurst: 100,
		},
		RateLimiting: RateLimitingConfig{
			Enabled: true,
			Wait:    true,
		},
		Limiters: registry.DefaultTable(),
		Polling: PollingConfig{
			Interval:                poller.DefaultInterval,
			MaxAttempts:             poller.DefaultMaxAttempts,
			InferSuccessFromOutputs: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the whole config and reports every problem found.
func (c Config) Validate() error {
	var err error
	if c.Server.Addr == "" {
		err = multierr.Append(err, fmt.Errorf("server.addr must not be empty"))
	}
	if c.Server.InboundRPS <= 0 {
		err = multierr.Append(err, fmt.Errorf("server.inbound_rps must be positive, got %g", c.Server.InboundRPS))
	}
	if c.Server.InboundBurst < 1 {
		err = multierr.Append(err, fmt.Errorf("server.inbound_burst must be at least 1, got %d", c.Server.InboundBurst))
	}
	for _, name := range sortedKeys(c.Limiters) {
		if verr := c.Limiters[name].Validate(); verr != nil {
			err = multierr.Append(err, fmt.Errorf("limiters.%s: %w", name, verr))
		}
	}
	if c.Polling.Interval <= 0 {
		err = multierr.Append(err, fmt.Errorf("polling.interval must be positive, got %s", c.Polling.Interval))
	}
	if c.Polling.MaxAttempts < 1 {
		err = multierr.Append(err, fmt.Errorf("polling.max_attempts must be at least 1, got %d", c.Polling.MaxAttempts))
	}
	if _, lerr := zapcore.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", lerr))
	}
	return err
}

// Registry builds the limiter registry on c. With rate limiting disabled the
// registry is empty.
func (c Config) Registry(clk clock.Clock) (*registry.Registry, error) {
	if !c.RateLimiting.Enabled {
		return registry.New(clk), nil
	}
	return registry.FromConfig(c.Limiters, clk)
}

// PollOptions returns poller options carrying the configured defaults.
func (c Config) PollOptions() poller.Options {
	opts := poller.DefaultOptions()
	opts.Interval = c.Polling.Interval
	opts.MaxAttempts = c.Polling.MaxAttempts
	opts.InferSuccessFromOutputs = c.Polling.InferSuccessFromOutputs
	return opts
}

// Logger builds the configured zap logger.
func (c Config) Logger() (*zap.Logger, error) {
	return jplog.New(c.Log.Level, c.Log.Development)
}

// ApplyEnv overrides fields from environment variables looked up with
// lookup (normally os.LookupEnv).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var err error
	if v, ok := lookup(EnvEnableRateLimiting); ok {
		b, perr := strconv.ParseBool(strings.TrimSpace(v))
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", EnvEnableRateLimiting, perr))
		} else {
			c.RateLimiting.Enabled = b
		}
	}
	if v, ok := lookup(EnvRateLimitWait); ok {
		b, perr := strconv.ParseBool(strings.TrimSpace(v))
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", EnvRateLimitWait, perr))
		} else {
			c.RateLimiting.Wait = b
		}
	}
	if v, ok := lookup(EnvPollInterval); ok {
		secs, perr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", EnvPollInterval, perr))
		} else {
			c.Polling.Interval = time.Duration(secs * float64(time.Second))
		}
	}
	if v, ok := lookup(EnvMaxAttempts); ok {
		n, perr := strconv.Atoi(strings.TrimSpace(v))
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", EnvMaxAttempts, perr))
		} else {
			c.Polling.MaxAttempts = n
		}
	}
	return err
}

// Load returns the defaults, overlaid by the file at path (if non-empty) and
// then by the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, nil
}

// LoadFile reads a JSON or YAML config file (chosen by extension) and merges
// it with defaults. Fields not specified in the file retain their default
// values; limiters are merged by name.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var raw rawConfig
	if isYAML(path) {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, raw.merge(&cfg)
}

// rawConfig is the file representation: string durations, and pointers where
// an explicit false or zero must be told apart from an absent field.
type rawConfig struct {
	Server struct {
		Addr         string  `json:"addr" yaml:"addr"`
		InboundRPS   float64 `json:"inbound_rps" yaml:"inbound_rps"`
		InboundBurst int     `json:"inbound_burst" yaml:"inbound_burst"`
		TrustProxy   *bool   `json:"trust_proxy" yaml:"trust_proxy"`
	} `json:"server" yaml:"server"`
	RateLimiting struct {
		Enabled *bool `json:"enabled" yaml:"enabled"`
		Wait    *bool `json:"wait" yaml:"wait"`
	} `json:"rate_limiting" yaml:"rate_limiting"`
	Limiters map[string]rawLimiter `json:"limiters" yaml:"limiters"`
	Polling  struct {
		Interval                string `json:"interval" yaml:"interval"`
		MaxAttempts             int    `json:"max_attempts" yaml:"max_attempts"`
		InferSuccessFromOutputs *bool  `json:"infer_success_from_outputs" yaml:"infer_success_from_outputs"`
	} `json:"polling" yaml:"polling"`
	Log struct {
		Level       string `json:"level" yaml:"level"`
		Development *bool  `json:"development" yaml:"development"`
	} `json:"log" yaml:"log"`
}

type rawLimiter struct {
	Algorithm   string  `json:"algorithm" yaml:"algorithm"`
	MaxRequests int     `json:"max_requests" yaml:"max_requests"`
	Window      string  `json:"window" yaml:"window"`
	Burst       int     `json:"burst" yaml:"burst"`
	RefillRate  float64 `json:"refill_rate" yaml:"refill_rate"`
}

func (raw rawConfig) merge(cfg *Config) error {
	if raw.Server.Addr != "" {
		cfg.Server.Addr = raw.Server.Addr
	}
	if raw.Server.InboundRPS > 0 {
		cfg.Server.InboundRPS = raw.Server.InboundRPS
	}
	if raw.Server.InboundBurst > 0 {
		cfg.Server.InboundBurst = raw.Server.InboundBurst
	}
	if raw.Server.TrustProxy != nil {
		cfg.Server.TrustProxy = *raw.Server.TrustProxy
	}
	if raw.RateLimiting.Enabled != nil {
		cfg.RateLimiting.Enabled = *raw.RateLimiting.Enabled
	}
	if raw.RateLimiting.Wait != nil {
		cfg.RateLimiting.Wait = *raw.RateLimiting.Wait
	}

	var err error
	for _, name := range sortedKeys(raw.Limiters) {
		rl := raw.Limiters[name]
		lc := limiter.Config{
			Algorithm:   limiter.Kind(rl.Algorithm),
			MaxRequests: rl.MaxRequests,
			Burst:       rl.Burst,
			RefillRate:  rl.RefillRate,
		}
		if rl.Window != "" {
			d, perr := time.ParseDuration(rl.Window)
			if perr != nil {
				err = multierr.Append(err, fmt.Errorf("parsing limiters.%s.window: %w", name, perr))
				continue
			}
			lc.Window = d
		}
		cfg.Limiters[name] = lc
	}

	if raw.Polling.Interval != "" {
		d, perr := time.ParseDuration(raw.Polling.Interval)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("parsing polling.interval: %w", perr))
		} else {
			cfg.Polling.Interval = d
		}
	}
	if raw.Polling.MaxAttempts > 0 {
		cfg.Polling.MaxAttempts = raw.Polling.MaxAttempts
	}
	if raw.Polling.InferSuccessFromOutputs != nil {
		cfg.Polling.InferSuccessFromOutputs = *raw.Polling.InferSuccessFromOutputs
	}
	if raw.Log.Level != "" {
		cfg.Log.Level = raw.Log.Level
	}
	if raw.Log.Development != nil {
		cfg.Log.Development = *raw.Log.Development
	}
	return err
}

// WriteExample writes an example config file to path, as YAML when the
// extension says so and JSON otherwise.
func WriteExample(path string) error {
	example := exampleJSON
	if isYAML(path) {
		example = exampleYAML
	}
	return os.WriteFile(path, []byte(example), 0o644)
}

const exampleJSON = `{
  "server": {
    "addr": ":8080",
    "inbound_rps": 50,
    "inbound_burst": 100,
    "trust_proxy": false
  },
  "rate_limiting": {
    "enabled": true,
    "wait": true
  },
  "limiters": {
    "image_generation": {
      "algorithm": "sliding_window",
      "max_requests": 20,
      "window": "1m"
    },
    "auth": {
      "algorithm": "token_bucket",
      "max_requests": 10,
      "window": "1m",
      "burst": 5,
      "refill_rate": 0.1
    }
  },
  "polling": {
    "interval": "5s",
    "max_attempts": 120,
    "infer_success_from_outputs": true
  },
  "log": {
    "level": "info",
    "development": false
  }
}
`

const exampleYAML = `server:
  addr: ":8080"
  inbound_rps: 50
  inbound_burst: 100
  trust_proxy: false
rate_limiting:
  enabled: true
  wait: true
limiters:
  image_generation:
    algorithm: sliding_window
    max_requests: 20
    window: 1m
  auth:
    algorithm: token_bucket
    max_requests: 10
    window: 1m
    burst: 5
    refill_rate: 0.1
polling:
  interval: 5s
  max_attempts: 120
  infer_success_from_outputs: true
log:
  level: info
  development: false
`

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
