package config

import internalconfig "github.com/SmitUplenchwar2687/jobpacer/internal/config"

// Config is the top-level configuration for a jobpacer process.
type Config = internalconfig.Config

type (
	ServerConfig       = internalconfig.ServerConfig
	RateLimitingConfig = internalconfig.RateLimitingConfig
	PollingConfig      = internalconfig.PollingConfig
	LogConfig          = internalconfig.LogConfig
)

// Environment variables read by Load.
const (
	EnvEnableRateLimiting = internalconfig.EnvEnableRateLimiting
	EnvRateLimitWait      = internalconfig.EnvRateLimitWait
	EnvPollInterval       = internalconfig.EnvPollInterval
	EnvMaxAttempts        = internalconfig.EnvMaxAttempts
)

// Default returns a Config with the built-in limiter table.
func Default() Config {
	return internalconfig.Default()
}

// Load returns the defaults overlaid by the file at path and the environment.
func Load(path string) (Config, error) {
	return internalconfig.Load(path)
}

// LoadFile reads a JSON or YAML config file and merges it with defaults.
func LoadFile(path string) (Config, error) {
	return internalconfig.LoadFile(path)
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	return internalconfig.WriteExample(path)
}
