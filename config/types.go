package config

// Auth configures bearer-token verification for the HTTP API. The token's
// subject claim is the caller's principal address.
type Auth struct {
	HMACSecret       string `toml:"HMACSecret" yaml:"hmac_secret"`
	Issuer           string `toml:"Issuer" yaml:"issuer"`
	Audience         string `toml:"Audience" yaml:"audience"`
	ClockSkewSeconds int    `toml:"ClockSkewSeconds" yaml:"clock_skew_seconds"`
}

// RateLimit bounds the request rate per caller.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond" yaml:"requests_per_second"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// EventLog selects the durable journal that records emitted events.
type EventLog struct {
	// Driver is "sqlite", "postgres" or "none".
	Driver string `toml:"Driver" yaml:"driver"`
	DSN    string `toml:"DSN" yaml:"dsn"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Enabled  bool   `toml:"Enabled" yaml:"enabled"`
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
}

// Logging controls the structured logger and optional file rotation.
type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
	Compress   bool   `toml:"Compress" yaml:"compress"`
}
