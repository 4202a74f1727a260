package config

import (
	"fmt"
	"strings"

	"hgigs/crypto"
	"hgigs/storage"
)

// MaxFeeBps is the largest accepted platform fee (100%).
const MaxFeeBps = 10_000

// Validate checks the loaded configuration for values the daemon cannot run
// with.
func (c *Config) Validate() error {
	if c.FeeBps > MaxFeeBps {
		return fmt.Errorf("config: FeeBps %d exceeds %d", c.FeeBps, MaxFeeBps)
	}
	switch strings.ToLower(strings.TrimSpace(c.StorageBackend)) {
	case "", storage.BackendLevelDB, storage.BackendBolt, storage.BackendMemory:
	default:
		return fmt.Errorf("config: unsupported StorageBackend %q", c.StorageBackend)
	}
	switch c.EventLog.Driver {
	case "sqlite", "postgres":
		if strings.TrimSpace(c.EventLog.DSN) == "" {
			return fmt.Errorf("config: eventlog.DSN required for driver %s", c.EventLog.Driver)
		}
	case "none":
	default:
		return fmt.Errorf("config: unsupported eventlog.Driver %q", c.EventLog.Driver)
	}
	if addr := strings.TrimSpace(c.AdminAddress); addr != "" {
		if _, err := crypto.ParsePrincipal(addr); err != nil {
			return fmt.Errorf("config: invalid AdminAddress: %w", err)
		}
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: rate_limit values must be positive")
	}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("config: telemetry.Endpoint required when telemetry is enabled")
	}
	if c.isProduction() && len(c.Auth.HMACSecret) < 32 {
		return fmt.Errorf("config: auth.HMACSecret must be at least 32 bytes in %s", c.Environment)
	}
	return nil
}

func (c *Config) isProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "prod", "production":
		return true
	}
	return false
}
