package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hgigs/crypto"
)

func TestLoadCreatesDefaultWithKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != DefaultListenAddress || cfg.FeeBps != DefaultFeeBps {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.AdminKeystorePath != filepath.Join(dir, "admin.keystore") {
		t.Fatalf("unexpected keystore path %q", cfg.AdminKeystorePath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	admin, err := cfg.AdminPrincipal()
	if err != nil {
		t.Fatalf("admin principal: %v", err)
	}
	if admin == ([20]byte{}) {
		t.Fatalf("expected administrator derived from keystore")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	again, err := reloaded.AdminPrincipal()
	if err != nil || again != admin {
		t.Fatalf("administrator changed across reload: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	admin := crypto.FromRaw([20]byte{0xAD}).String()
	contents := `ListenAddress = "127.0.0.1:9000"
DataDir = "/var/lib/hgigs"
StorageBackend = "bolt"
AdminAddress = "` + admin + `"
FeeBps = 250

[auth]
HMACSecret = "secret"
Issuer = "hgigs"

[rate_limit]
RequestsPerSecond = 5
Burst = 10

[eventlog]
Driver = "postgres"
DSN = "postgres://localhost/hgigs"

[logging]
Level = "debug"
File = "/var/log/hgigs.log"
MaxSizeMB = 50
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" || cfg.StorageBackend != "bolt" || cfg.FeeBps != 250 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.EventLog.Driver != "postgres" || cfg.RateLimit.Burst != 10 || cfg.Logging.MaxSizeMB != 50 {
		t.Fatalf("sections not decoded: %+v", cfg)
	}
	if cfg.AdminKeystorePath != "" {
		t.Fatalf("keystore must not be generated when an address is configured")
	}
	got, err := cfg.AdminPrincipal()
	if err != nil || got != ([20]byte{0xAD}) {
		t.Fatalf("unexpected admin %x (%v)", got, err)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	contents := `listen_address: ":7070"
admin_address: "0x` + strings.Repeat("ab", 20) + `"
fee_bps: 100
eventlog:
  driver: none
telemetry:
  enabled: true
  endpoint: "collector:4318"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":7070" || cfg.FeeBps != 100 || cfg.EventLog.Driver != "none" {
		t.Fatalf("unexpected yaml config %+v", cfg)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "collector:4318" {
		t.Fatalf("telemetry not decoded: %+v", cfg.Telemetry)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("ListenAddres = \":1\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	env := map[string]string{
		"HGIGS_ENV":                   "staging",
		"HGIGS_JWT_SECRET":            "from-env",
		"HGIGS_EVENTLOG_DSN":          "file:events.db",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "otel:4318",
	}
	cfg.applyEnv(func(key string) string { return env[key] })
	if cfg.Environment != "staging" || cfg.Auth.HMACSecret != "from-env" || cfg.EventLog.DSN != "file:events.db" || cfg.Telemetry.Endpoint != "otel:4318" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{AdminAddress: crypto.FromRaw([20]byte{1}).String()}
		cfg.applyDefaults()
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "fee too high", mutate: func(c *Config) { c.FeeBps = MaxFeeBps + 1 }},
		{name: "bad backend", mutate: func(c *Config) { c.StorageBackend = "rocks" }},
		{name: "bad driver", mutate: func(c *Config) { c.EventLog.Driver = "mysql" }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.EventLog = EventLog{Driver: "postgres"} }},
		{name: "bad admin", mutate: func(c *Config) { c.AdminAddress = "nope" }},
		{name: "telemetry without endpoint", mutate: func(c *Config) { c.Telemetry.Enabled = true }},
		{name: "production short secret", mutate: func(c *Config) { c.Environment = "prod"; c.Auth.HMACSecret = "short" }},
		{name: "production secret", mutate: func(c *Config) {
			c.Environment = "production"
			c.Auth.HMACSecret = strings.Repeat("s", 32)
		}, ok: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
