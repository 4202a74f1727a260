package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"hgigs/crypto"
)

const (
	DefaultListenAddress = ":8080"
	DefaultDataDir       = "./hgigs-data"
	DefaultFeeBps        = 500
	defaultEnvironment   = "dev"
)

type Config struct {
	ListenAddress        string    `toml:"ListenAddress" yaml:"listen_address"`
	DataDir              string    `toml:"DataDir" yaml:"data_dir"`
	Environment          string    `toml:"Environment" yaml:"environment"`
	StorageBackend       string    `toml:"StorageBackend" yaml:"storage_backend"`
	AdminAddress         string    `toml:"AdminAddress" yaml:"admin_address"`
	AdminKeystorePath    string    `toml:"AdminKeystorePath" yaml:"admin_keystore_path"`
	AdminKeystorePassEnv string    `toml:"AdminKeystorePassEnv" yaml:"admin_keystore_pass_env"`
	FeeBps               uint32    `toml:"FeeBps" yaml:"fee_bps"`
	ReadHeaderTimeout    int       `toml:"ReadHeaderTimeout" yaml:"read_header_timeout"`
	WriteTimeout         int       `toml:"WriteTimeout" yaml:"write_timeout"`
	Auth                 Auth      `toml:"auth" yaml:"auth"`
	RateLimit            RateLimit `toml:"rate_limit" yaml:"rate_limit"`
	EventLog             EventLog  `toml:"eventlog" yaml:"eventlog"`
	Telemetry            Telemetry `toml:"telemetry" yaml:"telemetry"`
	Logging              Logging   `toml:"logging" yaml:"logging"`
}

// Load loads the configuration from the given path. A missing file is
// replaced with a default TOML configuration and a fresh administrator
// keystore. Files ending in .yaml or .yml are decoded as YAML.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: unknown field %s in %s", undecoded[0], path)
		}
	}

	if strings.TrimSpace(cfg.AdminAddress) == "" {
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = defaultEnvironment
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 5
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15
	}
	if c.Auth.ClockSkewSeconds <= 0 {
		c.Auth.ClockSkewSeconds = 30
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 20
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 40
	}
	if strings.TrimSpace(c.EventLog.Driver) == "" {
		c.EventLog.Driver = "sqlite"
	}
	if c.EventLog.Driver == "sqlite" && strings.TrimSpace(c.EventLog.DSN) == "" {
		c.EventLog.DSN = filepath.Join(c.DataDir, "events.db")
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
}

// applyEnv overlays environment overrides. lookup is os.Getenv in production.
func (c *Config) applyEnv(lookup func(string) string) {
	if v := strings.TrimSpace(lookup("HGIGS_ENV")); v != "" {
		c.Environment = v
	}
	if v := strings.TrimSpace(lookup("HGIGS_JWT_SECRET")); v != "" {
		c.Auth.HMACSecret = v
	}
	if v := strings.TrimSpace(lookup("HGIGS_EVENTLOG_DSN")); v != "" {
		c.EventLog.DSN = v
	}
	if v := strings.TrimSpace(lookup("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		c.Telemetry.Endpoint = v
	}
}

// AdminPrincipal resolves the configured administrator. An explicit
// AdminAddress wins; otherwise the keystore is decrypted with the passphrase
// held in AdminKeystorePassEnv.
func (c *Config) AdminPrincipal() ([20]byte, error) {
	if addr := strings.TrimSpace(c.AdminAddress); addr != "" {
		return crypto.ParsePrincipal(addr)
	}
	if strings.TrimSpace(c.AdminKeystorePath) == "" {
		return [20]byte{}, fmt.Errorf("config: administrator address or keystore required")
	}
	passphrase := ""
	if env := strings.TrimSpace(c.AdminKeystorePassEnv); env != "" {
		passphrase = os.Getenv(env)
	}
	key, err := crypto.LoadFromKeystore(c.AdminKeystorePath, passphrase)
	if err != nil {
		return [20]byte{}, fmt.Errorf("config: load administrator keystore: %w", err)
	}
	return key.PubKey().Address().Raw(), nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.AdminKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.AdminKeystorePath != keystorePath {
		cfg.AdminKeystorePath = keystorePath
		if isYAML(configPath) {
			return nil
		}
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress:     DefaultListenAddress,
		DataDir:           DefaultDataDir,
		Environment:       defaultEnvironment,
		StorageBackend:    "leveldb",
		AdminKeystorePath: keystorePath,
		FeeBps:            DefaultFeeBps,
		EventLog:          EventLog{Driver: "sqlite"},
		Logging:           Logging{Level: "info"},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "admin.keystore")
}
