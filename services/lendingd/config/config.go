package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the lending daemon.
type Config struct {
	ListenAddress string        `yaml:"listen"`
	Environment   string        `yaml:"environment"`
	Log           LogConfig     `yaml:"log"`
	Auth          AuthConfig    `yaml:"auth"`
	RateLimit     RateConfig    `yaml:"rate_limit"`
	Storage       StorageConfig `yaml:"storage"`
	Chain         ChainConfig   `yaml:"chain"`
	Telemetry     OTLPConfig    `yaml:"telemetry"`
}

// LogConfig tunes structured logging output.
type LogConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// AuthConfig describes the bearer-token authentication accepted by the API.
type AuthConfig struct {
	Enabled    bool          `yaml:"enabled"`
	HMACSecret string        `yaml:"hmac_secret"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ClockSkew  time.Duration `yaml:"clock_skew"`
}

// RateConfig bounds per-client request rates on mutating endpoints.
type RateConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// StorageConfig locates the persistent stores.
type StorageConfig struct {
	// DataDir holds the LevelDB record store. Empty runs in memory.
	DataDir string `yaml:"data_dir"`
	// ArchivePath holds the SQLite event archive. Empty disables archiving.
	ArchivePath string `yaml:"archive_path"`
	// GenesisPath seeds the oracle and ledger from a TOML file at startup.
	// Empty starts from nothing.
	GenesisPath string `yaml:"genesis_path"`
}

// ChainConfig fixes the slot clock the engine runs on.
type ChainConfig struct {
	// SlotInterval is the wall-clock duration of one slot.
	SlotInterval time.Duration `yaml:"slot_interval"`
	// GenesisUnix anchors slot 0. Zero means process start.
	GenesisUnix int64 `yaml:"genesis_unix"`
}

// OTLPConfig points trace export at a collector.
type OTLPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		ListenAddress: ":8470",
		Environment:   "dev",
		Log:           LogConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5},
		RateLimit:     RateConfig{RequestsPerMinute: 600, Burst: 30},
		Chain:         ChainConfig{SlotInterval: 500 * time.Millisecond},
	}
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8470"
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	if cfg.Chain.SlotInterval <= 0 {
		cfg.Chain.SlotInterval = 500 * time.Millisecond
	}
	cfg.Storage.DataDir = strings.TrimSpace(cfg.Storage.DataDir)
	cfg.Storage.ArchivePath = strings.TrimSpace(cfg.Storage.ArchivePath)
	cfg.Storage.GenesisPath = strings.TrimSpace(cfg.Storage.GenesisPath)
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
}

func (cfg *Config) validate() error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", cfg.Log.Level)
	}
	if cfg.Auth.Enabled && cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("auth: hmac_secret required when auth is enabled")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit: requests_per_minute must not be negative")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry: endpoint required when enabled")
	}
	return nil
}
