package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the points service daemon.
type Config struct {
	ListenAddress string                     `yaml:"listen"`
	ProtocolPath  string                     `yaml:"protocol_config"`
	Auth          AuthConfig                 `yaml:"auth"`
	RateLimits    map[string]RateLimitConfig `yaml:"rate_limits"`
	Custody       CustodyConfig              `yaml:"custody"`
	Indexer       IndexerConfig              `yaml:"indexer"`
	Log           LogConfig                  `yaml:"log"`
	CORS          CORSConfig                 `yaml:"cors"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Disabled   bool   `yaml:"disabled"`
	HMACSecret string `yaml:"hmac_secret"`
	// HMACSecretEnv names an environment variable holding the secret.
	HMACSecretEnv string `yaml:"hmac_secret_env"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
}

// RateLimitConfig bounds one route group per caller.
type RateLimitConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// CustodyConfig locates the bolt receipt store.
type CustodyConfig struct {
	Path string `yaml:"path"`
}

// IndexerConfig selects the event sink backend. A DSN wins over a sqlite path.
type IndexerConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`
	ExportDir   string `yaml:"export_dir"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

const (
	defaultListen          = ":8088"
	defaultShutdownTimeout = 5 * time.Second
)

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{ListenAddress: defaultListen}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.ProtocolPath = strings.TrimSpace(cfg.ProtocolPath)
	if cfg.ProtocolPath == "" {
		cfg.ProtocolPath = "points.toml"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	cfg.Auth.normalize()
	cfg.Custody.Path = strings.TrimSpace(cfg.Custody.Path)
	cfg.Indexer.PostgresDSN = strings.TrimSpace(cfg.Indexer.PostgresDSN)
	cfg.Indexer.SQLitePath = strings.TrimSpace(cfg.Indexer.SQLitePath)
	cfg.Indexer.ExportDir = strings.TrimSpace(cfg.Indexer.ExportDir)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	limits := make(map[string]RateLimitConfig, len(cfg.RateLimits))
	for key, limit := range cfg.RateLimits {
		limits[strings.ToLower(strings.TrimSpace(key))] = limit
	}
	cfg.RateLimits = limits
}

func (cfg *AuthConfig) normalize() {
	cfg.HMACSecret = strings.TrimSpace(cfg.HMACSecret)
	if cfg.HMACSecret == "" && strings.TrimSpace(cfg.HMACSecretEnv) != "" {
		cfg.HMACSecret = strings.TrimSpace(os.Getenv(strings.TrimSpace(cfg.HMACSecretEnv)))
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
}

func (cfg *Config) validate() error {
	if !cfg.Auth.Disabled && cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("auth: hmac_secret is required unless disabled=true")
	}
	if cfg.Custody.Path == "" {
		return fmt.Errorf("custody: path is required")
	}
	if cfg.Indexer.ExportDir != "" && cfg.Indexer.PostgresDSN == "" && cfg.Indexer.SQLitePath == "" {
		return fmt.Errorf("indexer: export_dir requires a postgres_dsn or sqlite_path")
	}
	for key, limit := range cfg.RateLimits {
		if limit.RatePerSecond <= 0 || limit.Burst <= 0 {
			return fmt.Errorf("rate_limits.%s: rate_per_second and burst must be positive", key)
		}
	}
	return nil
}

// IndexerEnabled reports whether an event sink is configured.
func (cfg Config) IndexerEnabled() bool {
	return cfg.Indexer.PostgresDSN != "" || cfg.Indexer.SQLitePath != ""
}
