package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #region config
// Config holds runtime settings for the auditor CLI and servers.
type Config struct {
	DB            string   `yaml:"db"`
	HTTPAddr      string   `yaml:"http_addr"`
	GRPCAddr      string   `yaml:"grpc_addr"`
	LogLevel      string   `yaml:"log_level"`
	CatalogPath   string   `yaml:"catalog_path"`
	ReplayWorkers int      `yaml:"replay_workers"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

// Default returns the settings used when no file or env var overrides them.
func Default() Config {
	return Config{
		DB:            "fidelity_audit.db",
		HTTPAddr:      ":8080",
		GRPCAddr:      ":50051",
		LogLevel:      "info",
		ReplayWorkers: 4,
		CORSOrigins:   []string{"http://localhost:3000"},
	}
}

// #endregion config

// #region load
// Load starts from Default, applies the YAML file at path (if non-empty),
// then environment overrides, then validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DB = envOr("FIDELITY_DB", c.DB)
	c.HTTPAddr = envOr("FIDELITY_HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = envOr("FIDELITY_GRPC_ADDR", c.GRPCAddr)
	c.LogLevel = envOr("FIDELITY_LOG_LEVEL", c.LogLevel)
	c.CatalogPath = envOr("FIDELITY_CATALOG", c.CatalogPath)
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("config: db is required")
	}
	if c.HTTPAddr == "" && c.GRPCAddr == "" {
		return fmt.Errorf("config: at least one of http_addr, grpc_addr is required")
	}
	if c.ReplayWorkers < 1 {
		return fmt.Errorf("config: replay_workers must be >= 1, got %d", c.ReplayWorkers)
	}
	return nil
}

// #endregion load

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
