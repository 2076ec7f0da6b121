// Package config loads the kolon server and CLI configuration from a YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lemonberrylabs/kolon/pkg/kolon"
)

// Config is the kolon configuration.
type Config struct {
	// IncludePaths are searched in order to resolve template names.
	IncludePaths []string `yaml:"include_paths"`

	// Syntax holds the template delimiters.
	Syntax kolon.Config `yaml:"syntax"`

	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	GRPCPort string `yaml:"grpc_port"`

	// Preload compiles every template under the first include path at startup.
	Preload bool `yaml:"preload"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		IncludePaths: []string{"."},
		Syntax:       kolon.DefaultConfig(),
		Host:         "0.0.0.0",
		Port:         "8787",
		GRPCPort:     "8788",
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
		// Relative include paths are relative to the config file.
		base := filepath.Dir(path)
		for i, p := range cfg.IncludePaths {
			if !filepath.IsAbs(p) {
				cfg.IncludePaths[i] = filepath.Join(base, p)
			}
		}
	}

	cfg.applyEnv()
	cfg.Syntax = cfg.Syntax.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from KOLON_PATH, HOST, PORT and GRPC_PORT.
func (c *Config) applyEnv() {
	if v := os.Getenv("KOLON_PATH"); v != "" {
		c.IncludePaths = filepath.SplitList(v)
	}
	c.Host = envOrDefault("HOST", c.Host)
	c.Port = envOrDefault("PORT", c.Port)
	c.GRPCPort = envOrDefault("GRPC_PORT", c.GRPCPort)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if len(c.IncludePaths) == 0 {
		return fmt.Errorf("at least one include path is required")
	}
	for _, p := range c.IncludePaths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("include paths must not be empty")
		}
	}
	return c.Syntax.Validate()
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// GRPCAddr returns the gRPC listen address.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.GRPCPort)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
