/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artifact-registry/registryd/internal/storage"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig          `yaml:"server"`
	TLS      TLSConfig             `yaml:"tls"`
	Storage  storage.BackendConfig `yaml:"storage"`
	Identity IdentityConfig        `yaml:"identity"`
	Limits   LimitsConfig          `yaml:"limits"`
	Logging  LoggingConfig         `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// IdentityConfig holds the principal attribution configuration. Every
// created version records the configured principal as its creator.
type IdentityConfig struct {
	Principal string `yaml:"principal"`
}

// LimitsConfig holds request limit configuration
type LimitsConfig struct {
	MaxContentSize  int64 `yaml:"max_content_size"`
	DefaultPageSize int   `yaml:"default_page_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from a YAML file and environment variables.
// Environment variables take precedence over YAML file values.
func Load() (*Config, error) {
	configFile := flag.String("config", "", "Path to configuration file (YAML)")
	flag.Parse()

	cfg := getDefaultConfig()

	if err := loadFromYAML(cfg, *configFile); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	loadFromEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getDefaultConfig returns a configuration with default values
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		TLS: TLSConfig{
			Enabled:  false,
			CertFile: "",
			KeyFile:  "",
		},
		Storage: storage.DefaultBackendConfig(),
		Identity: IdentityConfig{
			Principal: "anonymous",
		},
		Limits: LimitsConfig{
			MaxContentSize:  4 * 1024 * 1024, // 4MB
			DefaultPageSize: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadFromYAML loads configuration from a YAML file
func loadFromYAML(cfg *Config, configFile string) error {
	// Only load config file if explicitly provided via command line
	if configFile == "" {
		return nil
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config file %s: %w", configFile, err)
	}

	return nil
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(cfg *Config) {
	// Server configuration
	if val := getEnv("REGISTRY_SERVER_ADDRESS", ""); val != "" {
		cfg.Server.Address = val
	}
	if val := getDurationEnv("REGISTRY_READ_TIMEOUT", 0); val != 0 {
		cfg.Server.ReadTimeout = val
	}
	if val := getDurationEnv("REGISTRY_WRITE_TIMEOUT", 0); val != 0 {
		cfg.Server.WriteTimeout = val
	}
	if val := getDurationEnv("REGISTRY_IDLE_TIMEOUT", 0); val != 0 {
		cfg.Server.IdleTimeout = val
	}

	// TLS configuration
	if val := getBoolEnvWithDefault("REGISTRY_TLS_ENABLED", cfg.TLS.Enabled); val != cfg.TLS.Enabled {
		cfg.TLS.Enabled = val
	}
	if val := getEnv("REGISTRY_TLS_CERT_FILE", ""); val != "" {
		cfg.TLS.CertFile = val
	}
	if val := getEnv("REGISTRY_TLS_KEY_FILE", ""); val != "" {
		cfg.TLS.KeyFile = val
	}

	// Storage configuration
	if val := getEnv("REGISTRY_STORAGE_TYPE", ""); val != "" {
		cfg.Storage.Type = val
	}
	if val := getEnv("REGISTRY_DATABASE_URL", ""); val != "" {
		if cfg.Storage.Database == nil {
			cfg.Storage.Database = &storage.DatabaseBackendConfig{Driver: "postgres"}
		}
		cfg.Storage.Database.ConnectionString = val
	}
	if val := getIntEnv("REGISTRY_DATABASE_MAX_CONNECTIONS", 0); val != 0 && cfg.Storage.Database != nil {
		cfg.Storage.Database.MaxConnections = val
	}
	if val := getIntEnv("REGISTRY_STORAGE_MAX_ARTIFACTS", 0); val != 0 {
		if cfg.Storage.Memory == nil {
			cfg.Storage.Memory = &storage.MemoryBackendConfig{}
		}
		cfg.Storage.Memory.MaxArtifacts = val
	}

	// Identity configuration
	if val := getEnv("REGISTRY_PRINCIPAL", ""); val != "" {
		cfg.Identity.Principal = val
	}

	// Limits configuration
	if val := getInt64Env("REGISTRY_MAX_CONTENT_SIZE", 0); val != 0 {
		cfg.Limits.MaxContentSize = val
	}
	if val := getIntEnv("REGISTRY_DEFAULT_PAGE_SIZE", 0); val != 0 {
		cfg.Limits.DefaultPageSize = val
	}

	// Logging configuration
	if val := getEnv("REGISTRY_LOG_LEVEL", ""); val != "" {
		cfg.Logging.Level = val
	}
	if val := getEnv("REGISTRY_LOG_FORMAT", ""); val != "" {
		cfg.Logging.Format = val
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return fmt.Errorf("server address is required")
	}

	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("TLS cert and key files are required when TLS is enabled")
	}

	switch strings.ToLower(c.Storage.Type) {
	case "", "memory":
	case "database":
		if c.Storage.Database == nil || c.Storage.Database.ConnectionString == "" {
			return fmt.Errorf("database connection string is required for the database backend")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.Limits.MaxContentSize <= 0 {
		return fmt.Errorf("max content size must be positive")
	}
	if c.Limits.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getBoolEnvWithDefault gets a boolean environment variable with a specific default
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
