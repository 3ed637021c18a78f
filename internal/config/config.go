// Package config provides YAML-based configuration management for the
// document Q&A backend.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	AI       AIConfig       `yaml:"ai"`
	Security SecurityConfig `yaml:"security"`
	Advanced AdvancedConfig `yaml:"advanced"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int    `yaml:"port"`
	BindAddress  string `yaml:"bindAddress"`
	EnableCORS   bool   `yaml:"enableCors"`
	AllowOrigins string `yaml:"allowOrigins"`
	ReadTimeout  int    `yaml:"readTimeoutSeconds"`
	// WriteTimeout of zero disables the write deadline; ingestion progress
	// streams can outlive any fixed timeout.
	WriteTimeout int    `yaml:"writeTimeoutSeconds"`
	IdleTimeout  int    `yaml:"idleTimeoutSeconds"`
	BodyLimit    string `yaml:"bodyLimit"`
}

// StorageConfig contains blob staging and index storage settings.
type StorageConfig struct {
	DataDirectory  string `yaml:"dataDirectory"`
	BlobsDirectory string `yaml:"blobsDirectory"`
	IndexFile      string `yaml:"indexFile"`
}

// AIConfig configures the external extraction, embedding, and
// retrieval/generation capabilities.
type AIConfig struct {
	// Provider selects the capability implementation: "openai" or "mock".
	Provider            string `yaml:"provider"`
	BaseURL             string `yaml:"baseUrl"`
	APIKey              string `yaml:"-"` // environment only, never persisted
	ChatModel           string `yaml:"chatModel"`
	EmbeddingModel      string `yaml:"embeddingModel"`
	EmbeddingDimensions int    `yaml:"embeddingDimensions"`
}

// SecurityConfig contains the administrative allow-list and principal
// resolution settings. Session issuance itself is external; the backend
// only consumes the authenticated principal header.
type SecurityConfig struct {
	PrincipalHeader string   `yaml:"principalHeader"`
	AdminUsers      []string `yaml:"adminUsers"`
}

// AdvancedConfig contains tuning options.
type AdvancedConfig struct {
	LogLevel             string `yaml:"logLevel"`
	EnableRequestLogging bool   `yaml:"enableRequestLogging"`
	DuckDBThreads        int    `yaml:"duckdbThreads"`
	DuckDBMemoryLimit    string `yaml:"duckdbMemoryLimit"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  60,
			WriteTimeout: 0,
			IdleTimeout:  120,
			BodyLimit:    "256M",
		},
		Storage: StorageConfig{
			DataDirectory:  "./data",
			BlobsDirectory: "./data/blobs",
			IndexFile:      "./data/index.duckdb",
		},
		AI: AIConfig{
			Provider:            "openai",
			BaseURL:             "https://api.openai.com/v1",
			ChatModel:           "gpt-4o-mini",
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 1536,
		},
		Security: SecurityConfig{
			PrincipalHeader: "X-Auth-User",
			AdminUsers:      []string{},
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			DuckDBThreads:        4,
			DuckDBMemoryLimit:    "1GB",
		},
	}
}

// LoadConfig loads configuration from a YAML file, creating a default file
// if none exists.
func LoadConfig(configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		config.applyEnvironmentOverrides()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save writes the configuration to a YAML file.
func (c *AppConfig) Save(configPath string) error {
	output, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Document Q&A backend configuration\n# This file is auto-generated on first run\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values.
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.BlobsDirectory = filepath.Join(dataDir, "blobs")
		c.Storage.IndexFile = filepath.Join(dataDir, "index.duckdb")
	}

	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.AI.BaseURL = baseURL
	}

	// The API key only ever comes from the environment.
	c.AI.APIKey = os.Getenv("OPENAI_API_KEY")

	if admins := os.Getenv("ADMIN_USERS"); admins != "" {
		c.Security.AdminUsers = splitAndTrim(admins)
	}
}

// resolvePaths converts relative paths to absolute based on config file location.
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.BlobsDirectory) {
		c.Storage.BlobsDirectory = filepath.Join(configDir, c.Storage.BlobsDirectory)
	}
	if !filepath.IsAbs(c.Storage.IndexFile) {
		c.Storage.IndexFile = filepath.Join(configDir, c.Storage.IndexFile)
	}
}

// GetServerAddr returns the server bind address.
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// IsAdmin reports whether the principal is on the administrative allow-list.
func (c *AppConfig) IsAdmin(principal string) bool {
	for _, admin := range c.Security.AdminUsers {
		if admin == principal {
			return true
		}
	}
	return false
}

// EnsureDirectories creates all necessary directories.
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.BlobsDirectory,
		filepath.Dir(c.Storage.IndexFile),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
