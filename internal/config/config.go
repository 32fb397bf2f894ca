// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// APIKeyEnv is the environment variable holding the OpenAI credential.
const APIKeyEnv = "OPENAI_API_KEY"

// Transport modes
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// Config holds the process-scoped configuration. It is built once at startup
// and treated as read-only afterwards.
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
	OpenAI  OpenAIConfig
	History HistoryConfig
}

// ServerConfig holds MCP server settings
type ServerConfig struct {
	Name          string
	Version       string
	Address       string
	Port          int
	TransportMode string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level    string
	FilePath string
}

// OpenAIConfig holds downstream client settings
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string
}

// HistoryConfig holds call history settings. An empty DBPath disables history.
type HistoryConfig struct {
	DBPath string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:          "mcp-openai",
			Version:       "0.1.0",
			Address:       "localhost",
			Port:          8080,
			TransportMode: TransportStdio,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// FromEnv reads the credential from the process environment.
func FromEnv(cfg *Config) {
	if v := os.Getenv(APIKeyEnv); v != "" {
		cfg.OpenAI.APIKey = v
	}
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for required values and consistency
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return fmt.Errorf("%s is not set: export %s=<your OpenAI API key> before starting the server", APIKeyEnv, APIKeyEnv)
	}

	switch c.Server.TransportMode {
	case TransportStdio:
	case TransportSSE, TransportHTTP:
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid port: %d", c.Server.Port)
		}
	default:
		return fmt.Errorf("unsupported transport mode: %s (expected %s, %s or %s)",
			c.Server.TransportMode, TransportStdio, TransportSSE, TransportHTTP)
	}

	return nil
}
