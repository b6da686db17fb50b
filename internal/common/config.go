// Package common provides shared utilities for PSXLens
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for PSXLens
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Models      ModelsConfig  `toml:"models"`
	Prompts     PromptsConfig `toml:"prompts"`
	Jobs        JobsConfig    `toml:"jobs"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the on-disk storage areas.
type StorageConfig struct {
	Results    AreaConfig `toml:"results"`    // analysis results + state snapshots
	Statements AreaConfig `toml:"statements"` // downloaded report PDFs
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	OpenRouter OpenRouterConfig `toml:"openrouter"`
	PSX        PSXConfig        `toml:"psx"`
}

// OpenRouterConfig holds the LLM gateway configuration
type OpenRouterConfig struct {
	BaseURL      string `toml:"base_url"`
	APIKey       string `toml:"api_key"`
	Timeout      string `toml:"timeout"`
	MaxTokens    int    `toml:"max_tokens"`
	PDFMaxTokens int    `toml:"pdf_max_tokens"`
}

// GetTimeout parses and returns the timeout duration
func (c *OpenRouterConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 300 * time.Second
	}
	return d
}

// PSXConfig holds PSX data portal configuration
type PSXConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *PSXConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// PromptsConfig holds the prompt template directory.
type PromptsConfig struct {
	Dir string `toml:"dir"`
}

// JobsConfig holds background worker pool configuration.
type JobsConfig struct {
	MaxConcurrent int `toml:"max_concurrent"`
	QueueSize     int `toml:"queue_size"`
}

// GetMaxConcurrent returns the worker count, defaulting to 2.
func (c *JobsConfig) GetMaxConcurrent() int {
	if c.MaxConcurrent <= 0 {
		return 2
	}
	return c.MaxConcurrent
}

// GetQueueSize returns the queue capacity, defaulting to 32.
func (c *JobsConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 32
	}
	return c.QueueSize
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Results:    AreaConfig{Path: "data/results"},
			Statements: AreaConfig{Path: "data/financial_statements"},
		},
		Clients: ClientsConfig{
			OpenRouter: OpenRouterConfig{
				BaseURL:      "https://openrouter.ai/api/v1",
				Timeout:      "300s",
				MaxTokens:    8000,
				PDFMaxTokens: 16000,
			},
			PSX: PSXConfig{
				BaseURL:   "https://dps.psx.com.pk",
				RateLimit: 2,
				Timeout:   "30s",
			},
		},
		Models:  NewDefaultModelsConfig(),
		Prompts: PromptsConfig{Dir: "prompts"},
		Jobs: JobsConfig{
			MaxConcurrent: 2,
			QueueSize:     32,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PSXLENS_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("PSXLENS_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("PSXLENS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("PSXLENS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("PSXLENS_DATA_PATH"); path != "" {
		config.Storage.Results.Path = path + "/results"
		config.Storage.Statements.Path = path + "/financial_statements"
	}

	// API key resolution: OPENROUTER_API_KEY is the conventional name,
	// PSXLENS_OPENROUTER_API_KEY the namespaced fallback.
	for _, name := range []string{"OPENROUTER_API_KEY", "PSXLENS_OPENROUTER_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			config.Clients.OpenRouter.APIKey = key
			break
		}
	}

	if m := os.Getenv("PSXLENS_EXTRACTION_MODEL"); m != "" {
		config.Models.Extraction = m
	}
	if m := os.Getenv("PSXLENS_ANALYSIS_MODEL"); m != "" {
		config.Models.Analysis = m
	}
	if m := os.Getenv("PSXLENS_DECISION_MODEL"); m != "" {
		config.Models.Decision = m
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
