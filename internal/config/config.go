// ABOUTME: Configuration loading and parsing for quotedesk
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete quotedesk configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Admin      AdminConfig      `yaml:"admin"`
	Messenger  MessengerConfig  `yaml:"messenger"`
	Affiliates AffiliatesConfig `yaml:"affiliates"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// BaseURL is the external URL of the service (used in affiliate links).
	// If not set, it's derived from http_addr.
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AssistantConfig holds AI provider configuration
type AssistantConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// HistoryWindow is how many recent turns are sent as context
	HistoryWindow int `yaml:"history_window"`

	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// AdminConfig holds admin dashboard configuration
type AdminConfig struct {
	// JWTSecret signs API export tokens minted from the dashboard
	JWTSecret string `yaml:"jwt_secret"`
}

// MessengerConfig holds Facebook Messenger webhook configuration
type MessengerConfig struct {
	Enabled         bool   `yaml:"enabled"`
	PageAccessToken string `yaml:"page_access_token"`
	VerifyToken     string `yaml:"verify_token"`
}

// AffiliatesConfig maps partner names to redirect URLs for /track links
type AffiliatesConfig struct {
	Partners map[string]string `yaml:"partners"`
	// Default is the partner used when an unknown id is requested
	Default string `yaml:"default"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file omits assistant tuning values.
// Model and sampling parameters follow the provider setup the service
// was originally tuned against.
const (
	DefaultModel         = "llama-3.1-8b-instant"
	DefaultTemperature   = 0.3
	DefaultMaxTokens     = 500
	DefaultHistoryWindow = 6
	DefaultTimeout       = 30 * time.Second
	DefaultAssistantURL  = "https://api.groq.com/openai/v1/chat/completions"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in assistant tuning values left empty in the file
func (c *Config) applyDefaults() {
	if c.Assistant.BaseURL == "" {
		c.Assistant.BaseURL = DefaultAssistantURL
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = DefaultModel
	}
	if c.Assistant.Temperature == 0 {
		c.Assistant.Temperature = DefaultTemperature
	}
	if c.Assistant.MaxTokens == 0 {
		c.Assistant.MaxTokens = DefaultMaxTokens
	}
	if c.Assistant.HistoryWindow == 0 {
		c.Assistant.HistoryWindow = DefaultHistoryWindow
	}
	if c.Assistant.Timeout == 0 {
		c.Assistant.Timeout = DefaultTimeout
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Assistant.APIKey == "" {
		return fmt.Errorf("assistant.api_key is required")
	}

	if c.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwt_secret is required")
	}

	// Messenger needs both tokens when enabled
	if c.Messenger.Enabled {
		if c.Messenger.PageAccessToken == "" {
			return fmt.Errorf("messenger.page_access_token is required when messenger is enabled")
		}
		if c.Messenger.VerifyToken == "" {
			return fmt.Errorf("messenger.verify_token is required when messenger is enabled")
		}
	}

	if c.Affiliates.Default != "" {
		if _, ok := c.Affiliates.Partners[c.Affiliates.Default]; !ok {
			return fmt.Errorf("affiliates.default %q has no entry in affiliates.partners", c.Affiliates.Default)
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Assistant.TimeoutRaw != "" {
		cfg.Assistant.Timeout, err = time.ParseDuration(cfg.Assistant.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing assistant timeout %q: %w", cfg.Assistant.TimeoutRaw, err)
		}
	}

	return nil
}
