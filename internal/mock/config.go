package mock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort         = 8080
	DefaultHost         = "localhost"
	DefaultProjectShort = "DEMO"
)

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Port:         DefaultPort,
		Host:         DefaultHost,
		Logging:      true,
		ProjectShort: DefaultProjectShort,
	}
}

// LoadConfig loads a tracker double configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// validateConfig validates the tracker double configuration
func validateConfig(config *Config) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	if config.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if config.FailRate < 0 || config.FailRate > 1 {
		return fmt.Errorf("failRate must be between 0.0 and 1.0")
	}
	if config.SeedIssues < 0 {
		return fmt.Errorf("seedIssues cannot be negative")
	}
	if strings.ContainsAny(config.ProjectShort, " -") {
		return fmt.Errorf("projectShort cannot contain spaces or dashes")
	}
	return nil
}
