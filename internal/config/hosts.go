package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// DefaultHosts maps environment names to tracker base URLs
var DefaultHosts = map[string]string{
	"local":  "http://localhost:8080",
	"remote": "https://youtrack.example.com",
}

// LoadHosts reads a hosts.jsonc file (JSON with comments and trailing commas)
// and merges it over DefaultHosts. An empty path returns the defaults.
func LoadHosts(path string) (map[string]string, error) {
	hosts := make(map[string]string, len(DefaultHosts))
	for k, v := range DefaultHosts {
		hosts[k] = v
	}
	if path == "" {
		return hosts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hosts file: %w", err)
	}

	var fromFile map[string]string
	if err := json.Unmarshal(jsonc.ToJSON(data), &fromFile); err != nil {
		return nil, fmt.Errorf("failed to parse hosts file %s: %w", path, err)
	}
	for k, v := range fromFile {
		hosts[k] = v
	}
	return hosts, nil
}
