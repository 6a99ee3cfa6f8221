package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/studiowebux/trackload/internal/types"
)

const (
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755

	// NotPassed is the sentinel used for options that were not provided
	NotPassed = "NOT_PASSED"

	DefaultEnv         = "remote"
	DefaultStageLength = 60 * time.Second
	DefaultHTTPTimeout = 10 * time.Second // overrides the 60s client default
	DefaultFeedsDir    = "feeds"
)

var (
	// ErrUnknownEnv is returned when ENV names no host and BASE_URL is not set
	ErrUnknownEnv = errors.New("unknown environment")
)

// Config is the fully resolved runtime configuration.
// It is built once at startup and passed to constructors explicitly.
type Config struct {
	Env          string
	BaseURL      string
	RampUp       time.Duration
	HoldRate     time.Duration
	TearDown     time.Duration
	XLoad        float64
	Token        string // admin token for user creation
	HTTPTimeout  time.Duration
	FeedsDir     string
	DatabasePath string // empty means ~/.trackload/trackload.db
	MetricsAddr  string
	TLS          types.TLSConfig
	LogLevel     string
	Profile      *Profile
}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	EnvFile     string // .env file; missing default file is not an error
	HostsFile   string // hosts.jsonc; built-in hosts when empty
	ProfileFile string // YAML load profile; built-in profile when empty
	DefaultEnv  string // ENV fallback, "remote" when empty
}

// Lookup resolves an environment variable
type Lookup func(key string) (string, bool)

// Load builds a Config from the process environment, after loading the
// optional .env file into it.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if opts.EnvFile != "" || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	return LoadFrom(os.LookupEnv, opts)
}

// LoadFrom builds a Config using lookup for every environment option
func LoadFrom(lookup Lookup, opts LoadOptions) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	defaultEnv := opts.DefaultEnv
	if defaultEnv == "" {
		defaultEnv = DefaultEnv
	}

	cfg := &Config{
		Env:          get("ENV", defaultEnv),
		Token:        get("TOKEN", NotPassed),
		FeedsDir:     get("FEEDS_DIR", DefaultFeedsDir),
		DatabasePath: get("DB_PATH", ""),
		MetricsAddr:  get("METRICS_ADDR", ""),
		LogLevel:     get("LOG_LEVEL", "info"),
		TLS: types.TLSConfig{
			CertFile: get("TLS_CERT_FILE", ""),
			KeyFile:  get("TLS_KEY_FILE", ""),
			CAFile:   get("TLS_CA_FILE", ""),
		},
	}

	hosts, err := LoadHosts(opts.HostsFile)
	if err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(get("BASE_URL", hosts[cfg.Env]), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w %q: set BASE_URL or add it to the hosts file", ErrUnknownEnv, cfg.Env)
	}

	durations := []struct {
		key  string
		dest *time.Duration
		def  time.Duration
	}{
		{"RAMP_UP", &cfg.RampUp, DefaultStageLength},
		{"HOLD_RATE", &cfg.HoldRate, DefaultStageLength},
		{"TEAR_DOWN", &cfg.TearDown, DefaultStageLength},
		{"HTTP_TIMEOUT", &cfg.HTTPTimeout, DefaultHTTPTimeout},
	}
	for _, d := range durations {
		raw := get(d.key, "")
		if raw == "" {
			*d.dest = d.def
			continue
		}
		parsed, err := ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = parsed
	}

	cfg.XLoad = 1
	if raw := get("X_LOAD", ""); raw != "" {
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid X_LOAD: %w", err)
		}
		cfg.XLoad = x
	}

	if raw := get("TLS_INSECURE", ""); raw != "" {
		insecure, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TLS_INSECURE: %w", err)
		}
		cfg.TLS.InsecureSkipVerify = insecure
	}

	profile := DefaultProfile()
	if opts.ProfileFile != "" {
		profile, err = LoadProfile(opts.ProfileFile)
		if err != nil {
			return nil, err
		}
	}
	cfg.Profile = profile

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RampUp < 0 || c.HoldRate < 0 || c.TearDown < 0 {
		return fmt.Errorf("stage durations cannot be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be greater than 0")
	}
	if c.XLoad <= 0 || math.IsNaN(c.XLoad) || math.IsInf(c.XLoad, 0) {
		return fmt.Errorf("X_LOAD must be a positive number")
	}
	if c.Profile == nil {
		return fmt.Errorf("load profile is required")
	}
	return c.Profile.Validate()
}

// TargetRate returns the scaled per-time-unit iteration target for a scenario
func (c *Config) TargetRate(scenario string) int {
	sp, ok := c.Profile.Scenarios[scenario]
	if !ok {
		return 0
	}
	return int(math.Ceil(float64(sp.Rate) * c.XLoad))
}

// HasAdminToken reports whether TOKEN was provided
func (c *Config) HasAdminToken() bool {
	return c.Token != "" && c.Token != NotPassed
}

// ParseDuration accepts Go duration strings and bare integers (seconds)
func ParseDuration(raw string) (time.Duration, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

// DefaultDatabasePath returns ~/.trackload/trackload.db
func DefaultDatabasePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".trackload", "trackload.db"), nil
}

// ResolveDatabasePath returns path, or the default when empty, after
// creating its parent directory. Only called once a store is opened.
func ResolveDatabasePath(path string) (string, error) {
	if path == "" {
		var err error
		if path, err = DefaultDatabasePath(); err != nil {
			return "", err
		}
	}
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path, nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return path, nil
}
