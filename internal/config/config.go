package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable the server reads
	EnvPrefix = "VCPKG_MCP"
	// ConfigFileEnv names an optional .env style config file
	ConfigFileEnv = EnvPrefix + "_CONFIG"
	// StorageDisabled as DB_PATH turns the snapshot store off
	StorageDisabled = "off"
)

// Config represents the server configuration
type Config struct {
	GitHub         GitHubConfig
	Registry       RegistryConfig
	Cache          CacheConfig
	Search         SearchConfig
	DBPath         string        // Empty when the snapshot store is disabled
	SnapshotMaxAge time.Duration // Older snapshots are pruned at startup
	Metrics        MetricsConfig
	LogLevel       string
}

// GitHubConfig represents GitHub API client configuration
type GitHubConfig struct {
	Token   string
	APIURL  string
	Timeout time.Duration
}

// RegistryConfig locates the vcpkg registry repository
type RegistryConfig struct {
	Owner string
	Repo  string
	Ref   string
}

// CacheConfig represents response cache configuration
type CacheConfig struct {
	MaxSizeBytes    int64
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
}

// SearchConfig represents search pipeline configuration
type SearchConfig struct {
	CacheTTL    time.Duration
	Concurrency int
}

// MetricsConfig represents the Prometheus endpoint configuration
type MetricsConfig struct {
	Addr string // Empty disables the endpoint
}

// Load reads configuration from the optional config file named by
// VCPKG_MCP_CONFIG and from VCPKG_MCP_* environment variables, which take
// precedence.
func Load() (*Config, error) {
	v := viper.New()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// The conventional unprefixed variable is accepted as a fallback
	if err := v.BindEnv("GITHUB_TOKEN", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind GITHUB_TOKEN: %w", err)
	}

	setDefaults(v)

	cfg := &Config{
		GitHub: GitHubConfig{
			Token:   v.GetString("GITHUB_TOKEN"),
			APIURL:  v.GetString("GITHUB_API_URL"),
			Timeout: v.GetDuration("HTTP_TIMEOUT"),
		},
		Registry: RegistryConfig{
			Owner: v.GetString("REGISTRY_OWNER"),
			Repo:  v.GetString("REGISTRY_REPO"),
			Ref:   v.GetString("REGISTRY_REF"),
		},
		Cache: CacheConfig{
			MaxSizeBytes:    v.GetInt64("CACHE_MAX_SIZE_BYTES"),
			DefaultTTL:      v.GetDuration("CACHE_DEFAULT_TTL"),
			CleanupInterval: v.GetDuration("CACHE_CLEANUP_INTERVAL"),
		},
		Search: SearchConfig{
			CacheTTL:    v.GetDuration("SEARCH_CACHE_TTL"),
			Concurrency: v.GetInt("SEARCH_CONCURRENCY"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("METRICS_ADDR"),
		},
		SnapshotMaxAge: v.GetDuration("SNAPSHOT_MAX_AGE"),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
	}

	dbPath, err := resolveDBPath(v.GetString("DB_PATH"))
	if err != nil {
		return nil, err
	}
	cfg.DBPath = dbPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GITHUB_API_URL", "https://api.github.com")
	v.SetDefault("HTTP_TIMEOUT", 30*time.Second)

	v.SetDefault("REGISTRY_OWNER", "microsoft")
	v.SetDefault("REGISTRY_REPO", "vcpkg")
	v.SetDefault("REGISTRY_REF", "master")

	v.SetDefault("CACHE_MAX_SIZE_BYTES", 100*1024*1024) // 100MB
	v.SetDefault("CACHE_DEFAULT_TTL", time.Hour)
	v.SetDefault("CACHE_CLEANUP_INTERVAL", 5*time.Minute)

	v.SetDefault("SEARCH_CACHE_TTL", 30*time.Minute)
	v.SetDefault("SEARCH_CONCURRENCY", 4)

	v.SetDefault("DB_PATH", filepath.Join("~", ".vcpkg-mcp", "snapshots.db"))
	v.SetDefault("SNAPSHOT_MAX_AGE", 30*24*time.Hour)
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
}

// resolveDBPath expands a leading ~ and maps "off" to the empty string
func resolveDBPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || strings.EqualFold(p, StorageDisabled) {
		return "", nil
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p, nil
}

// StorageEnabled reports whether the snapshot store should be opened
func (c *Config) StorageEnabled() bool {
	return c.DBPath != ""
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error

	if c.GitHub.APIURL == "" {
		errs = append(errs, errors.New("GITHUB_API_URL must not be empty"))
	}
	if c.GitHub.Timeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.Registry.Owner == "" || c.Registry.Repo == "" || c.Registry.Ref == "" {
		errs = append(errs, errors.New("REGISTRY_OWNER, REGISTRY_REPO and REGISTRY_REF must not be empty"))
	}
	if c.Cache.MaxSizeBytes <= 0 {
		errs = append(errs, errors.New("CACHE_MAX_SIZE_BYTES must be positive"))
	}
	if c.Cache.DefaultTTL <= 0 {
		errs = append(errs, errors.New("CACHE_DEFAULT_TTL must be positive"))
	}
	if c.Cache.CleanupInterval <= 0 {
		errs = append(errs, errors.New("CACHE_CLEANUP_INTERVAL must be positive"))
	}
	if c.Search.CacheTTL <= 0 {
		errs = append(errs, errors.New("SEARCH_CACHE_TTL must be positive"))
	}
	if c.Search.Concurrency < 1 || c.Search.Concurrency > 64 {
		errs = append(errs, fmt.Errorf("SEARCH_CONCURRENCY must be between 1 and 64, got %d", c.Search.Concurrency))
	}
	if c.SnapshotMaxAge <= 0 {
		errs = append(errs, errors.New("SNAPSHOT_MAX_AGE must be positive"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
