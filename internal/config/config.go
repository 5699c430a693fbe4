package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Strategy selects the reconciliation policy for a pass.
type Strategy string

const (
	StrategyMerge     Strategy = "merge"
	StrategyOverwrite Strategy = "overwrite"
	StrategySelective Strategy = "selective"
)

// Config represents the complete manisyncd configuration
type Config struct {
	Repo     RepoConfig     `yaml:"repo"`
	Manifest ManifestConfig `yaml:"manifest"`
	Sync     SyncConfig     `yaml:"sync"`
	Paths    PathsConfig    `yaml:"paths"`
	Serve    ServeConfig    `yaml:"serve"`
	Watch    WatchConfig    `yaml:"watch"`
}

// RepoConfig locates the git working tree to reconcile against
type RepoConfig struct {
	Root string `yaml:"root"`
}

// ManifestConfig locates the manifest document
type ManifestConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig configures reconciliation behavior
type SyncConfig struct {
	Strategy  Strategy        `yaml:"strategy"`
	Selective SelectiveConfig `yaml:"selective"`
}

// SelectiveConfig scopes the selective strategy
type SelectiveConfig struct {
	Suffixes []string `yaml:"suffixes"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	StateDir string `yaml:"state_dir"`
}

// ServeConfig configures the webhook server
type ServeConfig struct {
	Enabled           bool     `yaml:"enabled"`
	ListenAddr        string   `yaml:"listen_addr"`
	WebhookSecretFile string   `yaml:"webhook_secret_file"`
	AllowedEventTypes []string `yaml:"allowed_event_types"`
	AllowedRefs       []string `yaml:"allowed_refs"`
}

// WatchConfig configures filesystem watch mode
type WatchConfig struct {
	DebounceSeconds int `yaml:"debounce_seconds"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables in string fields
	cfg.expandEnv()

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Repo.Root = os.ExpandEnv(c.Repo.Root)
	c.Manifest.Path = os.ExpandEnv(c.Manifest.Path)
	c.Paths.StateDir = os.ExpandEnv(c.Paths.StateDir)
	c.Serve.ListenAddr = os.ExpandEnv(c.Serve.ListenAddr)
	c.Serve.WebhookSecretFile = os.ExpandEnv(c.Serve.WebhookSecretFile)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Sync.Strategy == "" {
		c.Sync.Strategy = StrategyMerge
	}
	if c.Manifest.Path == "" {
		c.Manifest.Path = "manifest.json"
	}
	if c.Watch.DebounceSeconds == 0 {
		c.Watch.DebounceSeconds = 2
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Repo.Root == "" {
		return fmt.Errorf("repo.root is required")
	}
	if !filepath.IsAbs(c.Repo.Root) {
		return fmt.Errorf("repo.root must be an absolute path: %s", c.Repo.Root)
	}

	// State dir is optional; when set it must be absolute
	if c.Paths.StateDir != "" && !filepath.IsAbs(c.Paths.StateDir) {
		return fmt.Errorf("paths.state_dir must be an absolute path: %s", c.Paths.StateDir)
	}

	// Validate strategy
	switch c.Sync.Strategy {
	case StrategyMerge, StrategyOverwrite, StrategySelective:
		// valid
	default:
		return fmt.Errorf("invalid sync.strategy: %s (must be merge, overwrite, or selective)", c.Sync.Strategy)
	}

	if c.Watch.DebounceSeconds < 0 {
		return fmt.Errorf("watch.debounce_seconds must not be negative")
	}

	// Validate serve config if enabled
	if c.Serve.Enabled {
		if c.Serve.ListenAddr == "" {
			return fmt.Errorf("serve.listen_addr is required when serve is enabled")
		}
		if c.Serve.WebhookSecretFile == "" {
			return fmt.Errorf("serve.webhook_secret_file is required when serve is enabled")
		}
	}

	return nil
}

// ManifestPath returns the absolute path to the manifest document
func (c *Config) ManifestPath() string {
	if filepath.IsAbs(c.Manifest.Path) {
		return c.Manifest.Path
	}
	return filepath.Join(c.Repo.Root, c.Manifest.Path)
}

// StateFilePath returns the path to the baseline tracking file, or an
// empty string when no state dir is configured
func (c *Config) StateFilePath() string {
	if c.Paths.StateDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.StateDir, "state.json")
}
