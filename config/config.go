package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration.
type Config struct {
	Version string `yaml:"version"`

	// Discovery knobs
	PoolSize         int           `yaml:"pool_size"`
	PerCallTimeout   time.Duration `yaml:"per_call_timeout"`
	PerProbeTimeout  time.Duration `yaml:"per_probe_timeout"`
	RunDeadline      time.Duration `yaml:"run_deadline"`
	SafetyCapItems   int           `yaml:"safety_cap_items_per_probe"`
	DefaultRegions   []string      `yaml:"default_regions"`
	PricingCatalog   string        `yaml:"pricing_catalog_path,omitempty"`

	// Cache
	CacheTTL time.Duration `yaml:"cache_ttl"`
	DataDir  string        `yaml:"data_dir"`

	// Scheduler
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	MetricsPort     int           `yaml:"metrics_port"`

	// Accounts the scheduler keeps warm.
	Accounts []Account `yaml:"accounts,omitempty"`
}

// Account names one tenant account and the role used to reach it.
type Account struct {
	AccountRef string   `yaml:"account_ref"`
	RoleRef    string   `yaml:"role_ref"`
	ExternalID string   `yaml:"external_id"`
	Regions    []string `yaml:"regions,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Version:         "1",
		PoolSize:        16,
		PerCallTimeout:  20 * time.Second,
		PerProbeTimeout: 120 * time.Second,
		RunDeadline:     15 * time.Minute,
		SafetyCapItems:  10000,
		DefaultRegions:  []string{"us-east-1", "eu-north-1"},
		CacheTTL:        time.Hour,
		DataDir:         ".kartta",
		RefreshInterval: time.Hour,
		MetricsPort:     9464,
	}
}

// Load loads configuration from a YAML file, filling unset fields from
// Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}
	if c.RunDeadline <= 0 {
		return fmt.Errorf("run_deadline must be positive")
	}
	if c.SafetyCapItems <= 0 {
		return fmt.Errorf("safety_cap_items_per_probe must be positive")
	}
	if len(c.DefaultRegions) == 0 {
		return fmt.Errorf("default_regions must not be empty")
	}
	for i, account := range c.Accounts {
		if account.AccountRef == "" {
			return fmt.Errorf("accounts[%d]: account_ref is required", i)
		}
		if account.RoleRef == "" {
			return fmt.Errorf("accounts[%d]: role_ref is required", i)
		}
	}
	return nil
}
