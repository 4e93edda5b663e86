// CLAUDE:SUMMARY Autofill configuration: YAML file loading with defaults for db, remote tier, browser, memory and HTTP sections.
package autofill

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level autofill configuration.
type Config struct {
	DBPath string `json:"db_path" yaml:"db_path"`

	// ProfileID selects the stored profile used for runs. Default: "default".
	ProfileID string `json:"profile_id" yaml:"profile_id"`

	Remote  RemoteConfig  `json:"remote" yaml:"remote"`
	Browser BrowserConfig `json:"browser" yaml:"browser"`
	Memory  MemoryConfig  `json:"memory" yaml:"memory"`
	HTTP    HTTPConfig    `json:"http" yaml:"http"`

	// RouteWatchInterval is how often the routes table is polled. Default: 2s.
	RouteWatchInterval time.Duration `json:"route_watch_interval" yaml:"route_watch_interval"`

	// Metrics enables per-run metrics in SQLite.
	Metrics bool `json:"metrics" yaml:"metrics"`
}

// RemoteConfig configures the remote tier.
type RemoteConfig struct {
	Service string `json:"service" yaml:"service"`

	// Endpoint, when set, is written to the routes table as an http route
	// for Service on startup.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	Retries          int           `json:"retries" yaml:"retries"`
	BreakerThreshold int           `json:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerReset     time.Duration `json:"breaker_reset" yaml:"breaker_reset"`

	// AllowPrivate lets the endpoint be a loopback or private address.
	AllowPrivate bool `json:"allow_private" yaml:"allow_private"`
}

// BrowserConfig controls Chrome for live pages.
type BrowserConfig struct {
	Remote           string        `json:"remote" yaml:"remote"`
	Stealth          string        `json:"stealth" yaml:"stealth"` // stealth | plain
	NavTimeout       time.Duration `json:"nav_timeout" yaml:"nav_timeout"`
	ResourceBlocking []string      `json:"resource_blocking" yaml:"resource_blocking"`

	// AllowPrivate lets RunPage open loopback and private addresses.
	AllowPrivate bool `json:"allow_private" yaml:"allow_private"`
}

// MemoryConfig tunes the memory tier.
type MemoryConfig struct {
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// HTTPConfig configures the -serve API.
type HTTPConfig struct {
	Addr    string `json:"addr" yaml:"addr"`
	MaxBody int64  `json:"max_body" yaml:"max_body"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("autofill: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("autofill: parse config: %w", err)
	}

	cfg.defaults()
	return &cfg, nil
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "autofill.db"
	}
	if c.ProfileID == "" {
		c.ProfileID = "default"
	}
	if c.Remote.Service == "" {
		c.Remote.Service = "autofill_remote"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "stealth"
	}
	if c.RouteWatchInterval <= 0 {
		c.RouteWatchInterval = 2 * time.Second
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8086"
	}
	if c.HTTP.MaxBody <= 0 {
		c.HTTP.MaxBody = 4 << 20
	}
}

func (c *Config) resolveConfig() ResolveConfig {
	return ResolveConfig{
		Service:          c.Remote.Service,
		Timeout:          c.Remote.Timeout,
		Retries:          c.Remote.Retries,
		BreakerThreshold: c.Remote.BreakerThreshold,
		BreakerReset:     c.Remote.BreakerReset,
		Concurrency:      c.Memory.Concurrency,
	}
}
