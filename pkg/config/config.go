// Package config loads server configuration from the environment and an
// optional YAML file. Environment variables win over file values; the
// NetBox URL and token are required.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is consulted when NETBOX_MCP_CONFIG is unset.
const DefaultFile = "netbox-mcp.yaml"

// Duration is a time.Duration that decodes from YAML strings like "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds everything the server needs at startup.
type Config struct {
	NetBoxURL   string `yaml:"netbox_url"`
	NetBoxToken string `yaml:"netbox_token"`
	VerifySSL   bool   `yaml:"verify_ssl"`

	HTTPTimeout      Duration `yaml:"http_timeout"`
	RetryMaxAttempts int      `yaml:"retry_max_attempts"`
	CatalogTTL       Duration `yaml:"catalog_ttl"`

	Choices struct {
		PageSize   int `yaml:"page_size"`
		MaxResults int `yaml:"max_results"`
	} `yaml:"choices"`

	Jobs struct {
		DefaultLimit int `yaml:"default_limit"`
	} `yaml:"jobs"`
}

func defaults() *Config {
	cfg := &Config{
		VerifySSL:        true,
		HTTPTimeout:      Duration(30 * time.Second),
		RetryMaxAttempts: 3,
		CatalogTTL:       Duration(5 * time.Minute),
	}
	cfg.Choices.PageSize = 100
	cfg.Choices.MaxResults = 5000
	cfg.Jobs.DefaultLimit = 50
	return cfg
}

// Load reads the config file at path (or NETBOX_MCP_CONFIG, or DefaultFile
// if present), then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("NETBOX_MCP_CONFIG")
	}
	explicit := path != ""
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is fine; env vars carry the required settings.
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.NetBoxURL == "" {
		return nil, fmt.Errorf("NETBOX_URL is not configured")
	}
	if cfg.NetBoxToken == "" {
		return nil, fmt.Errorf("NETBOX_TOKEN is not configured")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("NETBOX_URL"); v != "" {
		cfg.NetBoxURL = v
	}
	if v := os.Getenv("NETBOX_TOKEN"); v != "" {
		cfg.NetBoxToken = v
	}
	if v := os.Getenv("NETBOX_VERIFY_SSL"); v != "" {
		b, err := parseBool(v)
		if err != nil {
			// Refusing beats a typo silently disabling TLS verification.
			return fmt.Errorf("NETBOX_VERIFY_SSL: %w", err)
		}
		cfg.VerifySSL = b
	}
	return nil
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	switch strings.ToLower(s) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
