// Package config provides configuration management for the vTDS demo
// application layer.
//
// The config file is the digested, finalized application configuration
// handed down by the caller: it names the virtual networks and nodes the
// lower layers provisioned, the SSH credentials that reach them, and the
// mock service settings driven into the application layer.
//
// Config file locations (priority order):
//  1. $VTDSAPP_CONFIG
//  2. ./vtdsapp.yaml
//  3. ~/.config/vtdsapp/config.yaml
//  4. /etc/vtdsapp/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v3"

	"vtdsapp/internal/domain"
)

// Behavior defaults
const (
	DefaultProbeTimeout   = 3 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultCommandTimeout = 30 * time.Second
	DefaultVerifyInterval = 5 * time.Minute
	DefaultMaxProbes      = 10
	DefaultMaxDeploys     = 5
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := validator.Validate(&cfg); err != nil {
		return nil, path, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{
		Version:  1,
		BuildDir: "./build",
		Database: DatabaseConfig{Path: "./vtdsapp.db"},
		SSH:      SSHConfig{User: "root"},
		Services: ServicesConfig{FSMPort: 5000, SCSPort: 5000},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.BuildDir == "" {
		c.BuildDir = "./build"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./vtdsapp.db"
	}
	if c.SSH.User == "" {
		c.SSH.User = "root"
	}
	if c.Services.FSMPort == 0 {
		c.Services.FSMPort = 5000
	}
	if c.Services.SCSPort == 0 {
		c.Services.SCSPort = 5000
	}
	if c.Behavior.MaxConcurrentProbes == 0 {
		c.Behavior.MaxConcurrentProbes = DefaultMaxProbes
	}
	if c.Behavior.MaxConcurrentDeploys == 0 {
		c.Behavior.MaxConcurrentDeploys = DefaultMaxDeploys
	}
}

// ProbeTimeout returns the effective probe timeout
func (c *Config) ProbeTimeout() time.Duration {
	return c.Behavior.ProbeTimeout.orDefault(DefaultProbeTimeout)
}

// ConnectTimeout returns the effective SSH connect timeout
func (c *Config) ConnectTimeout() time.Duration {
	return c.SSH.ConnectTimeout.orDefault(DefaultConnectTimeout)
}

// CommandTimeout returns the effective SSH command timeout
func (c *Config) CommandTimeout() time.Duration {
	return c.SSH.CommandTimeout.orDefault(DefaultCommandTimeout)
}

// VerifyInterval returns the effective polling verify interval
func (c *Config) VerifyInterval() time.Duration {
	return c.Behavior.VerifyInterval.orDefault(DefaultVerifyInterval)
}

// BuildTopology converts the topology section into the domain model and
// validates it. A config without a topology is rejected here so a missing
// or wrong config file fails loudly instead of driving the lifecycle
// against zero nodes.
func (c *Config) BuildTopology() (*domain.Topology, error) {
	if len(c.Topology.Networks) == 0 {
		return nil, fmt.Errorf("config defines no virtual networks")
	}
	if len(c.Topology.Nodes) == 0 {
		return nil, fmt.Errorf("config defines no virtual nodes")
	}

	topo := domain.NewTopology()

	for name, net := range c.Topology.Networks {
		classes := make([]domain.NodeClass, 0, len(net.Classes))
		for _, raw := range net.Classes {
			class, err := domain.ParseNodeClass(raw)
			if err != nil {
				return nil, fmt.Errorf("network %q: %w", name, err)
			}
			classes = append(classes, class)
		}
		topo.AddNetwork(&domain.VirtualNetwork{
			Name:        name,
			CIDR:        net.CIDR,
			Classes:     classes,
			Description: net.Description,
		})
	}

	for id, nc := range c.Topology.Nodes {
		class, err := domain.ParseNodeClass(nc.Class)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}

		node := domain.NewVirtualNode(id, class)
		node.SSHHost = nc.SSHHost
		if nc.SSHPort != 0 {
			node.SSHPort = nc.SSHPort
		}
		for network, ip := range nc.Addresses {
			node.Addresses = append(node.Addresses, domain.Address{Network: network, IP: ip})
		}
		topo.AddNode(node)
	}

	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}

	return topo, nil
}
