package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version"`
	BuildDir string         `yaml:"build_dir"`
	Database DatabaseConfig `yaml:"database"`
	SSH      SSHConfig      `yaml:"ssh"`
	Services ServicesConfig `yaml:"services"`
	Behavior BehaviorConfig `yaml:"behavior"`
	Topology TopologyConfig `yaml:"topology"`
}

// DatabaseConfig holds state store settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SSHConfig holds the credentials used to reach the virtual nodes
type SSHConfig struct {
	User           string    `yaml:"user" validate:"nonzero"`
	PrivateKeyPath string    `yaml:"private_key_path,omitempty"`
	Password       string    `yaml:"password,omitempty"`
	ConnectTimeout *Duration `yaml:"connect_timeout,omitempty"`
	CommandTimeout *Duration `yaml:"command_timeout,omitempty"`
}

// ServicesConfig holds the mock service settings
type ServicesConfig struct {
	FSMPort int `yaml:"fsm_port" validate:"min=1,max=65535"`
	SCSPort int `yaml:"scs_port" validate:"min=1,max=65535"`
}

// BehaviorConfig tunes concurrency and probing
type BehaviorConfig struct {
	ProbeTimeout         *Duration `yaml:"probe_timeout,omitempty"`
	MaxConcurrentProbes  int       `yaml:"max_concurrent_probes,omitempty"`
	MaxConcurrentDeploys int       `yaml:"max_concurrent_deploys,omitempty"`
	VerifyInterval       *Duration `yaml:"verify_interval,omitempty"`
}

// TopologyConfig describes the virtual networks and nodes handed down by
// the lower vTDS layers
type TopologyConfig struct {
	Networks map[string]NetworkConfig `yaml:"networks" validate:"nonzero"`
	Nodes    map[string]NodeConfig    `yaml:"nodes" validate:"nonzero"`
}

// NetworkConfig describes one virtual network
type NetworkConfig struct {
	CIDR        string   `yaml:"cidr" validate:"nonzero"`
	Classes     []string `yaml:"classes" validate:"nonzero"`
	Description string   `yaml:"description,omitempty"`
}

// NodeConfig describes one virtual node
type NodeConfig struct {
	Class     string            `yaml:"class" validate:"nonzero"`
	Addresses map[string]string `yaml:"addresses" validate:"nonzero"` // network -> ip
	SSHHost   string            `yaml:"ssh_host" validate:"nonzero"`
	SSHPort   int               `yaml:"ssh_port,omitempty"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// orDefault returns the wrapped duration or a fallback when unset
func (d *Duration) orDefault(fallback time.Duration) time.Duration {
	if d == nil || *d == 0 {
		return fallback
	}
	return d.Duration()
}
