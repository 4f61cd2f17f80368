package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func yamlUnmarshal(s string, out interface{}) error {
	return yaml.Unmarshal([]byte(s), out)
}

const sampleConfig = `
version: 1
build_dir: ./build
database:
  path: ./state.db
ssh:
  user: root
  private_key_path: /root/.ssh/id_ed25519
  connect_timeout: 5s
services:
  fsm_port: 5000
  scs_port: 5001
behavior:
  probe_timeout: 2s
  max_concurrent_probes: 4
topology:
  networks:
    scs-net:
      cidr: 10.10.0.0/24
      classes: [scs, non-scs]
    fsm-net:
      cidr: 10.20.0.0/24
      classes: [fsm, non-fsm]
    cross-net:
      cidr: 10.30.0.0/24
      classes: [scs, fsm]
  nodes:
    scs-0:
      class: scs
      ssh_host: 192.168.0.10
      addresses:
        scs-net: 10.10.0.10
        cross-net: 10.30.0.10
    nonscs-0:
      class: non-scs
      ssh_host: 192.168.0.11
      addresses:
        scs-net: 10.10.0.20
    fsm-0:
      class: fsm
      ssh_host: 192.168.0.12
      addresses:
        fsm-net: 10.20.0.10
        cross-net: 10.30.0.20
    nonfsm-0:
      class: non-fsm
      ssh_host: 192.168.0.13
      addresses:
        fsm-net: 10.20.0.20
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vtdsapp.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, loadedPath, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if loadedPath != path {
		t.Errorf("loaded path = %q, want %q", loadedPath, path)
	}

	if cfg.Services.FSMPort != 5000 || cfg.Services.SCSPort != 5001 {
		t.Errorf("service ports = %d/%d, want 5000/5001",
			cfg.Services.FSMPort, cfg.Services.SCSPort)
	}
	if cfg.ProbeTimeout() != 2*time.Second {
		t.Errorf("ProbeTimeout() = %s, want 2s", cfg.ProbeTimeout())
	}
	if cfg.ConnectTimeout() != 5*time.Second {
		t.Errorf("ConnectTimeout() = %s, want 5s", cfg.ConnectTimeout())
	}
	// Unset values fall back
	if cfg.CommandTimeout() != DefaultCommandTimeout {
		t.Errorf("CommandTimeout() = %s, want default %s", cfg.CommandTimeout(), DefaultCommandTimeout)
	}
	if cfg.Behavior.MaxConcurrentProbes != 4 {
		t.Errorf("MaxConcurrentProbes = %d, want 4", cfg.Behavior.MaxConcurrentProbes)
	}
	if cfg.Behavior.MaxConcurrentDeploys != DefaultMaxDeploys {
		t.Errorf("MaxConcurrentDeploys = %d, want default %d",
			cfg.Behavior.MaxConcurrentDeploys, DefaultMaxDeploys)
	}
}

func TestBuildTopology(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}

	topo, err := cfg.BuildTopology()
	if err != nil {
		t.Fatalf("BuildTopology() error: %v", err)
	}

	if len(topo.Nodes) != 4 {
		t.Errorf("topology has %d nodes, want 4", len(topo.Nodes))
	}
	if len(topo.Networks) != 3 {
		t.Errorf("topology has %d networks, want 3", len(topo.Networks))
	}

	scs := topo.GetNode("scs-0")
	if scs == nil {
		t.Fatal("scs-0 missing from topology")
	}
	if scs.AddressOn("cross-net") != "10.30.0.10" {
		t.Errorf("scs-0 cross-net address = %q, want 10.30.0.10", scs.AddressOn("cross-net"))
	}
	if scs.SSHHost != "192.168.0.10" {
		t.Errorf("scs-0 ssh host = %q", scs.SSHHost)
	}
}

func TestBuildTopologyRejectsBadClass(t *testing.T) {
	bad := strings.Replace(sampleConfig, "class: non-fsm", "class: bystander", 1)
	path := writeConfig(t, bad)

	cfg, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}

	if _, err := cfg.BuildTopology(); err == nil {
		t.Fatal("BuildTopology() should reject unknown class")
	}
}

func TestBuildTopologyRequiresTopology(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := cfg.BuildTopology(); err == nil {
		t.Fatal("BuildTopology() should reject a config without a topology")
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadFromPath() should fail for missing file")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Database.Path != "./vtdsapp.db" {
		t.Errorf("Database.Path = %q, want ./vtdsapp.db", cfg.Database.Path)
	}
	if cfg.SSH.User != "root" {
		t.Errorf("SSH.User = %q, want root", cfg.SSH.User)
	}
	if cfg.Services.FSMPort != 5000 || cfg.Services.SCSPort != 5000 {
		t.Errorf("service ports = %d/%d, want 5000/5000",
			cfg.Services.FSMPort, cfg.Services.SCSPort)
	}
	if cfg.VerifyInterval() != DefaultVerifyInterval {
		t.Errorf("VerifyInterval() = %s, want %s", cfg.VerifyInterval(), DefaultVerifyInterval)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, _, err := LoadFromPath(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	cfg.Services.SCSPort = 5050
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() after Save error: %v", err)
	}
	if loaded.Services.SCSPort != 5050 {
		t.Errorf("round-tripped SCSPort = %d, want 5050", loaded.Services.SCSPort)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"probe_timeout: 30s", 30 * time.Second, false},
		{"probe_timeout: 5m", 5 * time.Minute, false},
		{"probe_timeout: nonsense", 0, true},
	}

	for _, tt := range tests {
		var b BehaviorConfig
		err := yamlUnmarshal(tt.input, &b)
		if (err != nil) != tt.wantErr {
			t.Errorf("unmarshal %q error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && b.ProbeTimeout.Duration() != tt.want {
			t.Errorf("unmarshal %q = %s, want %s", tt.input, b.ProbeTimeout.Duration(), tt.want)
		}
	}
}
