package cluster

import (
	"context"
	"strings"
	"testing"
	"time"

	"vtdsapp/internal/domain"
)

// testTopology holds two scs nodes whose SSH endpoint points at a local
// port nothing listens on, so connection attempts fail fast
func testTopology() *domain.Topology {
	topo := domain.NewTopology()
	topo.AddNetwork(&domain.VirtualNetwork{
		Name: "scs-net", CIDR: "10.10.0.0/24",
		Classes: []domain.NodeClass{domain.ClassSCS},
	})

	for id, ip := range map[string]string{"scs-0": "10.10.0.10", "scs-1": "10.10.0.11"} {
		node := domain.NewVirtualNode(id, domain.ClassSCS)
		node.SSHHost = "127.0.0.1"
		node.SSHPort = 9
		node.Addresses = []domain.Address{{Network: "scs-net", IP: ip}}
		topo.AddNode(node)
	}
	return topo
}

func TestVirtualNodesFiltersByClass(t *testing.T) {
	client := New(testTopology(), Config{User: "root", Password: "x"})

	if got := len(client.VirtualNodes(domain.ClassSCS)); got != 2 {
		t.Errorf("VirtualNodes(scs) = %d nodes, want 2", got)
	}
	if got := len(client.VirtualNodes(domain.ClassFSM)); got != 0 {
		t.Errorf("VirtualNodes(fsm) = %d nodes, want 0", got)
	}
	if got := len(client.VirtualNodes()); got != 2 {
		t.Errorf("VirtualNodes() = %d nodes, want 2", got)
	}
}

func TestConnectNodesUnreachable(t *testing.T) {
	client := New(testTopology(), Config{
		User:           "root",
		Password:       "x",
		ConnectTimeout: time.Second,
	})

	conns, err := client.ConnectNodes(context.Background(), domain.ClassSCS)
	if err == nil {
		conns.Close()
		t.Fatal("ConnectNodes() should fail when the nodes are unreachable")
	}
	if !strings.Contains(err.Error(), "connect to node") {
		t.Errorf("error = %q, want connect failure naming the node", err)
	}
}

func TestEmptyConnectionSet(t *testing.T) {
	client := New(testTopology(), Config{User: "root", Password: "x"})
	ctx := context.Background()

	conns, err := client.ConnectNodes(ctx, domain.ClassFSM)
	if err != nil {
		t.Fatalf("ConnectNodes() with no matching nodes: %v", err)
	}
	defer conns.Close()

	if got := len(conns.All()); got != 0 {
		t.Errorf("connection set has %d entries, want 0", got)
	}
	if err := conns.CopyTo(ctx, "src", "/root/dest", 0o755); err != nil {
		t.Errorf("CopyTo() on empty set: %v", err)
	}
	if err := conns.RunCommand(ctx, "true"); err != nil {
		t.Errorf("RunCommand() on empty set: %v", err)
	}
}

func TestBuildSSHConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"no user", Config{Password: "x"}, "user"},
		{"no auth", Config{User: "root"}, "auth"},
		{"bad key", Config{User: "root", PrivateKey: []byte("not a key")}, "parse private key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildSSHConfig(tt.cfg)
			if err == nil {
				t.Fatal("buildSSHConfig() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
