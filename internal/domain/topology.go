package domain

import (
	"fmt"
	"sort"
	"time"
)

// Topology represents the complete demo cluster as seen by the
// application layer
type Topology struct {
	Version     string                     `json:"version" yaml:"version"`
	LastUpdated time.Time                  `json:"last_updated" yaml:"-"`
	Networks    map[string]*VirtualNetwork `json:"networks" yaml:"networks"`
	Nodes       map[string]*VirtualNode    `json:"nodes" yaml:"nodes"`
}

// NewTopology creates an empty topology with initialized maps
func NewTopology() *Topology {
	return &Topology{
		Version:     "1.0",
		LastUpdated: time.Now(),
		Networks:    make(map[string]*VirtualNetwork),
		Nodes:       make(map[string]*VirtualNode),
	}
}

// GetNode returns a node by ID, or nil if not found
func (t *Topology) GetNode(id string) *VirtualNode {
	return t.Nodes[id]
}

// AddNode adds or updates a node
func (t *Topology) AddNode(node *VirtualNode) {
	if node.ID == "" {
		return
	}
	t.Nodes[node.ID] = node
	t.LastUpdated = time.Now()
}

// AddNetwork adds or updates a network
func (t *Topology) AddNetwork(network *VirtualNetwork) {
	if network.Name == "" {
		return
	}
	t.Networks[network.Name] = network
	t.LastUpdated = time.Now()
}

// NodesByClass returns the nodes belonging to any of the given classes,
// sorted by ID. With no classes it returns every node.
func (t *Topology) NodesByClass(classes ...NodeClass) []*VirtualNode {
	want := make(map[NodeClass]bool, len(classes))
	for _, c := range classes {
		want[c] = true
	}

	var result []*VirtualNode
	for _, node := range t.Nodes {
		if len(classes) == 0 || want[node.Class] {
			result = append(result, node)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// NodeIDs returns all node IDs in sorted order
func (t *Topology) NodeIDs() []string {
	ids := make([]string, 0, len(t.Nodes))
	for id := range t.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the topology for structural consistency: every node has
// a valid class, at least one address, only references known networks, and
// only appears on networks whose member classes include its own.
func (t *Topology) Validate() error {
	for name, network := range t.Networks {
		if len(network.Classes) == 0 {
			return fmt.Errorf("network %q has no member classes", name)
		}
		for _, c := range network.Classes {
			if !c.Valid() {
				return fmt.Errorf("network %q references unknown class %q", name, c)
			}
		}
	}

	for id, node := range t.Nodes {
		if !node.Class.Valid() {
			return fmt.Errorf("node %q has unknown class %q", id, node.Class)
		}
		if len(node.Addresses) == 0 {
			return fmt.Errorf("node %q has no network addresses", id)
		}
		if node.SSHHost == "" {
			return fmt.Errorf("node %q has no ssh_host", id)
		}

		seen := make(map[string]bool)
		for _, addr := range node.Addresses {
			network := t.Networks[addr.Network]
			if network == nil {
				return fmt.Errorf("node %q references unknown network %q", id, addr.Network)
			}
			if !network.HasClass(node.Class) {
				return fmt.Errorf("node %q (class %s) is not a member class of network %q",
					id, node.Class, addr.Network)
			}
			if addr.IP == "" {
				return fmt.Errorf("node %q has an empty address on network %q", id, addr.Network)
			}
			if seen[addr.Network] {
				return fmt.Errorf("node %q has duplicate addresses on network %q", id, addr.Network)
			}
			seen[addr.Network] = true
		}
	}

	return nil
}
