package domain

import "time"

// NodeStatus represents the deployment state of a virtual node
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"   // Known from topology, nothing deployed
	NodeStatusDeploying NodeStatus = "deploying" // Deploy script currently running
	NodeStatusDeployed  NodeStatus = "deployed"  // Workload installed and started
	NodeStatusFailed    NodeStatus = "failed"    // Last deploy or remove attempt failed
	NodeStatusRemoved   NodeStatus = "removed"   // Workload removed
)

// Address is a node's IP on one virtual network
type Address struct {
	Network string `json:"network" yaml:"network"`
	IP      string `json:"ip" yaml:"ip"`
}

// VirtualNode represents a virtual node provisioned by the lower vTDS layers
type VirtualNode struct {
	ID        string    `json:"id" yaml:"id"`
	Class     NodeClass `json:"class" yaml:"class"`
	Addresses []Address `json:"addresses" yaml:"addresses"`

	// SSHHost is the control address the application layer uses to reach
	// the node, typically on a management network outside the demo
	// topology. SSHPort defaults to 22.
	SSHHost string `json:"ssh_host" yaml:"ssh_host"`
	SSHPort int    `json:"ssh_port,omitempty" yaml:"ssh_port,omitempty"`

	Status       NodeStatus `json:"status"`
	LastDeployed *time.Time `json:"last_deployed,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewVirtualNode creates a node with initialized defaults
func NewVirtualNode(id string, class NodeClass) *VirtualNode {
	now := time.Now()
	return &VirtualNode{
		ID:        id,
		Class:     class,
		SSHPort:   22,
		Status:    NodeStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddressOn returns the node's IP on the named network, or "" if it has
// no interface there
func (n *VirtualNode) AddressOn(network string) string {
	for _, addr := range n.Addresses {
		if addr.Network == network {
			return addr.IP
		}
	}
	return ""
}

// Networks returns the names of all networks this node has an address on
func (n *VirtualNode) Networks() []string {
	names := make([]string, 0, len(n.Addresses))
	for _, addr := range n.Addresses {
		names = append(names, addr.Network)
	}
	return names
}

// SSHAddr returns the host the operator connects to, with the default
// port applied
func (n *VirtualNode) SSHAddr() (string, int) {
	port := n.SSHPort
	if port == 0 {
		port = 22
	}
	return n.SSHHost, port
}
