// Package cluster gives the application layer access to the vTDS virtual
// nodes over SSH: connecting to nodes by class, copying files in, running
// commands, and probing TCP reachability from inside the cluster.
package cluster

import (
	"context"
	"fmt"
	"log"
	"time"

	"vtdsapp/internal/domain"
)

// Config holds the SSH settings shared by all node connections
type Config struct {
	User string
	// PrivateKey is the PEM-encoded key material, already read from disk
	PrivateKey []byte
	// Passphrase unlocks an encrypted private key
	Passphrase string
	// Password enables password auth when no key is configured
	Password string

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 30 * time.Second
	}
	return c
}

// Client is the cluster-facing API of the application layer
type Client struct {
	topo *domain.Topology
	cfg  Config
}

// New creates a cluster client over the given topology
func New(topo *domain.Topology, cfg Config) *Client {
	return &Client{topo: topo, cfg: cfg.withDefaults()}
}

// VirtualNodes returns the nodes of the given classes, sorted by ID
func (c *Client) VirtualNodes(classes ...domain.NodeClass) []*domain.VirtualNode {
	return c.topo.NodesByClass(classes...)
}

// Connect opens an SSH connection to a single node
func (c *Client) Connect(ctx context.Context, node *domain.VirtualNode) (*Connection, error) {
	return connect(ctx, node, c.cfg)
}

// ConnectNodes opens SSH connections to every node of the given classes.
// On any failure the already-opened connections are closed.
func (c *Client) ConnectNodes(ctx context.Context, classes ...domain.NodeClass) (*Connections, error) {
	nodes := c.VirtualNodes(classes...)
	conns := &Connections{}

	for _, node := range nodes {
		conn, err := c.Connect(ctx, node)
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("connect to node %s: %w", node.ID, err)
		}
		conns.conns = append(conns.conns, conn)
	}

	return conns, nil
}

// Connections is a set of open node connections
type Connections struct {
	conns []*Connection
}

// All returns the connections in node ID order
func (cs *Connections) All() []*Connection {
	return cs.conns
}

// Close closes every connection, logging failures
func (cs *Connections) Close() {
	for _, conn := range cs.conns {
		if err := conn.Close(); err != nil {
			log.Printf("Error closing connection to %s: %v", conn.Node.ID, err)
		}
	}
	cs.conns = nil
}

// CopyTo copies a local file to the same destination on every node
func (cs *Connections) CopyTo(ctx context.Context, source, dest string, mode uint32) error {
	for _, conn := range cs.conns {
		if err := conn.Copy(ctx, source, dest, mode); err != nil {
			return fmt.Errorf("copy %s to %s: %w", source, conn.Node.ID, err)
		}
	}
	return nil
}

// RunCommand runs the same command on every node
func (cs *Connections) RunCommand(ctx context.Context, cmd string) error {
	for _, conn := range cs.conns {
		output, err := conn.Run(ctx, cmd)
		if err != nil {
			return fmt.Errorf("run on %s: %w (output: %s)", conn.Node.ID, err, output)
		}
	}
	return nil
}
