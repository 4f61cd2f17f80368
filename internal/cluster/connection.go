package cluster

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"vtdsapp/internal/domain"
)

// Connection is an open SSH connection to one virtual node
type Connection struct {
	Node   *domain.VirtualNode
	client *ssh.Client
	cfg    Config
}

// connect establishes an SSH connection to the node's control address.
// Supports both key-based and password authentication.
func connect(ctx context.Context, node *domain.VirtualNode, cfg Config) (*Connection, error) {
	sshCfg, err := buildSSHConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build SSH config: %w", err)
	}

	host, port := node.SSHAddr()
	addr := fmt.Sprintf("%s:%d", host, port)

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("establish SSH connection: %w", err)
	}

	return &Connection{
		Node:   node,
		client: ssh.NewClient(sshConn, chans, reqs),
		cfg:    cfg,
	}, nil
}

// buildSSHConfig creates an SSH client config from the cluster config
func buildSSHConfig(cfg Config) (*ssh.ClientConfig, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("ssh user not configured")
	}

	var auth []ssh.AuthMethod

	if len(cfg.PrivateKey) > 0 {
		var signer ssh.Signer
		var err error
		if cfg.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(cfg.PrivateKey, []byte(cfg.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(cfg.PrivateKey)
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	if len(auth) == 0 {
		return nil, fmt.Errorf("no SSH auth configured (need private key or password)")
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.ConnectTimeout,
	}, nil
}

// Run executes a command on the node and returns its combined output
func (c *Connection) Run(ctx context.Context, cmd string) (string, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	done := make(chan error, 1)
	var output []byte

	go func() {
		var runErr error
		output, runErr = session.CombinedOutput(cmd)
		done <- runErr
	}()

	select {
	case err := <-done:
		if err != nil {
			// Non-zero exit still produced output worth returning
			if exitErr, ok := err.(*ssh.ExitError); ok {
				return string(output), exitErr
			}
			return "", fmt.Errorf("command failed: %w", err)
		}
		return string(output), nil
	case <-time.After(c.cfg.CommandTimeout):
		session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("command timeout after %s", c.cfg.CommandTimeout)
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	}
}

// ProbeTCP attempts a TCP connect from this node to addr:port and reports
// whether the target accepted. The probe runs on the node itself so the
// observation reflects the virtual network, not the operator's vantage.
func (c *Connection) ProbeTCP(ctx context.Context, addr string, port int, timeout time.Duration) (bool, time.Duration, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	// /dev/tcp connect check; exit 0 means the target accepted
	cmd := fmt.Sprintf("timeout %d bash -c 'exec 3<>/dev/tcp/%s/%d' 2>/dev/null", secs, addr, port)

	start := time.Now()
	_, err := c.Run(ctx, cmd)
	elapsed := time.Since(start)

	if err == nil {
		return true, elapsed, nil
	}
	if _, ok := err.(*ssh.ExitError); ok {
		// Command ran, connect was refused or timed out
		return false, elapsed, nil
	}
	return false, 0, err
}

// Close closes the SSH connection
func (c *Connection) Close() error {
	return c.client.Close()
}
