package cluster

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
)

// Copy pushes a local file to the node over the SSH connection using the
// scp sink protocol, so the nodes only need a stock sshd + scp.
func (c *Connection) Copy(ctx context.Context, localPath, remotePath string, mode uint32) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	session, err := c.client.NewSession()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		defer stdin.Close()

		// scp sink header: C<mode> <size> <name>
		if _, err := fmt.Fprintf(stdin, "C%04o %d %s\n", mode, info.Size(), path.Base(remotePath)); err != nil {
			done <- err
			return
		}
		if _, err := io.Copy(stdin, file); err != nil {
			done <- err
			return
		}
		// Trailing NUL terminates the file body
		_, err := stdin.Write([]byte{0})
		done <- err
	}()

	log.Printf("copying '%s' to node %s as '%s'", localPath, c.Node.ID, remotePath)

	runErr := make(chan error, 1)
	go func() {
		runErr <- session.Run(fmt.Sprintf("scp -qt %s", path.Dir(remotePath)))
	}()

	select {
	case err := <-runErr:
		if err != nil {
			return fmt.Errorf("scp to %s: %w", c.Node.ID, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := <-done; err != nil {
		return fmt.Errorf("stream %s: %w", localPath, err)
	}

	return nil
}
