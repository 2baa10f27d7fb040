package proc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"bssh/internal/storage"
)

// Spawner builds and supervises ssh processes for stored connections.
type Spawner struct {
	logger *slog.Logger
}

// NewSpawner creates a spawner that logs process events to the given logger.
func NewSpawner(logger *slog.Logger) *Spawner {
	return &Spawner{logger: logger}
}

// Args composes the ssh argument vector for a connection. Bastion hops use
// ProxyJump so the port applies to the target, not the bastion. Extra
// arguments go before the user@host target, letting callers append a remote
// command or additional ssh flags.
func Args(conn *storage.Connection, extra []string) []string {
	args := make([]string, 0, 8+len(extra))

	if conn.UseKerberos {
		// Force a tty, forward the agent, and delegate GSSAPI credentials.
		args = append(args, "-t", "-A", "-K")
	}
	if conn.KeyPath != nil && *conn.KeyPath != "" {
		args = append(args, "-i", *conn.KeyPath)
	}
	args = append(args, "-p", strconv.Itoa(conn.Port))
	if conn.Bastion != nil && *conn.Bastion != "" {
		args = append(args, "-J", bastionTarget(conn))
	}
	args = append(args, extra...)
	args = append(args, conn.Target())

	return args
}

// bastionTarget returns user@bastion, falling back to the connection's own
// user when no dedicated bastion user is set.
func bastionTarget(conn *storage.Connection) string {
	user := conn.User
	if conn.BastionUser != nil && *conn.BastionUser != "" {
		user = *conn.BastionUser
	}
	return user + "@" + *conn.Bastion
}

// Command builds the ssh invocation with stdio attached to the caller's
// terminal.
func (s *Spawner) Command(ctx context.Context, conn *storage.Connection, extra []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "ssh", Args(conn, extra)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Start launches the command and returns the child PID.
func (s *Spawner) Start(cmd *exec.Cmd) (int, error) {
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start ssh: %w", err)
	}
	s.logger.Debug("spawned ssh", "pid", cmd.Process.Pid, "args", cmd.Args)
	return cmd.Process.Pid, nil
}

// Wait blocks until the command exits and returns its exit code. A process
// that died to a signal reports -1, the same convention the session history
// records for abnormal ends.
func (s *Spawner) Wait(cmd *exec.Cmd) int {
	err := cmd.Wait()
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	s.logger.Warn("failed to wait for ssh process", "error", err)
	return -1
}
