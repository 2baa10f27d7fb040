package proc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// EnsureKerberos checks for a valid Kerberos ticket and interactively runs
// kinit for a forwardable one when klist reports none. kinit inherits the
// terminal so the user can type their password.
func EnsureKerberos(ctx context.Context, logger *slog.Logger) error {
	if err := exec.CommandContext(ctx, "klist", "-s").Run(); err == nil {
		logger.Debug("valid kerberos ticket found")
		return nil
	}

	logger.Info("no valid kerberos ticket, requesting a forwardable one")

	cmd := exec.CommandContext(ctx, "kinit", "-f")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("kinit failed: %w", err)
	}
	return nil
}
