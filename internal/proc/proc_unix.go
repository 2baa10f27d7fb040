//go:build unix

package proc

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// NewProbe returns the Unix liveness probe.
func NewProbe() Probe { return unixProbe{} }

// NewTerminator returns the Unix signal-based terminator.
func NewTerminator() Terminator { return unixTerminator{} }

type unixProbe struct{}

// Alive sends signal 0, which delivers nothing but fails when the process is
// gone. A permission error still means the process exists, just under
// another user.
func (unixProbe) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

type unixTerminator struct{}

func (unixTerminator) Terminate(pid int, force bool) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}
