//go:build windows

package proc

import (
	"fmt"
	"os"
)

// NewProbe returns the Windows liveness probe.
func NewProbe() Probe { return windowsProbe{} }

// NewTerminator returns the Windows terminator. Windows offers no graceful
// termination signal for console children, so force changes nothing.
func NewTerminator() Terminator { return windowsTerminator{} }

type windowsProbe struct{}

// Alive reports whether a process handle can be opened; os.FindProcess only
// succeeds for live processes on Windows.
func (windowsProbe) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	process.Release()
	return true
}

type windowsTerminator struct{}

func (windowsTerminator) Terminate(pid int, force bool) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Kill(); err != nil {
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}
	return nil
}
