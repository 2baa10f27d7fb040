// Package proc isolates the operating-system process operations the session
// tracker depends on: liveness probing, termination, and spawning ssh.
package proc

// Probe reports whether a process is still running. Implementations are
// platform-specific and selected once at startup through NewProbe.
type Probe interface {
	Alive(pid int) bool
}

// Terminator stops a running process. force escalates from a polite
// termination request to an immediate kill.
type Terminator interface {
	Terminate(pid int, force bool) error
}
