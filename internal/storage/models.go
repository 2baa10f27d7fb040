package storage

import (
	"strings"
	"time"
)

// Connection is a stored remote-connection profile. Names are unique
// case-insensitively across all connections.
type Connection struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Host        string     `json:"host"`
	User        string     `json:"user"`
	Port        int        `json:"port"`
	Bastion     *string    `json:"bastion,omitempty"`
	BastionUser *string    `json:"bastionUser,omitempty"`
	UseKerberos bool       `json:"useKerberos"`
	KeyPath     *string    `json:"keyPath,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsed    *time.Time `json:"lastUsed,omitempty"`
	Tags        []string   `json:"tags"`
}

// Target returns the user@host pair the connection logs into.
func (c *Connection) Target() string {
	return c.User + "@" + c.Host
}

// HasTag reports whether the connection carries the given tag
// (case-insensitive).
func (c *Connection) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// SessionStatus represents the lifecycle state of a session record.
type SessionStatus string

const (
	// SessionActive is the initial state: the process was launched and has
	// not been observed to end
	SessionActive SessionStatus = "active"
	// SessionCompleted means the process ended with exit code 0
	SessionCompleted SessionStatus = "completed"
	// SessionFailed means the process ended with a non-zero exit code
	SessionFailed SessionStatus = "failed"
	// SessionStale means the recorded process could no longer be confirmed
	// running; its outcome is unknown
	SessionStale SessionStatus = "stale"
)

// IsTerminal returns true if the status is a terminal state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionStale
}

// Session records one launched process on behalf of a connection. Once a
// session reaches a terminal status it is immutable history.
type Session struct {
	ID           string        `json:"id"`
	ConnectionID string        `json:"connectionId"`
	StartedAt    time.Time     `json:"startedAt"`
	EndedAt      *time.Time    `json:"endedAt,omitempty"`
	Status       SessionStatus `json:"status"`
	PID          *int          `json:"pid,omitempty"`
	ExitCode     *int          `json:"exitCode,omitempty"`
}

// Duration returns the session's duration, or zero if it hasn't ended.
func (s *Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// SessionRecord is a session joined with its connection's display name for
// listing. ConnectionName is empty when the connection was removed.
type SessionRecord struct {
	Session
	ConnectionName string `json:"connectionName,omitempty"`
}

// Alias maps a short name to a connection.
type Alias struct {
	Alias        string    `json:"alias"`
	ConnectionID string    `json:"connectionId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AliasEntry is an alias joined with its connection's display name.
type AliasEntry struct {
	Alias          string `json:"alias"`
	ConnectionName string `json:"connectionName"`
}
