package storage

import (
	"database/sql"
	"time"

	bssherrors "bssh/internal/errors"
)

// SessionRepository provides persistence for session records
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = "id, connection_id, started_at, ended_at, status, pid, exit_code"

// Create inserts a new session record.
func (r *SessionRepository) Create(s *Session) error {
	_, err := r.db.Exec(insertSessionSQL, sessionArgs(s)...)
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to create session", err)
	}
	return nil
}

// CreateTx inserts a new session record within an open transaction.
func (r *SessionRepository) CreateTx(tx *sql.Tx, s *Session) error {
	_, err := tx.Exec(insertSessionSQL, sessionArgs(s)...)
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to create session", err)
	}
	return nil
}

const insertSessionSQL = `
	INSERT INTO sessions (` + sessionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

func sessionArgs(s *Session) []interface{} {
	return []interface{}{
		s.ID,
		s.ConnectionID,
		s.StartedAt.UTC().Format(time.RFC3339),
		nullTime(s.EndedAt),
		string(s.Status),
		nullInt(s.PID),
		nullInt(s.ExitCode),
	}
}

// Get returns a session by id, or nil if none exists.
func (r *SessionRepository) Get(id string) (*Session, error) {
	row := r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListByConnection returns every session recorded for a connection, oldest
// first.
func (r *SessionRepository) ListByConnection(connectionID string) ([]Session, error) {
	rows, err := r.db.Query(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE connection_id = ?
		ORDER BY started_at ASC
	`, connectionID)
	if err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to list sessions", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListAll returns every session in the store. The ranking engine aggregates
// per-connection statistics from this snapshot.
func (r *SessionRepository) ListAll() ([]Session, error) {
	rows, err := r.db.Query(`SELECT ` + sessionColumns + ` FROM sessions`)
	if err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to list sessions", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListActive returns all sessions currently recorded as active, joined with
// their connection names. Sessions whose connection was removed keep an
// empty name.
func (r *SessionRepository) ListActive() ([]SessionRecord, error) {
	rows, err := r.db.Query(`
		SELECT s.id, s.connection_id, s.started_at, s.ended_at, s.status, s.pid, s.exit_code,
		       COALESCE(c.name, '')
		FROM sessions s
		LEFT JOIN connections c ON c.id = s.connection_id
		WHERE s.status = 'active'
		ORDER BY s.started_at ASC
	`)
	if err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to list active sessions", err)
	}
	defer rows.Close()

	return collectSessionRecords(rows)
}

// ActiveByConnection returns the active sessions owned by one connection.
func (r *SessionRepository) ActiveByConnection(connectionID string) ([]Session, error) {
	rows, err := r.db.Query(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE connection_id = ? AND status = 'active'
		ORDER BY started_at ASC
	`, connectionID)
	if err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to list active sessions", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// FinishActive atomically transitions an active session to the given
// terminal status. It reports whether this call won the transition: false
// means the session was not active (already terminal, or missing). The
// conditional WHERE clause is what serializes concurrent invocations — the
// loser matches zero rows and must not retry.
func (r *SessionRepository) FinishActive(id string, status SessionStatus, endedAt time.Time, exitCode *int) (bool, error) {
	if !status.IsTerminal() {
		return false, bssherrors.Newf(bssherrors.InvalidState, "cannot transition session to non-terminal status %q", status)
	}

	result, err := r.db.Exec(`
		UPDATE sessions
		SET status = ?, ended_at = ?, exit_code = ?
		WHERE id = ? AND status = 'active'
	`,
		string(status),
		endedAt.UTC().Format(time.RFC3339),
		nullInt(exitCode),
		id,
	)
	if err != nil {
		return false, bssherrors.Wrap(bssherrors.Persistence, "failed to finish session", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, bssherrors.Wrap(bssherrors.Persistence, "failed to finish session", err)
	}

	return n > 0, nil
}

// History returns terminal and active session records, newest first,
// optionally filtered by connection, start time, and failure.
func (r *SessionRepository) History(connectionID string, limit int, since *time.Time, failedOnly bool) ([]SessionRecord, error) {
	query := `
		SELECT s.id, s.connection_id, s.started_at, s.ended_at, s.status, s.pid, s.exit_code,
		       COALESCE(c.name, '')
		FROM sessions s
		LEFT JOIN connections c ON c.id = s.connection_id
		WHERE 1=1
	`
	var args []interface{}

	if connectionID != "" {
		query += " AND s.connection_id = ?"
		args = append(args, connectionID)
	}
	if since != nil {
		query += " AND s.started_at >= ?"
		args = append(args, since.UTC().Format(time.RFC3339))
	}
	if failedOnly {
		query += ` AND (s.status IN ('failed', 'stale')
			OR (s.status = 'completed' AND s.exit_code IS NOT NULL AND s.exit_code != 0))`
	}

	query += " ORDER BY s.started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to query session history", err)
	}
	defer rows.Close()

	return collectSessionRecords(rows)
}

// scanSession scans a single row into a Session. Returns (nil, nil) when the
// row doesn't exist.
func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	var startedAt string
	var endedAt sql.NullString
	var pid, exitCode sql.NullInt64

	err := row.Scan(&s.ID, &s.ConnectionID, &startedAt, &endedAt, &s.Status, &pid, &exitCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to scan session", err)
	}

	fillSession(&s, startedAt, endedAt, pid, exitCode)
	return &s, nil
}

func collectSessions(rows *sql.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		var s Session
		var startedAt string
		var endedAt sql.NullString
		var pid, exitCode sql.NullInt64

		if err := rows.Scan(&s.ID, &s.ConnectionID, &startedAt, &endedAt, &s.Status, &pid, &exitCode); err != nil {
			return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to scan session row", err)
		}

		fillSession(&s, startedAt, endedAt, pid, exitCode)
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to read sessions", err)
	}

	return sessions, nil
}

func collectSessionRecords(rows *sql.Rows) ([]SessionRecord, error) {
	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var startedAt string
		var endedAt sql.NullString
		var pid, exitCode sql.NullInt64

		err := rows.Scan(&rec.ID, &rec.ConnectionID, &startedAt, &endedAt, &rec.Status,
			&pid, &exitCode, &rec.ConnectionName)
		if err != nil {
			return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to scan session row", err)
		}

		fillSession(&rec.Session, startedAt, endedAt, pid, exitCode)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to read sessions", err)
	}

	return records, nil
}

func fillSession(s *Session, startedAt string, endedAt sql.NullString, pid, exitCode sql.NullInt64) {
	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		s.StartedAt = t
	}
	if endedAt.Valid {
		if t, err := time.Parse(time.RFC3339, endedAt.String); err == nil {
			s.EndedAt = &t
		}
	}
	if pid.Valid {
		v := int(pid.Int64)
		s.PID = &v
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		s.ExitCode = &v
	}
}
