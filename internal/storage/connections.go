package storage

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	bssherrors "bssh/internal/errors"
)

// recencyOrder lists connections most-recently-used first; never-used rows
// sort after used ones, ties break on name for determinism.
const recencyOrder = "ORDER BY last_used IS NULL, last_used DESC, name ASC"

// ConnectionRepository provides CRUD operations for the connections table
type ConnectionRepository struct {
	db *DB
}

// NewConnectionRepository creates a new connection repository
func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = "id, name, host, user, port, bastion, bastion_user, use_kerberos, key_path, created_at, last_used, tags"

// prefixedConnectionColumns qualifies every column with the c alias for joins.
const prefixedConnectionColumns = "c.id, c.name, c.host, c.user, c.port, c.bastion, c.bastion_user, c.use_kerberos, c.key_path, c.created_at, c.last_used, c.tags"

// Create inserts a new connection profile. The name must not collide with an
// existing one, compared case-insensitively.
func (r *ConnectionRepository) Create(conn *Connection) error {
	tags, err := marshalTags(conn.Tags)
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to encode tags", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO connections (`+connectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		conn.ID,
		conn.Name,
		conn.Host,
		conn.User,
		conn.Port,
		nullString(conn.Bastion),
		nullString(conn.BastionUser),
		conn.UseKerberos,
		nullString(conn.KeyPath),
		conn.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(conn.LastUsed),
		tags,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return bssherrors.Newf(bssherrors.InvalidState, "connection named %q already exists", conn.Name)
		}
		return bssherrors.Wrap(bssherrors.Persistence, "failed to create connection", err)
	}

	return nil
}

// Get returns a connection by id, or nil if none exists.
func (r *ConnectionRepository) Get(id string) (*Connection, error) {
	row := r.db.QueryRow(`SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	return scanConnection(row)
}

// GetByName returns a connection by display name (case-insensitive), or nil
// if none exists.
func (r *ConnectionRepository) GetByName(name string) (*Connection, error) {
	row := r.db.QueryRow(`SELECT `+connectionColumns+` FROM connections WHERE name = ? COLLATE NOCASE`, name)
	return scanConnection(row)
}

// List returns all connections, most-recently-used first.
func (r *ConnectionRepository) List() ([]Connection, error) {
	rows, err := r.db.Query(`SELECT ` + connectionColumns + ` FROM connections ` + recencyOrder)
	if err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to list connections", err)
	}
	defer rows.Close()

	return collectConnections(rows)
}

// ListRecent returns the k most-recently-used connections.
func (r *ConnectionRepository) ListRecent(k int) ([]Connection, error) {
	rows, err := r.db.Query(`SELECT `+connectionColumns+` FROM connections `+recencyOrder+` LIMIT ?`, k)
	if err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to list recent connections", err)
	}
	defer rows.Close()

	return collectConnections(rows)
}

// Count returns the number of stored connections.
func (r *ConnectionRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM connections`).Scan(&n); err != nil {
		return 0, bssherrors.Wrap(bssherrors.Persistence, "failed to count connections", err)
	}
	return n, nil
}

// Update rewrites all mutable fields of a connection identified by its id.
func (r *ConnectionRepository) Update(conn *Connection) error {
	tags, err := marshalTags(conn.Tags)
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to encode tags", err)
	}

	result, err := r.db.Exec(`
		UPDATE connections
		SET name = ?, host = ?, user = ?, port = ?, bastion = ?, bastion_user = ?,
		    use_kerberos = ?, key_path = ?, last_used = ?, tags = ?
		WHERE id = ?
	`,
		conn.Name,
		conn.Host,
		conn.User,
		conn.Port,
		nullString(conn.Bastion),
		nullString(conn.BastionUser),
		conn.UseKerberos,
		nullString(conn.KeyPath),
		nullTime(conn.LastUsed),
		tags,
		conn.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return bssherrors.Newf(bssherrors.InvalidState, "connection named %q already exists", conn.Name)
		}
		return bssherrors.Wrap(bssherrors.Persistence, "failed to update connection", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to update connection", err)
	}
	if n == 0 {
		return bssherrors.Newf(bssherrors.NotFound, "connection %s does not exist", conn.ID)
	}

	return nil
}

// TouchLastUsedTx bumps the connection's last_used timestamp within an open
// transaction.
func (r *ConnectionRepository) TouchLastUsedTx(tx *sql.Tx, id string, when time.Time) error {
	_, err := tx.Exec(`UPDATE connections SET last_used = ? WHERE id = ?`,
		when.UTC().Format(time.RFC3339), id)
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to bump last_used", err)
	}
	return nil
}

// Delete removes a connection. Aliases cascade; session rows are retained as
// history. Returns NotFound if no connection has the id.
func (r *ConnectionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to delete connection", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to delete connection", err)
	}
	if n == 0 {
		return bssherrors.Newf(bssherrors.NotFound, "connection %s does not exist", id)
	}

	return nil
}

// scanConnection scans a single row into a Connection. Returns (nil, nil)
// when the row doesn't exist.
func scanConnection(row *sql.Row) (*Connection, error) {
	var conn Connection
	var bastion, bastionUser, keyPath, lastUsed sql.NullString
	var createdAt, tags string

	err := row.Scan(
		&conn.ID,
		&conn.Name,
		&conn.Host,
		&conn.User,
		&conn.Port,
		&bastion,
		&bastionUser,
		&conn.UseKerberos,
		&keyPath,
		&createdAt,
		&lastUsed,
		&tags,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to scan connection", err)
	}

	fillConnection(&conn, bastion, bastionUser, keyPath, createdAt, lastUsed, tags)
	return &conn, nil
}

// collectConnections drains rows into a slice.
func collectConnections(rows *sql.Rows) ([]Connection, error) {
	var conns []Connection
	for rows.Next() {
		var conn Connection
		var bastion, bastionUser, keyPath, lastUsed sql.NullString
		var createdAt, tags string

		err := rows.Scan(
			&conn.ID,
			&conn.Name,
			&conn.Host,
			&conn.User,
			&conn.Port,
			&bastion,
			&bastionUser,
			&conn.UseKerberos,
			&keyPath,
			&createdAt,
			&lastUsed,
			&tags,
		)
		if err != nil {
			return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to scan connection row", err)
		}

		fillConnection(&conn, bastion, bastionUser, keyPath, createdAt, lastUsed, tags)
		conns = append(conns, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to read connections", err)
	}

	return conns, nil
}

func fillConnection(conn *Connection, bastion, bastionUser, keyPath sql.NullString, createdAt string, lastUsed sql.NullString, tags string) {
	conn.Bastion = stringPtr(bastion)
	conn.BastionUser = stringPtr(bastionUser)
	conn.KeyPath = stringPtr(keyPath)

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		conn.CreatedAt = t
	}
	if lastUsed.Valid {
		if t, err := time.Parse(time.RFC3339, lastUsed.String); err == nil {
			conn.LastUsed = &t
		}
	}

	conn.Tags = []string{}
	_ = json.Unmarshal([]byte(tags), &conn.Tags)
}

// Helper functions for nullable fields

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
