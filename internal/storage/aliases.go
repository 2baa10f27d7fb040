package storage

import (
	"time"

	bssherrors "bssh/internal/errors"
)

// AliasRepository provides persistence for connection aliases
type AliasRepository struct {
	db *DB
}

// NewAliasRepository creates a new alias repository
func NewAliasRepository(db *DB) *AliasRepository {
	return &AliasRepository{db: db}
}

// Set creates or repoints an alias to a connection.
func (r *AliasRepository) Set(alias, connectionID string) error {
	_, err := r.db.Exec(`
		INSERT INTO aliases (alias, connection_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(alias) DO UPDATE SET connection_id = excluded.connection_id
	`, alias, connectionID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to set alias", err)
	}
	return nil
}

// Resolve returns the connection an alias points at, or nil if the alias is
// unknown. Alias comparison is case-insensitive.
func (r *AliasRepository) Resolve(alias string) (*Connection, error) {
	row := r.db.QueryRow(`
		SELECT `+prefixedConnectionColumns+`
		FROM aliases a
		JOIN connections c ON c.id = a.connection_id
		WHERE a.alias = ? COLLATE NOCASE
	`, alias)
	return scanConnection(row)
}

// Delete removes an alias. Returns NotFound when the alias is unknown.
func (r *AliasRepository) Delete(alias string) error {
	result, err := r.db.Exec(`DELETE FROM aliases WHERE alias = ? COLLATE NOCASE`, alias)
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to delete alias", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return bssherrors.Wrap(bssherrors.Persistence, "failed to delete alias", err)
	}
	if n == 0 {
		return bssherrors.Newf(bssherrors.NotFound, "alias %q does not exist", alias)
	}

	return nil
}

// List returns all aliases with their target connection names.
func (r *AliasRepository) List() ([]AliasEntry, error) {
	rows, err := r.db.Query(`
		SELECT a.alias, c.name
		FROM aliases a
		JOIN connections c ON c.id = a.connection_id
		ORDER BY a.alias ASC
	`)
	if err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to list aliases", err)
	}
	defer rows.Close()

	var entries []AliasEntry
	for rows.Next() {
		var e AliasEntry
		if err := rows.Scan(&e.Alias, &e.ConnectionName); err != nil {
			return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to scan alias row", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, bssherrors.Wrap(bssherrors.Persistence, "failed to read aliases", err)
	}

	return entries, nil
}
