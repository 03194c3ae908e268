//go:build sqlite_fts5

package state

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS structures_fts USING fts5(
			path UNINDEXED,
			id,
			name,
			sequence,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, id, name, sequence string) error {
	_, _ = tx.Exec(`DELETE FROM structures_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO structures_fts (path, id, name, sequence) VALUES (?, ?, ?, ?)`,
		path, id, name, sequence)
	if err != nil {
		return fmt.Errorf("state: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM structures_fts WHERE path = ?`, path)
}

// Search performs an FTS5 search over structure ids and names.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, path, name,
		       snippet(structures_fts, 2, '<b>', '</b>', '...', 16)
		FROM structures_fts
		WHERE structures_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("state: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Path, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
