package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/seqsync/internal/apperr"
)

// UpsertStructure inserts or replaces a catalogue row and its search entry.
func (db *DB) UpsertStructure(s StructureRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("state: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	chainsJSON, _ := json.Marshal(s.Chains)
	_, err = tx.Exec(`
		INSERT INTO structures (path, id, name, checksum, chains, residues, sequence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id         = excluded.id,
			name       = excluded.name,
			checksum   = excluded.checksum,
			chains     = excluded.chains,
			residues   = excluded.residues,
			sequence   = excluded.sequence,
			updated_at = excluded.updated_at
	`, s.Path, s.ID, s.Name, s.Checksum, string(chainsJSON), s.Residues, s.Sequence, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("state: upsert structure: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, s.Path, s.ID, s.Name, s.Sequence); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteStructure removes a catalogue row by manifest path.
func (db *DB) DeleteStructure(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("state: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM structures WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a manifest, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM structures WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("state: get checksum: %w", err)
	}
	return cs, nil
}

const structureColumns = `id, path, name, checksum, chains, residues, updated_at`

func scanStructure(row interface{ Scan(...any) error }) (StructureRow, error) {
	var (
		s      StructureRow
		chains string
	)
	if err := row.Scan(&s.ID, &s.Path, &s.Name, &s.Checksum, &chains, &s.Residues, &s.UpdatedAt); err != nil {
		return s, err
	}
	_ = json.Unmarshal([]byte(chains), &s.Chains)
	return s, nil
}

// GetStructure returns the catalogue row for a structure id.
func (db *DB) GetStructure(id string) (*StructureRow, error) {
	s, err := scanStructure(db.conn.QueryRow(`SELECT `+structureColumns+` FROM structures WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("state: structure %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("state: get structure: %w", err)
	}
	return &s, nil
}

// ListStructures returns one page of the catalogue ordered by id, plus the total count.
func (db *DB) ListStructures(limit, offset int) ([]StructureRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM structures`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("state: count structures: %w", err)
	}
	rows, err := db.conn.Query(`SELECT `+structureColumns+` FROM structures ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("state: list structures: %w", err)
	}
	defer rows.Close()

	out := []StructureRow{}
	for rows.Next() {
		s, err := scanStructure(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// AllChecksums returns path → checksum for every catalogued manifest.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM structures`)
	if err != nil {
		return nil, fmt.Errorf("state: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
