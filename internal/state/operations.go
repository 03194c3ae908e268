package state

import (
	"fmt"
	"time"
)

// RecordOperation appends op to the log. A zero CreatedAt is set to now.
func (db *DB) RecordOperation(op Operation) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO operations (structure_id, action, target, success, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, op.StructureID, op.Action, op.Target, op.Success, op.Reason, op.CreatedAt)
	if err != nil {
		return fmt.Errorf("state: record operation: %w", err)
	}
	return nil
}

// RecentOperations returns the newest operations first. An empty structureID
// returns operations for every structure.
func (db *DB) RecentOperations(structureID string, limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, structure_id, action, target, success, reason, created_at
		FROM operations
		WHERE ? = '' OR structure_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, structureID, structureID, limit)
	if err != nil {
		return nil, fmt.Errorf("state: recent operations: %w", err)
	}
	defer rows.Close()

	out := []Operation{}
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.StructureID, &op.Action, &op.Target, &op.Success, &op.Reason, &op.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}
