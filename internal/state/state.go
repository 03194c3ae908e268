package state

import "time"

// Store defines the persistence operations seqsync needs.
// Consumers should depend on this interface rather than the concrete *DB type.
type Store interface {
	UpsertStructure(s StructureRow) error
	DeleteStructure(path string) error
	GetChecksum(path string) (string, error)
	GetStructure(id string) (*StructureRow, error)
	ListStructures(limit, offset int) ([]StructureRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)

	Put(key, value string) error
	Get(key string) (string, bool, error)
	Delete(key string) error

	RecordOperation(op Operation) error
	RecentOperations(structureID string, limit int) ([]Operation, error)

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// StructureRow is one catalogued manifest.
type StructureRow struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	Chains    []string  `json:"chains"`
	Residues  int       `json:"residues"`
	UpdatedAt time.Time `json:"updated_at"`
	// Sequence is the concatenated one-letter sequence, stored for search only.
	Sequence string `json:"-"`
}

// SearchResult is one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

// Operation is one entry of the visibility/action log.
type Operation struct {
	ID          int64     `json:"id"`
	StructureID string    `json:"structure_id"`
	Action      string    `json:"action"`
	Target      string    `json:"target"`
	Success     bool      `json:"success"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
