// Package storage defines the manifest directory abstraction.
package storage

import "time"

// Metadata describes one stored manifest file.
type Metadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for manifest file operations. Paths are relative
// to the provider root.
type Provider interface {
	// List returns metadata for every manifest under dir.
	List(dir string) ([]Metadata, error)
	// Exists reports whether a file is present at path.
	Exists(path string) (bool, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
