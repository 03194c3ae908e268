// Package catalog keeps the structure manifest directory and its SQLite
// catalogue in step, and opens manifests by structure id.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/checksum"
	"github.com/starford/seqsync/internal/parser"
	"github.com/starford/seqsync/internal/state"
	"github.com/starford/seqsync/internal/storage"
	"github.com/starford/seqsync/internal/structure"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven catalogue change.
type EventCallback func(kind string, path string)

// Detail is a catalogue row together with the raw manifest.
type Detail struct {
	state.StructureRow
	Content string `json:"content"`
}

// Catalog coordinates manifest storage and the catalogue tables.
type Catalog struct {
	store  storage.Provider
	db     state.Store
	logger *slog.Logger
}

var _ structure.Source = (*Catalog)(nil)

// New creates a catalog. A nil logger uses slog.Default().
func New(store storage.Provider, db state.Store, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: store, db: db, logger: logger}
}

// Open implements structure.Source.
func (c *Catalog) Open(_ context.Context, id string) (*parser.Structure, error) {
	row, err := c.db.GetStructure(id)
	if err != nil {
		return nil, err
	}
	data, err := c.read(row.Path)
	if err != nil {
		return nil, err
	}
	return parser.Parse(data)
}

// Get returns the catalogue row and manifest text for id.
func (c *Catalog) Get(_ context.Context, id string) (*Detail, error) {
	row, err := c.db.GetStructure(id)
	if err != nil {
		return nil, err
	}
	data, err := c.read(row.Path)
	if err != nil {
		return nil, err
	}
	return &Detail{StructureRow: *row, Content: string(data)}, nil
}

// Create writes a new manifest named after its id and catalogues it.
func (c *Catalog) Create(_ context.Context, content []byte) (*Detail, error) {
	st, err := parser.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w: %w", apperr.ErrInvalidArgument, err)
	}
	if _, err := c.db.GetStructure(st.ID); err == nil {
		return nil, fmt.Errorf("catalog: structure %q: %w", st.ID, apperr.ErrAlreadyExists)
	}
	path := st.ID + ".yaml"
	if ok, err := c.store.Exists(path); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("catalog: %s: %w", path, apperr.ErrAlreadyExists)
	}
	if err := c.store.Write(path, content); err != nil {
		return nil, err
	}
	return c.indexed(path, content)
}

// Update replaces the manifest of id. When ifMatch is set it must equal the
// checksum of the stored manifest. The manifest id cannot change.
func (c *Catalog) Update(_ context.Context, id string, content []byte, ifMatch string) (*Detail, error) {
	row, err := c.db.GetStructure(id)
	if err != nil {
		return nil, err
	}
	existing, err := c.read(row.Path)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, fmt.Errorf("catalog: %s: %w", id, apperr.ErrConflict)
	}
	st, err := parser.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w: %w", apperr.ErrInvalidArgument, err)
	}
	if st.ID != id {
		return nil, fmt.Errorf("catalog: manifest id %q does not match %q: %w", st.ID, id, apperr.ErrInvalidArgument)
	}
	if err := c.store.Write(row.Path, content); err != nil {
		return nil, err
	}
	return c.indexed(row.Path, content)
}

// Move relocates the manifest of id within the structures directory.
func (c *Catalog) Move(ctx context.Context, id, newPath string) (*Detail, error) {
	if !storage.IsManifest(newPath) {
		return nil, fmt.Errorf("catalog: %s is not a manifest path: %w", newPath, apperr.ErrInvalidArgument)
	}
	row, err := c.db.GetStructure(id)
	if err != nil {
		return nil, err
	}
	if row.Path == newPath {
		return c.Get(ctx, id)
	}
	if err := c.store.Move(row.Path, newPath); err != nil {
		return nil, err
	}
	if err := c.db.DeleteStructure(row.Path); err != nil {
		return nil, err
	}
	data, err := c.read(newPath)
	if err != nil {
		return nil, err
	}
	return c.indexed(newPath, data)
}

// Delete removes the manifest of id from disk and the catalogue.
func (c *Catalog) Delete(_ context.Context, id string) error {
	row, err := c.db.GetStructure(id)
	if err != nil {
		return err
	}
	if err := c.store.Delete(row.Path); err != nil {
		return err
	}
	return c.db.DeleteStructure(row.Path)
}

// List returns one page of the catalogue.
func (c *Catalog) List(_ context.Context, limit, offset int) ([]state.StructureRow, int, error) {
	return c.db.ListStructures(limit, offset)
}

// Search delegates to the catalogue search.
func (c *Catalog) Search(_ context.Context, query string, limit int) ([]state.SearchResult, error) {
	return c.db.Search(query, limit)
}

func (c *Catalog) read(path string) ([]byte, error) {
	data, err := c.store.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("catalog: %s: %w", path, apperr.ErrNotFound)
	}
	return data, err
}

func (c *Catalog) indexed(path string, data []byte) (*Detail, error) {
	row, err := IndexFile(c.db, path, data)
	if err != nil {
		return nil, err
	}
	return &Detail{StructureRow: row, Content: string(data)}, nil
}

// IndexFile parses a manifest and upserts its catalogue row.
func IndexFile(db state.Store, path string, data []byte) (state.StructureRow, error) {
	st, err := parser.Parse(data)
	if err != nil {
		return state.StructureRow{}, err
	}
	row := state.StructureRow{
		ID:        st.ID,
		Path:      path,
		Name:      st.Name,
		Checksum:  checksum.Sum(data),
		Chains:    make([]string, len(st.Chains)),
		UpdatedAt: time.Now().UTC(),
	}
	var seq strings.Builder
	for i, ch := range st.Chains {
		row.Chains[i] = ch.LabelID
		row.Residues += len(ch.Sequence)
		if i > 0 {
			seq.WriteByte(' ')
		}
		seq.WriteString(ch.Sequence)
	}
	row.Sequence = seq.String()
	if err := db.UpsertStructure(row); err != nil {
		return state.StructureRow{}, err
	}
	return row, nil
}
