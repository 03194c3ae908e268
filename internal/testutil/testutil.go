// Package testutil provides shared test fixtures: structure manifests, loaded
// scenes, structure directories and databases.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/seqsync/internal/parser"
	"github.com/starford/seqsync/internal/state"
	"github.com/starford/seqsync/internal/storage"
	"github.com/starford/seqsync/internal/structure"
)

// Fixture ids.
const (
	TwoChainID    = "1ab2"
	SingleChainID = "1one"
)

// TwoChainManifest has chain A (auth H, 100 residues, auth numbering shifted by
// 10) carrying a HEM ligand, chain B (auth L, 50 residues) and three waters.
// Every residue has one atom.
func TwoChainManifest() string {
	return fmt.Sprintf(`id: %s
name: Two chain fixture
chains:
  - label_id: A
    auth_id: H
    name: Heavy
    sequence: %s
    auth_offset: 10
    atoms_per_residue: 1
  - label_id: B
    auth_id: L
    name: Light
    sequence: %s
    atoms_per_residue: 1
ligands:
  - name: HEM
    chain: A
    atoms: 4
waters: 3
`, TwoChainID, strings.Repeat("MKTAYIAKQR", 10), strings.Repeat("GSHMA", 10))
}

// SingleChainManifest has one 30 residue chain.
func SingleChainManifest() string {
	return fmt.Sprintf(`id: %s
chains:
  - label_id: A
    sequence: %s
    atoms_per_residue: 1
`, SingleChainID, strings.Repeat("ACDEFGHIKL", 3))
}

// Structure parses a manifest, failing the test on error.
func Structure(t *testing.T, manifest string) *parser.Structure {
	t.Helper()
	st, err := parser.Parse([]byte(manifest))
	if err != nil {
		t.Fatal(err)
	}
	return st
}

// Source returns a static source holding both fixtures.
func Source(t *testing.T) *structure.StaticSource {
	t.Helper()
	return structure.NewStaticSource(
		Structure(t, TwoChainManifest()),
		Structure(t, SingleChainManifest()),
	)
}

// Scene returns a scene with sourceID already loaded.
func Scene(t *testing.T, sourceID string) *structure.Scene {
	t.Helper()
	s := structure.NewScene(Source(t))
	if err := s.LoadStructure(context.Background(), sourceID); err != nil {
		t.Fatal(err)
	}
	return s
}

// StructureDir creates a temporary structures directory holding both
// fixtures, with a storage.Provider over it.
func StructureDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	WriteManifest(t, dir, TwoChainID+".yaml", TwoChainManifest())
	WriteManifest(t, dir, SingleChainID+".yaml", SingleChainManifest())
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteManifest writes content to dir/name.
func WriteManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *state.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "seqsync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := state.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
