package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/checksum"
	"github.com/starford/seqsync/internal/testutil"
)

func syncedCatalog(t *testing.T) (string, *Catalog) {
	t.Helper()
	dir, store := testutil.StructureDir(t)
	c := New(store, testutil.TestDB(t), nil)
	if err := c.Sync(); err != nil {
		t.Fatal(err)
	}
	return dir, c
}

func TestSync_IndexesManifests(t *testing.T) {
	_, c := syncedCatalog(t)
	rows, total, err := c.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || rows[0].ID != testutil.TwoChainID || rows[1].ID != testutil.SingleChainID {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Residues != 150 || strings.Join(rows[0].Chains, ",") != "A,B" {
		t.Errorf("two chain row = %+v", rows[0])
	}
}

func TestSync_RemovesStaleAndSkipsInvalid(t *testing.T) {
	dir, c := syncedCatalog(t)
	if err := os.Remove(filepath.Join(dir, testutil.SingleChainID+".yaml")); err != nil {
		t.Fatal(err)
	}
	testutil.WriteManifest(t, dir, "broken.yaml", "chains: [")
	if err := c.Sync(); err != nil {
		t.Fatal(err)
	}
	_, total, _ := c.List(context.Background(), 10, 0)
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}

func TestOpen(t *testing.T) {
	_, c := syncedCatalog(t)
	st, err := c.Open(context.Background(), testutil.TwoChainID)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Chains) != 2 || st.Chains[0].AuthID != "H" {
		t.Errorf("structure = %+v", st)
	}
	if _, err := c.Open(context.Background(), "9zzz"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown id: %v", err)
	}
}

const newManifest = `id: 3new
name: New one
chains:
  - label_id: A
    sequence: MKV
`

func TestCreateGetUpdateDelete(t *testing.T) {
	dir, c := syncedCatalog(t)
	ctx := context.Background()

	d, err := c.Create(ctx, []byte(newManifest))
	if err != nil {
		t.Fatal(err)
	}
	if d.Path != "3new.yaml" || d.Name != "New one" {
		t.Errorf("detail = %+v", d)
	}
	if _, err := os.Stat(filepath.Join(dir, "3new.yaml")); err != nil {
		t.Errorf("manifest not written: %v", err)
	}
	if _, err := c.Create(ctx, []byte(newManifest)); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create: %v", err)
	}

	got, err := c.Get(ctx, "3new")
	if err != nil || got.Content != newManifest {
		t.Fatalf("get: %+v %v", got, err)
	}

	updated := strings.Replace(newManifest, "MKV", "MKVL", 1)
	if _, err := c.Update(ctx, "3new", []byte(updated), "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale if-match: %v", err)
	}
	d, err = c.Update(ctx, "3new", []byte(updated), checksum.Sum([]byte(newManifest)))
	if err != nil {
		t.Fatal(err)
	}
	if d.Residues != 4 {
		t.Errorf("residues = %d, want 4", d.Residues)
	}
	renamed := strings.Replace(updated, "3new", "4new", 1)
	if _, err := c.Update(ctx, "3new", []byte(renamed), ""); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("id change: %v", err)
	}

	if err := c.Delete(ctx, "3new"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "3new"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after delete: %v", err)
	}
}

func TestCreateInvalid(t *testing.T) {
	_, c := syncedCatalog(t)
	if _, err := c.Create(context.Background(), []byte("name: no id\n")); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
}

func TestMove(t *testing.T) {
	dir, c := syncedCatalog(t)
	ctx := context.Background()

	d, err := c.Move(ctx, testutil.SingleChainID, "archive/1one.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if d.Path != filepath.Join("archive", "1one.yaml") && d.Path != "archive/1one.yaml" {
		t.Errorf("path = %q", d.Path)
	}
	if _, err := os.Stat(filepath.Join(dir, "archive", "1one.yaml")); err != nil {
		t.Error(err)
	}
	if _, err := c.Open(ctx, testutil.SingleChainID); err != nil {
		t.Errorf("open after move: %v", err)
	}
	if _, err := c.Move(ctx, testutil.SingleChainID, "notes.txt"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("non-manifest target: %v", err)
	}
}

func TestSearch(t *testing.T) {
	_, c := syncedCatalog(t)
	res, err := c.Search(context.Background(), "Two chain", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 1 || res[0].ID != testutil.TwoChainID {
		t.Errorf("results = %+v", res)
	}
}
