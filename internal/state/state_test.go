package state

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/seqsync/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "seqsync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func row(path, id, checksum string) StructureRow {
	return StructureRow{
		ID:        id,
		Path:      path,
		Name:      "Structure " + id,
		Checksum:  checksum,
		Chains:    []string{"A", "B"},
		Residues:  150,
		UpdatedAt: time.Now(),
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"structures", "kv", "operations"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertAndGetStructure(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertStructure(row("1abc.yaml", "1abc", "c1")); err != nil {
		t.Fatalf("UpsertStructure: %v", err)
	}
	cs, err := db.GetChecksum("1abc.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cs != "c1" {
		t.Errorf("checksum = %q, want c1", cs)
	}

	got, err := db.GetStructure("1abc")
	if err != nil {
		t.Fatalf("GetStructure: %v", err)
	}
	if got.Path != "1abc.yaml" || got.Residues != 150 || len(got.Chains) != 2 || got.Chains[1] != "B" {
		t.Errorf("row = %+v", got)
	}
}

func TestGetStructure_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetStructure("none"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertStructure(row("x.yaml", "1old", "1"))
	_ = db.UpsertStructure(row("x.yaml", "1new", "2"))

	if cs, _ := db.GetChecksum("x.yaml"); cs != "2" {
		t.Errorf("checksum = %q, want 2", cs)
	}
	if _, err := db.GetStructure("1old"); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("old id should be gone")
	}
	if _, err := db.GetStructure("1new"); err != nil {
		t.Errorf("new id: %v", err)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertStructure(row("a.yaml", "1abc", "1")); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertStructure(row("b.yaml", "1abc", "2")); err == nil {
		t.Fatal("second manifest with the same id should be rejected")
	}
}

func TestDeleteStructure(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertStructure(row("del.yaml", "1del", "x"))
	if err := db.DeleteStructure("del.yaml"); err != nil {
		t.Fatalf("DeleteStructure: %v", err)
	}
	if cs, _ := db.GetChecksum("del.yaml"); cs != "" {
		t.Errorf("deleted structure still has checksum %q", cs)
	}
}

func TestListStructures(t *testing.T) {
	db := testDB(t)
	for _, id := range []string{"3ccc", "1aaa", "2bbb"} {
		_ = db.UpsertStructure(row(id+".yaml", id, id))
	}
	page, total, err := db.ListStructures(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 2 || page[0].ID != "1aaa" || page[1].ID != "2bbb" {
		t.Errorf("page = %+v, total = %d", page, total)
	}
	page, _, _ = db.ListStructures(2, 2)
	if len(page) != 1 || page[0].ID != "3ccc" {
		t.Errorf("second page = %+v", page)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertStructure(row("a.yaml", "1aaa", "ca"))
	_ = db.UpsertStructure(row("b.yaml", "1bbb", "cb"))
	all, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all["a.yaml"] != "ca" || all["b.yaml"] != "cb" {
		t.Errorf("checksums = %v", all)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	r := row("s.yaml", "4hhb", "1")
	r.Name = "Hemoglobin"
	_ = db.UpsertStructure(r)
	_ = db.UpsertStructure(row("o.yaml", "1ubq", "2"))

	results, err := db.Search("Hemoglobin", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "4hhb" {
		t.Errorf("search results = %+v, want 1 hit for 4hhb", results)
	}
}

func TestKV(t *testing.T) {
	db := testDB(t)
	if _, ok, err := db.Get("missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := db.Put("last_structure", "1abc"); err != nil {
		t.Fatal(err)
	}
	if err := db.Put("last_structure", "2def"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.Get("last_structure")
	if err != nil || !ok || v != "2def" {
		t.Fatalf("get = %q ok=%v err=%v", v, ok, err)
	}
	if err := db.Delete("last_structure"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.Get("last_structure"); ok {
		t.Error("key survived delete")
	}
	if err := db.Delete("last_structure"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestOperations(t *testing.T) {
	db := testDB(t)
	ops := []Operation{
		{StructureID: "1abc", Action: "hide", Target: "A", Success: true},
		{StructureID: "2def", Action: "isolate", Target: "B", Success: true},
		{StructureID: "1abc", Action: "isolate", Target: "Z", Success: false, Reason: "not found"},
	}
	for _, op := range ops {
		if err := db.RecordOperation(op); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.RecentOperations("1abc", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("operations = %d, want 2", len(got))
	}
	if got[0].Target != "Z" || got[0].Success || got[0].Reason != "not found" {
		t.Errorf("newest = %+v", got[0])
	}
	if got[1].Action != "hide" || !got[1].Success || got[1].CreatedAt.IsZero() {
		t.Errorf("oldest = %+v", got[1])
	}

	all, _ := db.RecentOperations("", 2)
	if len(all) != 2 || all[0].StructureID != "1abc" || all[1].StructureID != "2def" {
		t.Errorf("all = %+v", all)
	}
}
