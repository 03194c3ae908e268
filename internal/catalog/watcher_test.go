package catalog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/seqsync/internal/state"
	"github.com/starford/seqsync/internal/storage"
	"github.com/starford/seqsync/internal/testutil"
)

// watcherTestEnv sets up an empty structures dir and a catalog over it.
func watcherTestEnv(t *testing.T) (string, *Catalog, *state.DB) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return dir, New(store, db, logger), db
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func manifest(id string) string {
	return "id: " + id + "\nchains:\n  - label_id: A\n    sequence: MKTAYIAKQR\n"
}

func TestWatcher_NewFileCatalogued(t *testing.T) {
	dir, c, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go c.Watch(ctx, dir, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	testutil.WriteManifest(t, dir, "5new.yaml", manifest("5new"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("5new.yaml")
		return cs != ""
	}, "new manifest not catalogued by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == EventCreated+":5new.yaml" {
				return true
			}
		}
		return false
	}, "expected created:5new.yaml callback")
}

func TestWatcher_UpdateAndIgnoreOtherFiles(t *testing.T) {
	dir, c, db := watcherTestEnv(t)
	testutil.WriteManifest(t, dir, "6upd.yaml", manifest("6upd"))
	if err := c.Sync(); err != nil {
		t.Fatal(err)
	}
	before, _ := db.GetChecksum("6upd.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go c.Watch(ctx, dir, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	testutil.WriteManifest(t, dir, "README.txt", "not a manifest")
	testutil.WriteManifest(t, dir, "6upd.yaml", strings.Replace(manifest("6upd"), "MKTAYIAKQR", "MKTAY", 1))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("6upd.yaml")
		return cs != "" && cs != before
	}, "updated manifest not re-catalogued")

	mu.Lock()
	defer mu.Unlock()
	var updated bool
	for _, e := range events {
		if strings.HasSuffix(e, "README.txt") {
			t.Errorf("non-manifest produced event %q", e)
		}
		if e == EventCreated+":6upd.yaml" {
			t.Errorf("known manifest reported as created")
		}
		updated = updated || e == EventUpdated+":6upd.yaml"
	}
	if !updated {
		t.Errorf("events = %v, want updated:6upd.yaml", events)
	}
}

func TestWatcher_IgnoresHiddenDirs(t *testing.T) {
	dir, c, db := watcherTestEnv(t)
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Watch(ctx, dir, nil)
	time.Sleep(100 * time.Millisecond)

	testutil.WriteManifest(t, filepath.Join(dir, ".git"), "1hid.yaml", manifest("1hid"))
	testutil.WriteManifest(t, dir, "2vis.yaml", manifest("2vis"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("2vis.yaml")
		return cs != ""
	}, "visible manifest not catalogued")
	if cs, _ := db.GetChecksum(".git/1hid.yaml"); cs != "" {
		t.Error("manifest under hidden dir was catalogued")
	}
}

func TestHiddenPath(t *testing.T) {
	tests := map[string]bool{
		"/s/a.yaml":       false,
		"/s/sub/a.yaml":   false,
		"/s/.git/a.yaml":  true,
		"/s/.a.yaml.swp":  true,
		"/s/sub/.tmp-1":   true,
		"/s/./sub/a.yaml": false,
	}
	for p, want := range tests {
		if got := hiddenPath("/s", p); got != want {
			t.Errorf("hiddenPath(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	dir, c, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Watch(ctx, dir, nil)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(dir, "kinases")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	testutil.WriteManifest(t, subDir, "7deep.yaml", manifest("7deep"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("kinases/7deep.yaml")
		return cs != ""
	}, "manifest in new subdir not catalogued by watcher")
}

func TestWatcher_DeleteRemovesFromCatalogue(t *testing.T) {
	dir, c, db := watcherTestEnv(t)
	testutil.WriteManifest(t, dir, "8del.yaml", manifest("8del"))
	if err := c.Sync(); err != nil {
		t.Fatal(err)
	}
	if cs, _ := db.GetChecksum("8del.yaml"); cs == "" {
		t.Fatal("precondition: manifest should be catalogued")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Watch(ctx, dir, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "8del.yaml"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("8del.yaml")
		return cs == ""
	}, "deleted manifest still catalogued")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, c, db := watcherTestEnv(t)
	testutil.WriteManifest(t, dir, "old.yaml", manifest("9ren"))
	if err := c.Sync(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Watch(ctx, dir, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "old.yaml"), filepath.Join(dir, "renamed.yaml"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.yaml")
		newCS, _ := db.GetChecksum("renamed.yaml")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path catalogued")
}
