package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/seqsync/internal/checksum"
	"github.com/starford/seqsync/internal/storage"
)

// reconcileDelay debounces the full pass that follows a rename burst.
const reconcileDelay = 200 * time.Millisecond

// Watch keeps the catalogue in step with the manifest directory until ctx is
// cancelled, calling cb (if non-nil) after each catalogue change.
//
// Directories created at runtime join the watch list. A rename only reports
// the old name, so it schedules a reconcile pass against the directory.
func (c *Catalog) Watch(ctx context.Context, root string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := watchTree(w, root); err != nil {
		return err
	}
	c.logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	debounce := time.NewTimer(reconcileDelay)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("watcher: stopped")
			return nil

		case <-debounce.C:
			c.reconcile(notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if c.handle(w, root, ev, notify) {
				debounce.Reset(reconcileDelay)
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}

// handle applies one filesystem event and reports whether a reconcile pass
// is needed.
func (c *Catalog) handle(w *fsnotify.Watcher, root string, ev fsnotify.Event, notify EventCallback) bool {
	if hiddenPath(root, ev.Name) {
		return false
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := watchTree(w, ev.Name); err != nil {
				c.logger.Warn("watcher: add dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			c.scan(root, ev.Name, notify)
			return false
		}
	}

	if !storage.IsManifest(ev.Name) {
		return false
	}
	rel, err := relPath(root, ev.Name)
	if err != nil {
		return false
	}

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		c.refresh(rel, notify)
	case ev.Has(fsnotify.Remove):
		c.forget(rel, notify)
	case ev.Has(fsnotify.Rename):
		c.forget(rel, notify)
		return true
	}
	return false
}

// refresh re-reads a manifest and catalogues it when its checksum moved.
// Editors often save in several writes, so unchanged content is silent.
func (c *Catalog) refresh(rel string, notify EventCallback) {
	data, err := c.store.Read(rel)
	if err != nil {
		c.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	prev, err := c.db.GetChecksum(rel)
	if err != nil {
		c.logger.Warn("watcher: checksum lookup failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if prev == checksum.Sum(data) {
		return
	}
	if _, err := IndexFile(c.db, rel, data); err != nil {
		c.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	kind := EventUpdated
	if prev == "" {
		kind = EventCreated
	}
	c.logger.Debug("watcher: catalogued", slog.String("path", rel), slog.String("kind", kind))
	notify(kind, rel)
}

func (c *Catalog) forget(rel string, notify EventCallback) {
	if err := c.db.DeleteStructure(rel); err != nil {
		c.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	c.logger.Debug("watcher: removed", slog.String("path", rel))
	notify(EventDeleted, rel)
}

// reconcile brings the catalogue back in line with a full directory listing.
func (c *Catalog) reconcile(notify EventCallback) {
	known, err := c.db.AllChecksums()
	if err != nil {
		c.logger.Warn("reconcile: checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := c.store.List("")
	if err != nil {
		c.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	onDisk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = struct{}{}
		if known[m.Path] != m.Checksum {
			c.refresh(m.Path, notify)
		}
	}
	for p := range known {
		if _, ok := onDisk[p]; !ok {
			c.forget(p, notify)
		}
	}
}

// scan catalogues the manifests of a directory that appeared after Watch
// started. Its files may have landed before the directory was watched.
func (c *Catalog) scan(root, dir string, notify EventCallback) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsManifest(p) || hiddenPath(root, p) {
			return nil
		}
		if rel, err := relPath(root, p); err == nil {
			c.refresh(rel, notify)
		}
		return nil
	})
}

func relPath(root, abs string) (string, error) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// hiddenPath reports whether any element of abs below root starts with a dot.
func hiddenPath(root, abs string) bool {
	rel, err := relPath(root, abs)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// watchTree adds dir and every non-hidden subdirectory to w.
func watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
