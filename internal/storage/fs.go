package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/seqsync/internal/apperr"
	"github.com/starford/seqsync/internal/checksum"
)

// MaxManifestBytes caps a single manifest. Larger files are skipped by List
// and rejected by Read and Write.
const MaxManifestBytes = 10 << 20

// IsManifest reports whether name has a manifest extension.
func IsManifest(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// hidden reports whether a path element is a dot file or directory, which
// covers editor swap files, VCS metadata and our own temp files.
func hidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}

// FS implements Provider over a directory of structure manifests.
type FS struct {
	root string
}

var _ Provider = (*FS)(nil)

// NewFS opens the manifest directory at root, which must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute manifest directory.
func (f *FS) Root() string { return f.root }

// resolve maps a root-relative path to an absolute one inside the root.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute path %s: %w", rel, apperr.ErrInvalidArgument)
	}
	abs := filepath.Join(f.root, cleaned)
	if abs != f.root && !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes root %s: %w", rel, apperr.ErrInvalidArgument)
	}
	return abs, nil
}

// manifest resolves rel and requires a manifest extension.
func (f *FS) manifest(rel string) (string, error) {
	if !IsManifest(rel) {
		return "", fmt.Errorf("storage: %s is not a manifest: %w", rel, apperr.ErrInvalidArgument)
	}
	return f.resolve(rel)
}

func notFound(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: %s: %w: %w", path, apperr.ErrNotFound, err)
	}
	return fmt.Errorf("storage: %s: %w", path, err)
}

// List walks dir and returns metadata for every manifest, skipping hidden
// entries and files over MaxManifestBytes.
func (f *FS) List(dir string) ([]Metadata, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []Metadata
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if hidden(d.Name()) && p != base {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsManifest(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > MaxManifestBytes {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, Metadata{
			Path:      filepath.ToSlash(rel),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Exists reports whether a file is present at path.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Lstat(abs)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("storage: stat %s: %w", path, err)
	}
}

// Read returns the raw bytes of a manifest.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, notFound(path, err)
	}
	if info.Size() > MaxManifestBytes {
		return nil, fmt.Errorf("storage: %s exceeds %d bytes: %w", path, MaxManifestBytes, apperr.ErrConstraintViolation)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, notFound(path, err)
	}
	return data, nil
}

// Write replaces the manifest at path via a synced temp file and a rename,
// so the watcher never sees a half-written manifest.
func (f *FS) Write(path string, content []byte) error {
	if len(content) > MaxManifestBytes {
		return fmt.Errorf("storage: %s exceeds %d bytes: %w", path, MaxManifestBytes, apperr.ErrConstraintViolation)
	}
	abs, err := f.manifest(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".seqsync-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	committed = true
	return nil
}

// Delete removes a manifest.
func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return notFound(path, err)
	}
	return nil
}

// Move renames a manifest within the root. An existing file at newPath is
// never overwritten.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.resolve(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.manifest(newPath)
	if err != nil {
		return err
	}
	if ok, err := f.Exists(newPath); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("storage: %s: %w", newPath, apperr.ErrAlreadyExists)
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return notFound(oldPath, err)
	}
	return nil
}
