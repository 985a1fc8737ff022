// Package registry is the on-disk cache of downloaded release archives.
// Archives are stored flat under their upstream file name and every write
// is published with an atomic rename, so readers never see a partial file.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio"

	"github.com/frederic-klein/phpfarm/internal/release"
)

// ErrAlreadyExists is returned when storing over a cached archive without
// force.
var ErrAlreadyExists = errors.New("archive already cached")

// Registry is a directory of archives keyed by version and compression.
type Registry struct {
	root string
}

// New creates a registry rooted at dir. The directory is created lazily.
func New(root string) *Registry {
	return &Registry{root: root}
}

// Root returns the registry directory.
func (r *Registry) Root() string {
	return r.root
}

// PathFor returns where key is (or would be) stored.
func (r *Registry) PathFor(key release.CacheKey) string {
	return filepath.Join(r.root, key.FileName())
}

// Has reports whether key is cached.
func (r *Registry) Has(key release.CacheKey) bool {
	info, err := os.Stat(r.PathFor(key))
	return err == nil && info.Mode().IsRegular()
}

// Store copies src into the registry under key and returns the final path.
func (r *Registry) Store(key release.CacheKey, src io.Reader, force bool) (string, error) {
	w, err := r.Create(key, force)
	if err != nil {
		return "", err
	}
	defer w.Abort()

	if _, err := io.Copy(w, src); err != nil {
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	if err := w.Commit(); err != nil {
		return "", err
	}
	return w.Path(), nil
}

// Create opens a two-phase write for key. Nothing is visible at PathFor(key)
// until Commit; Abort discards the temporary file.
func (r *Registry) Create(key release.CacheKey, force bool) (*PendingWrite, error) {
	if !force && r.Has(key) {
		return nil, fmt.Errorf("%s: %w", key, ErrAlreadyExists)
	}
	if err := os.MkdirAll(r.root, 0755); err != nil {
		return nil, fmt.Errorf("creating registry dir: %w", err)
	}

	path := r.PathFor(key)
	f, err := renameio.TempFile(r.root, path)
	if err != nil {
		return nil, fmt.Errorf("creating temp file for %s: %w", key, err)
	}
	if err := f.Chmod(0644); err != nil {
		f.Cleanup()
		return nil, fmt.Errorf("creating temp file for %s: %w", key, err)
	}

	return &PendingWrite{
		reg:   r,
		key:   key,
		path:  path,
		force: force,
		file:  f,
		hash:  sha256.New(),
	}, nil
}

// PendingWrite is an archive being written into the registry.
type PendingWrite struct {
	reg   *Registry
	key   release.CacheKey
	path  string
	force bool
	file  *renameio.PendingFile
	hash  hash.Hash
	size  int64
	done  bool
}

func (w *PendingWrite) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	w.hash.Write(p[:n])
	w.size += int64(n)
	return n, err
}

// Path is the final location of the archive.
func (w *PendingWrite) Path() string {
	return w.path
}

// Size returns the number of bytes written so far.
func (w *PendingWrite) Size() int64 {
	return w.size
}

// SHA256 returns the hex digest of the bytes written so far.
func (w *PendingWrite) SHA256() string {
	return hex.EncodeToString(w.hash.Sum(nil))
}

// Commit atomically publishes the archive.
func (w *PendingWrite) Commit() error {
	if w.done {
		return errors.New("pending write already finished")
	}
	if !w.force && w.reg.Has(w.key) {
		w.Abort()
		return fmt.Errorf("%s: %w", w.key, ErrAlreadyExists)
	}
	w.done = true
	if err := w.file.CloseAtomicallyReplace(); err != nil {
		w.file.Cleanup()
		return fmt.Errorf("storing %s: %w", w.key, err)
	}
	return nil
}

// Abort discards the write. It is a no-op after Commit.
func (w *PendingWrite) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.file.Cleanup()
}

// Archive is a cached archive found on disk.
type Archive struct {
	Key     release.CacheKey
	Path    string
	Size    int64
	ModTime time.Time
}

// Entries lists cached archives matching filter, sorted by version and then
// compression. Files whose names do not parse are skipped. A missing
// registry directory yields no entries.
func (r *Registry) Entries(filter release.Specifier) ([]Archive, error) {
	dirEntries, err := os.ReadDir(r.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var out []Archive
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		key, err := release.ParseFileName(de.Name())
		if err != nil || !filter.Matches(key.Version) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Archive{
			Key:     key,
			Path:    filepath.Join(r.root, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Key.Version.Compare(out[j].Key.Version); c != 0 {
			return c < 0
		}
		return out[i].Key.Compression < out[j].Key.Compression
	})
	return out, nil
}
