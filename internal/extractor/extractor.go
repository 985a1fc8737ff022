// Package extractor unpacks release archives into source trees and records
// what it wrote in the tree's manifest.
package extractor

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"

	"github.com/frederic-klein/phpfarm/internal/manifest"
	"github.com/frederic-klein/phpfarm/internal/progress"
	"github.com/frederic-klein/phpfarm/internal/release"
)

// ErrDestinationExists is returned when the destination is a non-empty
// directory or not a directory at all.
var ErrDestinationExists = errors.New("destination already exists")

// ExtractionError is a failure while reading or writing archive entries.
// Files written before the failure are left in place.
type ExtractionError struct {
	Archive string
	Entry   string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Entry != "" {
		return fmt.Sprintf("extracting %s: %s: %v", filepath.Base(e.Archive), e.Entry, e.Err)
	}
	return fmt.Sprintf("extracting %s: %v", filepath.Base(e.Archive), e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor unpacks archives.
type Extractor struct {
	logger   *log.Logger
	progress progress.Reporter
}

// NewExtractor creates an extractor.
func NewExtractor(logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Extractor{logger: logger, progress: progress.Discard}
}

// SetProgress sets where extraction progress is drawn.
func (e *Extractor) SetProgress(p progress.Reporter) {
	e.progress = p
}

// Extract unpacks archivePath into dest, stripping the archive's top-level
// directory, and writes the manifest sidecar into dest. dest must not exist
// or be an empty directory.
func (e *Extractor) Extract(archivePath string, c release.Compression, dest string) (*manifest.Manifest, error) {
	if err := prepareDest(dest); err != nil {
		return nil, err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	}
	defer f.Close()

	r, closeFn, err := decompress(f, c)
	if err != nil {
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	}
	defer closeFn()

	var version *release.Version
	if key, err := release.ParseFileName(filepath.Base(archivePath)); err == nil {
		version = &key.Version
	}
	m := manifest.New(version, filepath.Base(archivePath))

	e.logger.Debug("extracting", "archive", archivePath, "dest", dest)
	tracker := e.progress.Start("extracting "+filepath.Base(archivePath), -1)
	defer tracker.Done()

	if err := e.unpack(tar.NewReader(r), dest, m, tracker); err != nil {
		if ee, ok := err.(*ExtractionError); ok {
			ee.Archive = archivePath
			return nil, ee
		}
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	}

	if err := manifest.Write(dest, m); err != nil {
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	}
	e.logger.Debug("extracted", "files", m.Len(), "dest", dest)
	return m, nil
}

func prepareDest(dest string) error {
	info, err := os.Stat(dest)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dest, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dest, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", dest, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", dest, ErrDestinationExists)
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dest, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%s: %w", dest, ErrDestinationExists)
	}
	return nil
}

func decompress(r io.Reader, c release.Compression) (io.Reader, func(), error) {
	switch c {
	case release.Gzip:
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case release.Bzip2:
		return bzip2.NewReader(r), func() {}, nil
	case release.XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return xr, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported compression %q", c)
}

func (e *Extractor) unpack(tr *tar.Reader, dest string, m *manifest.Manifest, tracker progress.Tracker) error {
	var (
		prefix string
		seen   bool
	)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &ExtractionError{Err: fmt.Errorf("reading tar header: %w", err)}
		}

		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		if !seen {
			prefix, seen = topLevel(hdr), true
		}

		name, err := stripAndCheck(hdr.Name, prefix)
		if err != nil {
			return &ExtractionError{Entry: hdr.Name, Err: err}
		}
		if name == "" {
			continue
		}
		if err := e.writeEntry(tr, hdr, dest, name, prefix); err != nil {
			return &ExtractionError{Entry: hdr.Name, Err: err}
		}
		switch hdr.Typeflag {
		case tar.TypeReg, tar.TypeSymlink, tar.TypeLink:
			m.Add(name)
		}
		tracker.Increment()
	}
}

// topLevel returns the leading directory of the first content entry, with
// a trailing slash, or "" when the entry sits at the archive root.
func topLevel(hdr *tar.Header) string {
	name := strings.TrimPrefix(hdr.Name, "./")
	if i := strings.Index(name, "/"); i != -1 {
		return name[:i+1]
	}
	if hdr.Typeflag == tar.TypeDir {
		return name + "/"
	}
	return ""
}

// stripAndCheck removes prefix from an entry name and rejects names that
// would land outside the destination.
func stripAndCheck(name, prefix string) (string, error) {
	name = strings.TrimPrefix(name, "./")
	if prefix != "" {
		if name+"/" == prefix {
			return "", nil
		}
		name = strings.TrimPrefix(name, prefix)
	}
	if name == "" {
		return "", nil
	}
	if path.IsAbs(name) {
		return "", fmt.Errorf("absolute path in archive")
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path escapes destination")
	}
	if clean == "." {
		return "", nil
	}
	return clean, nil
}

// errSymlinkEscape is returned for entries that would be written through a
// symlink created by an earlier entry.
var errSymlinkEscape = errors.New("path passes through a symlink")

// checkParents rejects name when any directory between dest and the entry
// is a symlink. Missing components are fine; they are created as plain
// directories.
func checkParents(dest, name string) error {
	dir := dest
	parts := strings.Split(name, "/")
	for _, p := range parts[:len(parts)-1] {
		dir = filepath.Join(dir, p)
		info, err := os.Lstat(dir)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return errSymlinkEscape
		}
	}
	return nil
}

func (e *Extractor) writeEntry(tr *tar.Reader, hdr *tar.Header, dest, name, prefix string) error {
	if err := checkParents(dest, name); err != nil {
		return err
	}
	target := filepath.Join(dest, filepath.FromSlash(name))

	if hdr.Typeflag != tar.TypeDir {
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return errSymlinkEscape
		}
		return os.MkdirAll(target, 0755)

	case tar.TypeReg:
		mode := os.FileMode(hdr.Mode).Perm()
		if mode == 0 {
			mode = 0644
		}
		// A symlink left at target by an earlier entry is replaced, not followed.
		if err := removeExisting(target); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		if !hdr.ModTime.IsZero() {
			if err := os.Chtimes(target, hdr.ModTime, hdr.ModTime); err != nil {
				return fmt.Errorf("setting mtime: %w", err)
			}
		}
		return nil

	case tar.TypeSymlink:
		if err := removeExisting(target); err != nil {
			return err
		}
		return os.Symlink(hdr.Linkname, target)

	case tar.TypeLink:
		linked, err := stripAndCheck(hdr.Linkname, prefix)
		if err != nil || linked == "" {
			return fmt.Errorf("bad hard link target %q", hdr.Linkname)
		}
		if err := checkParents(dest, linked); err != nil {
			return fmt.Errorf("hard link target %q: %w", hdr.Linkname, err)
		}
		if err := removeExisting(target); err != nil {
			return err
		}
		return os.Link(filepath.Join(dest, filepath.FromSlash(linked)), target)

	default:
		e.logger.Debug("skipping unsupported tar entry", "type", string(hdr.Typeflag), "name", hdr.Name)
		return nil
	}
}

func removeExisting(target string) error {
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
