package buildtree

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BackupDirName is the directory, next to the trees, that holds backups.
const BackupDirName = ".phpfarm-backup"

// ErrBackupExists is returned when the backup location is already in use.
var ErrBackupExists = errors.New("backup already exists")

// BackupError reports a file that could not be copied into the backup.
type BackupError struct {
	Path string
	Err  error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backing up %s: %v", e.Path, e.Err)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}

// BackupPath returns where t's local files are backed up. base overrides
// the default <parent>/.phpfarm-backup.
func BackupPath(t Tree, base string) string {
	if base == "" {
		base = filepath.Join(t.Parent(), BackupDirName)
	}
	return filepath.Join(base, t.Name())
}

// Backup copies files (relative to src) into dst, preserving structure,
// permissions and symlinks. dst must not exist or be empty unless force is
// set, in which case it is cleared first. The first failing file aborts the
// backup with a *BackupError.
func Backup(src string, files []string, dst string, force bool) (int, error) {
	if entries, err := os.ReadDir(dst); err == nil && len(entries) > 0 {
		if !force {
			return 0, fmt.Errorf("%s: %w", dst, ErrBackupExists)
		}
		if err := os.RemoveAll(dst); err != nil {
			return 0, fmt.Errorf("clearing %s: %w", dst, err)
		}
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return 0, &BackupError{Path: dst, Err: err}
	}

	for i, rel := range files {
		if err := copyEntry(filepath.Join(src, filepath.FromSlash(rel)), filepath.Join(dst, filepath.FromSlash(rel))); err != nil {
			return i, &BackupError{Path: rel, Err: err}
		}
	}
	return len(files), nil
}

func copyEntry(from, to string) error {
	info, err := os.Lstat(from)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(from)
		if err != nil {
			return err
		}
		return os.Symlink(target, to)

	case info.Mode().IsRegular():
		in, err := os.Open(from)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(to, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		return os.Chtimes(to, info.ModTime(), info.ModTime())
	}
	return fmt.Errorf("unsupported file type %s", info.Mode().Type())
}
