package buildtree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned when another process holds a tree's lock.
var ErrLocked = errors.New("tree is locked by another upgrade")

// Lock is an exclusive flock on <parent>/.<name>.lock. The kernel drops
// it if the holder dies, so a leftover file is never a stale lock.
type Lock struct {
	f *os.File
}

// errStaleLock means the locked file was unlinked by its previous holder
// before we got the lock.
var errStaleLock = errors.New("lock file was replaced")

// LockPath returns the lock file location for t.
func LockPath(t Tree) string {
	return filepath.Join(t.Parent(), "."+t.Name()+".lock")
}

// Acquire takes the lock for t without waiting.
func Acquire(t Tree) (*Lock, error) {
	p := LockPath(t)
	for attempt := 0; attempt < 3; attempt++ {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("locking %s: %w", t.Name(), err)
		}
		err = lockFile(f, p)
		if errors.Is(err, errStaleLock) {
			f.Close()
			continue
		}
		if err != nil {
			f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, fmt.Errorf("%s: %w", t.Name(), ErrLocked)
			}
			return nil, fmt.Errorf("locking %s: %w", t.Name(), err)
		}

		l := &Lock{f: f}
		if err := l.writePid(); err != nil {
			l.Release()
			return nil, fmt.Errorf("locking %s: %w", t.Name(), err)
		}
		return l, nil
	}
	return nil, fmt.Errorf("%s: %w", t.Name(), ErrLocked)
}

// lockFile flocks f and checks that p still names the same file. A holder
// unlinks p before unlocking, so a lock on an unlinked inode is worthless.
func lockFile(f *os.File, p string) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return err
	}
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	pi, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !os.SameFile(fi, pi)) {
		return errStaleLock
	}
	return err
}

func (l *Lock) writePid() error {
	if err := l.f.Truncate(0); err != nil {
		return err
	}
	_, err := l.f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	return err
}

// Release removes the lock file while still holding the lock, then drops
// it. Waiters that opened the removed file notice the swap in lockFile.
func (l *Lock) Release() error {
	err := os.Remove(l.f.Name())
	if uerr := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); uerr != nil && err == nil {
		err = uerr
	}
	if cerr := l.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// CheckWritable fails unless the current user may create entries in dir.
func CheckWritable(dir string) error {
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	return nil
}
