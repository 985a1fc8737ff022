// Package buildtree locates version-named PHP source trees on disk and
// performs the filesystem steps of replacing one: backup of local files,
// locking and writability checks.
package buildtree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/frederic-klein/phpfarm/internal/release"
)

// ErrUnparseableTreeName is returned for directories whose name does not
// follow php-<version>[-suffix].
var ErrUnparseableTreeName = errors.New("directory name is not php-<version>[-suffix]")

var treeNameRe = regexp.MustCompile(`^php-(\d+\.\d+\.\d+(?:-?(?i:alpha|beta|rc)\d*)?)(?:-(.+))?$`)

// Tree is a directory holding one extracted source tree.
type Tree struct {
	Path    string
	Version release.Version
	// Suffix is the part after the version, e.g. "debug" in php-8.3.5-debug.
	Suffix string
}

// Name returns the tree's directory name.
func (t Tree) Name() string {
	return filepath.Base(t.Path)
}

// Parent returns the directory containing the tree.
func (t Tree) Parent() string {
	return filepath.Dir(t.Path)
}

// Sibling returns the path a tree of version v would get next to t,
// keeping t's suffix.
func (t Tree) Sibling(v release.Version) string {
	return filepath.Join(t.Parent(), DirName(v, t.Suffix))
}

// DirName builds a tree directory name.
func DirName(v release.Version, suffix string) string {
	if suffix == "" {
		return "php-" + v.String()
	}
	return "php-" + v.String() + "-" + suffix
}

// Parse interprets path's base name as a tree name.
func Parse(path string) (Tree, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Tree{}, err
	}
	m := treeNameRe.FindStringSubmatch(filepath.Base(abs))
	if m == nil {
		return Tree{}, fmt.Errorf("%s: %w", filepath.Base(abs), ErrUnparseableTreeName)
	}
	v, err := release.ParseVersion(m[1])
	if err != nil {
		return Tree{}, fmt.Errorf("%s: %w", filepath.Base(abs), ErrUnparseableTreeName)
	}
	return Tree{Path: abs, Version: v, Suffix: m[2]}, nil
}

// Discover returns the trees at path: path itself when its name is a tree
// name, otherwise every child directory with a tree name, sorted by
// version. Finding no tree is an ErrUnparseableTreeName failure.
func Discover(path string) ([]Tree, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", path)
	}

	if t, err := Parse(path); err == nil {
		return []Tree{t}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var trees []Tree
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, err := Parse(filepath.Join(path, e.Name()))
		if err != nil {
			continue
		}
		trees = append(trees, t)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("%s: no php-<version> directories: %w", path, ErrUnparseableTreeName)
	}

	sort.Slice(trees, func(i, j int) bool {
		if c := trees[i].Version.Compare(trees[j].Version); c != 0 {
			return c < 0
		}
		return trees[i].Suffix < trees[j].Suffix
	})
	return trees, nil
}
