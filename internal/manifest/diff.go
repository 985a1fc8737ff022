package manifest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Result partitions the files of a live tree.
type Result struct {
	// Tracked files were written by the extraction.
	Tracked []string
	// Foreign files were added or generated afterwards.
	Foreign []string
}

// Diff walks the tree at root and classifies every non-directory entry
// against m. Symlinks are classified as entries and never followed. The
// sidecar itself is excluded. Only presence is compared, not content.
func Diff(m *Manifest, root string) (Result, error) {
	var res Result
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = normalize(rel)
		if rel == FileName {
			return nil
		}

		if m.Contains(rel) {
			res.Tracked = append(res.Tracked, rel)
		} else {
			res.Foreign = append(res.Foreign, rel)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(res.Tracked)
	sort.Strings(res.Foreign)
	return res, nil
}
