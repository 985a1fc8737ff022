// Package index holds the set of known PHP releases and the feeds they are
// fetched from.
package index

import (
	"sort"

	"github.com/frederic-klein/phpfarm/internal/release"
)

// Snapshot is an immutable mapping from Version to release.Entry, merged
// from one or more feeds. Build a new snapshot to refresh; never mutate one.
type Snapshot struct {
	byVersion map[string]release.Entry
	sorted    []release.Entry
}

// New merges feed results into a snapshot. When the same version appears
// more than once, a current-feed entry wins over a museum entry and
// archive sources of equal-origin entries are combined.
func New(feeds ...[]release.Entry) *Snapshot {
	s := &Snapshot{byVersion: make(map[string]release.Entry)}
	for _, entries := range feeds {
		for _, e := range entries {
			s.add(e)
		}
	}
	s.finish()
	return s
}

func (s *Snapshot) add(e release.Entry) {
	key := e.Version.String()
	prev, ok := s.byVersion[key]
	if !ok {
		s.byVersion[key] = cloneEntry(e)
		return
	}

	switch {
	case prev.Origin == e.Origin:
		for c, src := range e.Sources {
			if _, exists := prev.Sources[c]; !exists {
				prev.Sources[c] = src
			}
		}
		if prev.Date.IsZero() {
			prev.Date = e.Date
		}
		s.byVersion[key] = prev
	case e.Origin == release.OriginCurrent:
		s.byVersion[key] = cloneEntry(e)
	}
}

func (s *Snapshot) finish() {
	s.sorted = make([]release.Entry, 0, len(s.byVersion))
	for _, e := range s.byVersion {
		s.sorted = append(s.sorted, e)
	}
	sort.Slice(s.sorted, func(i, j int) bool {
		return s.sorted[i].Version.Less(s.sorted[j].Version)
	})
}

func cloneEntry(e release.Entry) release.Entry {
	sources := make(map[release.Compression]release.Source, len(e.Sources))
	for c, src := range e.Sources {
		sources[c] = src
	}
	e.Sources = sources
	return e
}

// Merge returns a new snapshot holding the entries of s plus entries.
func (s *Snapshot) Merge(entries []release.Entry) *Snapshot {
	return New(s.sorted, entries)
}

// Len returns the number of distinct versions.
func (s *Snapshot) Len() int {
	return len(s.sorted)
}

// Lookup finds an exact version.
func (s *Snapshot) Lookup(v release.Version) (release.Entry, bool) {
	e, ok := s.byVersion[v.String()]
	return e, ok
}

// Entries returns every entry in ascending version order.
func (s *Snapshot) Entries() []release.Entry {
	out := make([]release.Entry, len(s.sorted))
	copy(out, s.sorted)
	return out
}

// Branch returns the entries of branch b that came from origin, ascending.
func (s *Snapshot) Branch(b release.Branch, origin release.Origin) []release.Entry {
	var out []release.Entry
	for _, e := range s.sorted {
		if e.Version.Branch() == b && e.Origin == origin {
			out = append(out, e)
		}
	}
	return out
}

// HasBranch reports whether origin lists any release of b.
func (s *Snapshot) HasBranch(b release.Branch, origin release.Origin) bool {
	for _, e := range s.sorted {
		if e.Version.Branch() == b && e.Origin == origin {
			return true
		}
	}
	return false
}

// Branches returns the distinct branches present, ascending.
func (s *Snapshot) Branches() []release.Branch {
	seen := make(map[release.Branch]bool)
	var out []release.Branch
	for _, e := range s.sorted {
		b := e.Version.Branch()
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

// WithCompression returns a snapshot restricted to entries offering c.
func (s *Snapshot) WithCompression(c release.Compression) *Snapshot {
	var keep []release.Entry
	for _, e := range s.sorted {
		if _, ok := e.Sources[c]; ok {
			keep = append(keep, e)
		}
	}
	return New(keep)
}
