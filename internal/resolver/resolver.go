package resolver

import (
	"fmt"
	"strings"

	"github.com/frederic-klein/phpfarm/internal/index"
	"github.com/frederic-klein/phpfarm/internal/release"
)

// NotFoundError reports a specifier that no searched feed satisfies.
type NotFoundError struct {
	Specifier release.Specifier
	Searched  []release.Origin
}

func (e *NotFoundError) Error() string {
	origins := make([]string, len(e.Searched))
	for i, o := range e.Searched {
		origins[i] = string(o)
	}
	return fmt.Sprintf("no release matches %s (searched: %s)", e.Specifier, strings.Join(origins, ", "))
}

// Resolver turns a version specifier into one concrete release.
type Resolver struct {
	defaults []release.Branch
}

// NewResolver creates a resolver; defaults are the branches an empty
// specifier ranges over.
func NewResolver(defaults []release.Branch) *Resolver {
	return &Resolver{defaults: defaults}
}

// Defaults returns the branches an empty specifier ranges over.
func (r *Resolver) Defaults() []release.Branch {
	return r.defaults
}

// Resolve picks the release spec designates in snap.
//
// Partial and empty specifiers select the newest final release; a
// pre-release is chosen only when no final exists in the searched feed.
// A partial specifier falls back to the museum only when the branch is
// entirely absent from the current feed.
func (r *Resolver) Resolve(spec release.Specifier, snap *index.Snapshot) (release.Entry, error) {
	switch spec.Kind {
	case release.Exact:
		if e, ok := snap.Lookup(spec.Version); ok {
			return e, nil
		}
		return release.Entry{}, &NotFoundError{
			Specifier: spec,
			Searched:  []release.Origin{release.OriginCurrent, release.OriginMuseum},
		}

	case release.Partial:
		if e, ok := newest(snap.Branch(spec.Branch, release.OriginCurrent)); ok {
			return e, nil
		}
		if e, ok := newest(snap.Branch(spec.Branch, release.OriginMuseum)); ok {
			return e, nil
		}
		return release.Entry{}, &NotFoundError{
			Specifier: spec,
			Searched:  []release.Origin{release.OriginCurrent, release.OriginMuseum},
		}
	}

	var best release.Entry
	found := false
	for _, b := range r.defaults {
		e, ok := newest(snap.Branch(b, release.OriginCurrent))
		if !ok {
			continue
		}
		if !found || better(e, best) {
			best, found = e, true
		}
	}
	if !found {
		return release.Entry{}, &NotFoundError{Specifier: spec, Searched: []release.Origin{release.OriginCurrent}}
	}
	return best, nil
}

// Latest resolves every branch independently, returning one entry per
// branch that has any release. Branches without releases are skipped.
func (r *Resolver) Latest(branches []release.Branch, snap *index.Snapshot) []release.Entry {
	var out []release.Entry
	for _, b := range branches {
		if e, err := r.Resolve(release.BranchSpecifier(b), snap); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// newest returns the highest final release of entries, or the highest
// pre-release when there is no final. entries must be sorted ascending.
func newest(entries []release.Entry) (release.Entry, bool) {
	if len(entries) == 0 {
		return release.Entry{}, false
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].Version.IsPreRelease() {
			return entries[i], true
		}
	}
	return entries[len(entries)-1], true
}

// better orders branch winners: finals beat pre-releases, then by version.
func better(a, b release.Entry) bool {
	if a.Version.IsPreRelease() != b.Version.IsPreRelease() {
		return !a.Version.IsPreRelease()
	}
	return b.Version.Less(a.Version)
}
