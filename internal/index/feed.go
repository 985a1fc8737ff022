package index

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/frederic-klein/phpfarm/internal/release"
)

// Feed is an upstream release listing.
type Feed interface {
	Origin() release.Origin
	Fetch(ctx context.Context, b release.Branch) ([]release.Entry, error)
}

// Loader builds snapshots from the current feed, consulting the museum feed
// only for branches (or exact versions) the current feed does not list.
type Loader struct {
	current Feed
	museum  Feed
	logger  *log.Logger
}

// NewLoader creates a loader. museum may be nil.
func NewLoader(current, museum Feed, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Loader{current: current, museum: museum, logger: logger}
}

// Load fetches the current feed for each branch and falls back to the
// museum for branches the current feed does not list at all.
func (l *Loader) Load(ctx context.Context, branches ...release.Branch) (*Snapshot, error) {
	return l.load(ctx, branches, true)
}

// ForSpecifier loads what is needed to resolve spec. Empty specifiers only
// consult the current feed for the default branches.
func (l *Loader) ForSpecifier(ctx context.Context, spec release.Specifier, defaults []release.Branch) (*Snapshot, error) {
	switch spec.Kind {
	case release.Empty:
		return l.load(ctx, defaults, false)
	case release.Partial:
		return l.load(ctx, []release.Branch{spec.Branch}, true)
	}

	snap, err := l.load(ctx, []release.Branch{spec.Branch}, true)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Lookup(spec.Version); ok || l.museum == nil {
		return snap, nil
	}
	if snap.HasBranch(spec.Branch, release.OriginMuseum) {
		return snap, nil
	}

	l.logger.Debug("exact version not in current feed, checking museum", "version", spec.Version)
	entries, err := l.museum.Fetch(ctx, spec.Branch)
	if err != nil {
		return nil, fmt.Errorf("fetching museum listing for %s: %w", spec.Branch, err)
	}
	return snap.Merge(entries), nil
}

func (l *Loader) load(ctx context.Context, branches []release.Branch, fallback bool) (*Snapshot, error) {
	current, err := l.fetchAll(ctx, l.current, branches)
	if err != nil {
		return nil, err
	}

	results := make([][]release.Entry, 0, len(branches)*2)
	var missing []release.Branch
	for i, b := range branches {
		if len(current[i]) == 0 {
			missing = append(missing, b)
		}
		results = append(results, current[i])
	}

	if fallback && l.museum != nil && len(missing) > 0 {
		l.logger.Debug("branches absent from current feed, checking museum", "branches", missing)
		museum, err := l.fetchAll(ctx, l.museum, missing)
		if err != nil {
			return nil, err
		}
		results = append(results, museum...)
	}

	return New(results...), nil
}

func (l *Loader) fetchAll(ctx context.Context, feed Feed, branches []release.Branch) ([][]release.Entry, error) {
	out := make([][]release.Entry, len(branches))

	g, ctx := errgroup.WithContext(ctx)
	for i, b := range branches {
		g.Go(func() error {
			l.logger.Debug("fetching release listing", "feed", feed.Origin(), "branch", b)
			entries, err := feed.Fetch(ctx, b)
			if err != nil {
				return fmt.Errorf("fetching %s listing for %s: %w", feed.Origin(), b, err)
			}
			out[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
