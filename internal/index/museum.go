package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/frederic-klein/phpfarm/internal/release"
	"github.com/frederic-klein/phpfarm/internal/transport"
)

const (
	DefaultMuseum = "https://museum.php.net"

	// Patches are probed in batches until probeGap consecutive patch numbers
	// above the highest one found are missing. patchLimit stops a museum
	// that answers every request.
	probeBatch   = 48
	probeGap     = 16
	patchLimit   = 1024
	probeWorkers = 8
)

// MuseumFeed discovers archived releases by probing the museum with HEAD
// requests, since it offers no listing API.
type MuseumFeed struct {
	baseURL string
	kinds   []release.Compression
	workers int
	client  *transport.Client
}

// NewMuseumFeed creates a museum feed probing for the given compression
// kinds. An empty kinds list probes all of them.
func NewMuseumFeed(baseURL string, kinds []release.Compression, client *transport.Client) *MuseumFeed {
	if len(kinds) == 0 {
		kinds = release.Compressions
	}
	if client == nil {
		client = transport.NewClient(nil)
	}
	return &MuseumFeed{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		kinds:   kinds,
		workers: probeWorkers,
		client:  client,
	}
}

// SetWorkers bounds the number of concurrent probes.
func (f *MuseumFeed) SetWorkers(n int) {
	if n > 0 {
		f.workers = n
	}
}

func (f *MuseumFeed) Origin() release.Origin {
	return release.OriginMuseum
}

// URL returns the museum location of an archive.
func (f *MuseumFeed) URL(v release.Version, c release.Compression) string {
	return fmt.Sprintf("%s/php%d/%s", f.baseURL, v.Major, release.FileName(v, c))
}

// Fetch probes the patch releases of b in batches until the archives run
// out. Missing archives (404) are skipped; any other failure aborts the
// probe.
func (f *MuseumFeed) Fetch(ctx context.Context, b release.Branch) ([]release.Entry, error) {
	found := make(map[uint]release.Entry)
	highest := -1
	for end := uint(0); end < patchLimit; {
		start := end
		end += probeBatch
		if err := f.probe(ctx, b, start, end, found); err != nil {
			return nil, err
		}
		for patch := range found {
			highest = max(highest, int(patch))
		}
		if int(end)-(highest+1) >= probeGap {
			break
		}
	}

	out := make([]release.Entry, 0, len(found))
	for _, e := range found {
		out = append(out, e)
	}
	return out, nil
}

// probe sends HEAD requests for patches [start, end) of b and records the
// archives that exist in found.
func (f *MuseumFeed) probe(ctx context.Context, b release.Branch, start, end uint, found map[uint]release.Entry) error {
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for patch := start; patch < end; patch++ {
		v := release.Version{Major: b.Major, Minor: b.Minor, Patch: patch}
		for _, c := range f.kinds {
			g.Go(func() error {
				u := f.URL(v, c)
				resp, err := f.client.Head(ctx, u)
				if errors.Is(err, transport.ErrNotFound) {
					return nil
				}
				if err != nil {
					return err
				}

				mu.Lock()
				defer mu.Unlock()
				e, ok := found[patch]
				if !ok {
					e = release.Entry{
						Version: v,
						Origin:  release.OriginMuseum,
						Sources: make(map[release.Compression]release.Source),
					}
				}
				if e.Date.IsZero() || resp.LastModified.Before(e.Date) {
					e.Date = resp.LastModified
				}
				e.Sources[c] = release.Source{URL: u, Size: resp.Size}
				found[patch] = e
				return nil
			})
		}
	}
	return g.Wait()
}
