package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio"

	"github.com/frederic-klein/phpfarm/internal/release"
	"github.com/frederic-klein/phpfarm/internal/transport"
)

const (
	DefaultMirror = "https://www.php.net"

	releasesPath      = "releases/index.php"
	qaPath            = "release-candidates.php?format=json"
	distributionsPath = "distributions"
	cacheTTL          = 24 * time.Hour
)

// CurrentFeed lists the releases php.net currently distributes: finals from
// the releases JSON API and pre-releases from the QA feed. Responses are
// cached on disk for a day.
type CurrentFeed struct {
	mirror   string
	cacheDir string
	ttl      time.Duration
	client   *transport.Client
}

// NewCurrentFeed creates a current feed against mirror (normally
// DefaultMirror).
func NewCurrentFeed(mirror, cacheDir string, client *transport.Client) *CurrentFeed {
	if client == nil {
		client = transport.NewClient(nil)
	}
	return &CurrentFeed{
		mirror:   strings.TrimSuffix(mirror, "/"),
		cacheDir: cacheDir,
		ttl:      cacheTTL,
		client:   client,
	}
}

// SetTTL overrides how long cached responses stay valid. Zero disables the
// cache.
func (f *CurrentFeed) SetTTL(ttl time.Duration) {
	f.ttl = ttl
}

// Mirror returns the configured mirror URL.
func (f *CurrentFeed) Mirror() string {
	return f.mirror
}

func (f *CurrentFeed) Origin() release.Origin {
	return release.OriginCurrent
}

// Fetch returns every final and pre-release of b that php.net distributes.
func (f *CurrentFeed) Fetch(ctx context.Context, b release.Branch) ([]release.Entry, error) {
	q := url.Values{}
	q.Set("json", "")
	q.Set("version", b.String())
	q.Set("max", "-1")
	releasesURL := fmt.Sprintf("%s/%s?%s", f.mirror, releasesPath, q.Encode())

	data, err := f.fetchCached(ctx, "releases-"+b.String()+".json", releasesURL)
	if err != nil {
		return nil, err
	}
	finals, err := f.parseReleases(data)
	if err != nil {
		return nil, fmt.Errorf("parsing releases for %s: %w", b, err)
	}

	data, err = f.fetchCached(ctx, "qa.json", fmt.Sprintf("%s/%s", f.mirror, qaPath))
	if err != nil {
		return nil, err
	}
	pre, err := f.parseQA(data, b)
	if err != nil {
		return nil, fmt.Errorf("parsing QA releases: %w", err)
	}

	return append(finals, pre...), nil
}

func (f *CurrentFeed) fetchCached(ctx context.Context, name, rawURL string) ([]byte, error) {
	cacheFile := filepath.Join(f.cacheDir, name)
	if f.isCacheValid(cacheFile) {
		return os.ReadFile(cacheFile)
	}

	resp, err := f.client.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transport.Error{Method: "GET", URL: rawURL, Err: err}
	}

	if f.cacheDir != "" && f.ttl > 0 {
		if err := os.MkdirAll(f.cacheDir, 0755); err != nil {
			return nil, fmt.Errorf("creating feed cache dir: %w", err)
		}
		if err := renameio.WriteFile(cacheFile, data, 0644); err != nil {
			return nil, fmt.Errorf("writing feed cache: %w", err)
		}
	}
	return data, nil
}

func (f *CurrentFeed) isCacheValid(path string) bool {
	if f.cacheDir == "" || f.ttl <= 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < f.ttl
}

type releaseJSON struct {
	Date   string `json:"date"`
	Museum bool   `json:"museum"`
	Source []struct {
		Filename string `json:"filename"`
		SHA256   string `json:"sha256"`
		Date     string `json:"date"`
	} `json:"source"`
}

// parseReleases decodes the releases API answer, a map keyed by version.
// Unknown branches come back as {"error": "..."} and yield no entries.
func (f *CurrentFeed) parseReleases(data []byte) ([]release.Entry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if _, ok := raw["error"]; ok {
		return nil, nil
	}

	var out []release.Entry
	for key, msg := range raw {
		v, err := release.ParseVersion(key)
		if err != nil {
			continue
		}
		var r releaseJSON
		if err := json.Unmarshal(msg, &r); err != nil {
			return nil, fmt.Errorf("release %s: %w", key, err)
		}
		if r.Museum {
			continue
		}

		e := release.Entry{
			Version: v,
			Origin:  release.OriginCurrent,
			Date:    parseDate(r.Date),
			Sources: make(map[release.Compression]release.Source),
		}
		for _, src := range r.Source {
			ck, err := release.ParseFileName(src.Filename)
			if err != nil || !ck.Version.Equal(v) {
				continue
			}
			e.Sources[ck.Compression] = release.Source{
				URL:    fmt.Sprintf("%s/%s/%s", f.mirror, distributionsPath, src.Filename),
				SHA256: src.SHA256,
			}
		}
		if len(e.Sources) > 0 {
			out = append(out, e)
		}
	}
	return out, nil
}

type qaJSON struct {
	Releases []struct {
		Active  bool `json:"active"`
		Release struct {
			Version string `json:"version"`
			Date    string `json:"date"`
		} `json:"release"`
		Files map[string]struct {
			Path   string `json:"path"`
			SHA256 string `json:"sha256"`
		} `json:"files"`
	} `json:"releases"`
}

// parseQA decodes the release-candidates feed and keeps the active
// pre-releases of b.
func (f *CurrentFeed) parseQA(data []byte, b release.Branch) ([]release.Entry, error) {
	var qa qaJSON
	if err := json.Unmarshal(data, &qa); err != nil {
		return nil, err
	}

	var out []release.Entry
	for _, r := range qa.Releases {
		if !r.Active {
			continue
		}
		v, err := release.ParseVersion(r.Release.Version)
		if err != nil || v.Branch() != b {
			continue
		}

		e := release.Entry{
			Version: v,
			Origin:  release.OriginCurrent,
			Date:    parseDate(r.Release.Date),
			Sources: make(map[release.Compression]release.Source),
		}
		for kind, file := range r.Files {
			c, err := release.ParseCompression(kind)
			if err != nil || file.Path == "" {
				continue
			}
			e.Sources[c] = release.Source{URL: file.Path, SHA256: file.SHA256}
		}
		if len(e.Sources) > 0 {
			out = append(out, e)
		}
	}
	return out, nil
}

func parseDate(s string) time.Time {
	for _, layout := range []string{"2 Jan 2006", "02 Jan 2006", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t
		}
	}
	return time.Time{}
}
