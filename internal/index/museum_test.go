package index

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frederic-klein/phpfarm/internal/release"
)

func TestMuseumFeed_Fetch(t *testing.T) {
	// Arrange
	modified := time.Date(2019, 1, 10, 0, 0, 0, 0, time.UTC)
	present := map[string]bool{
		"/php5/php-5.6.39.tar.bz2": true,
		"/php5/php-5.6.40.tar.bz2": true,
		"/php5/php-5.6.40.tar.gz":  true,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("unexpected %s request", r.Method)
		}
		if !present[r.URL.Path] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
		w.Header().Set("Content-Length", "1024")
	}))
	defer server.Close()

	feed := NewMuseumFeed(server.URL, []release.Compression{release.Bzip2, release.Gzip}, nil)

	// Act
	entries, err := feed.Fetch(context.Background(), release.Branch{Major: 5, Minor: 6})

	// Assert
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	snap := New(entries)
	if snap.Len() != 2 {
		t.Fatalf("got %d entries, want 2", snap.Len())
	}

	e, ok := snap.Lookup(release.MustParseVersion("5.6.40"))
	if !ok {
		t.Fatal("5.6.40 missing")
	}
	if e.Origin != release.OriginMuseum {
		t.Errorf("Origin = %s, want museum", e.Origin)
	}
	if len(e.Sources) != 2 {
		t.Errorf("Sources = %v, want bz2 and gz", e.Sources)
	}
	if src := e.Sources[release.Bzip2]; src.URL != server.URL+"/php5/php-5.6.40.tar.bz2" {
		t.Errorf("URL = %q", src.URL)
	}
	if !e.Date.Equal(modified) {
		t.Errorf("Date = %v, want %v", e.Date, modified)
	}
}

func TestMuseumFeed_Fetch_LongBranch(t *testing.T) {
	// Arrange: 5.6.0 through 5.6.70, more than one probe batch.
	const last = 70
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var patch int
		if _, err := fmt.Sscanf(r.URL.Path, "/php5/php-5.6.%d.tar.bz2", &patch); err != nil || patch > last {
			w.WriteHeader(http.StatusNotFound)
			return
		}
	}))
	defer server.Close()

	feed := NewMuseumFeed(server.URL, []release.Compression{release.Bzip2}, nil)

	// Act
	entries, err := feed.Fetch(context.Background(), release.Branch{Major: 5, Minor: 6})

	// Assert
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	snap := New(entries)
	if snap.Len() != last+1 {
		t.Errorf("got %d entries, want %d", snap.Len(), last+1)
	}
	if _, ok := snap.Lookup(release.MustParseVersion("5.6.70")); !ok {
		t.Error("5.6.70 missing")
	}
}

func TestMuseumFeed_Fetch_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	feed := NewMuseumFeed(server.URL, nil, nil)
	if _, err := feed.Fetch(context.Background(), release.Branch{Major: 5, Minor: 6}); err == nil {
		t.Error("Fetch() should fail when the museum answers 500")
	}
}

func TestMuseumFeed_URL(t *testing.T) {
	feed := NewMuseumFeed("https://museum.php.net/", nil, nil)
	got := feed.URL(release.MustParseVersion("7.4.33"), release.XZ)
	if got != "https://museum.php.net/php7/php-7.4.33.tar.xz" {
		t.Errorf("URL() = %q", got)
	}
}
