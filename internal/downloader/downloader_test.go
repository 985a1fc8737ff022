package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/frederic-klein/phpfarm/internal/registry"
	"github.com/frederic-klein/phpfarm/internal/release"
	"github.com/frederic-klein/phpfarm/internal/transport"
)

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func testEntry(serverURL, version, sha string) release.Entry {
	v := release.MustParseVersion(version)
	return release.Entry{
		Version: v,
		Origin:  release.OriginCurrent,
		Sources: map[release.Compression]release.Source{
			release.Gzip: {URL: serverURL + "/distributions/" + release.FileName(v, release.Gzip), SHA256: sha},
		},
	}
}

func TestDownloader_Ensure(t *testing.T) {
	// Arrange
	content := "test tarball content"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(content))
	}))
	defer server.Close()

	reg := registry.New(t.TempDir())
	dl := NewDownloader(2, reg, nil, NewHTTPSource(nil))

	// Act
	path, err := dl.Ensure(context.Background(), testEntry(server.URL, "8.3.5", digest(content)), release.Gzip, false)

	// Assert
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != content {
		t.Errorf("file content = %q, want %q", data, content)
	}
}

func TestDownloader_Ensure_Cached(t *testing.T) {
	// Arrange: pre-populate the registry
	reg := registry.New(t.TempDir())
	key := release.CacheKey{Version: release.MustParseVersion("8.3.5"), Compression: release.Gzip}
	if err := os.WriteFile(reg.PathFor(key), []byte("cached"), 0644); err != nil {
		t.Fatal(err)
	}

	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.Write([]byte("new content"))
	}))
	defer server.Close()

	dl := NewDownloader(1, reg, nil, NewHTTPSource(nil))
	e := testEntry(server.URL, "8.3.5", "")

	// Act
	_, err := dl.Ensure(context.Background(), e, release.Gzip, false)

	// Assert
	if err != nil {
		t.Errorf("Ensure() error = %v", err)
	}
	if requestCount.Load() != 0 {
		t.Errorf("server was called %d times, want 0 (should use cache)", requestCount.Load())
	}

	// Force replaces the cached copy.
	if _, err := dl.Ensure(context.Background(), e, release.Gzip, true); err != nil {
		t.Fatalf("forced Ensure() error = %v", err)
	}
	data, _ := os.ReadFile(reg.PathFor(key))
	if string(data) != "new content" {
		t.Errorf("content after force = %q", data)
	}
}

func TestDownloader_Ensure_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	reg := registry.New(t.TempDir())
	dl := NewDownloader(1, reg, nil, NewHTTPSource(nil))

	_, err := dl.Ensure(context.Background(), testEntry(server.URL, "8.3.5", ""), release.Gzip, false)

	var terr *transport.Error
	if !errors.As(err, &terr) {
		t.Fatalf("Ensure() error = %v, want *transport.Error", err)
	}
	if reg.Has(release.CacheKey{Version: release.MustParseVersion("8.3.5"), Compression: release.Gzip}) {
		t.Error("failed download left an archive in the registry")
	}
}

func TestDownloader_Ensure_ChecksumMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tampered"))
	}))
	defer server.Close()

	reg := registry.New(t.TempDir())
	dl := NewDownloader(1, reg, nil, NewHTTPSource(nil))

	_, err := dl.Ensure(context.Background(), testEntry(server.URL, "8.3.5", digest("original")), release.Gzip, false)

	var cerr *ChecksumError
	if !errors.As(err, &cerr) {
		t.Fatalf("Ensure() error = %v, want *ChecksumError", err)
	}
	if reg.Has(release.CacheKey{Version: release.MustParseVersion("8.3.5"), Compression: release.Gzip}) {
		t.Error("archive with bad checksum was stored")
	}
}

func TestDownloader_Ensure_NotOffered(t *testing.T) {
	dl := NewDownloader(1, registry.New(t.TempDir()), nil, NewHTTPSource(nil))

	_, err := dl.Ensure(context.Background(), testEntry("http://unused", "8.3.5", ""), release.XZ, false)
	if !errors.Is(err, ErrNotOffered) {
		t.Errorf("Ensure() error = %v, want ErrNotOffered", err)
	}
}

func TestDownloader_Download_Parallel(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content for " + r.URL.Path))
	}))
	defer server.Close()

	reg := registry.New(t.TempDir())
	dl := NewDownloader(3, reg, nil, NewHTTPSource(nil))

	jobs := []Job{
		{Entry: testEntry(server.URL, "8.1.28", ""), Compression: release.Gzip},
		{Entry: testEntry(server.URL, "8.2.18", ""), Compression: release.Gzip},
		{Entry: testEntry(server.URL, "8.3.5", ""), Compression: release.Gzip},
	}

	// Act
	results := dl.Download(context.Background(), jobs)

	// Assert
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, r := range results {
		if r.Error != nil {
			t.Errorf("Download(%s) error = %v", r.Job.Key(), r.Error)
		}
		if !r.Job.Entry.Version.Equal(jobs[i].Entry.Version) {
			t.Errorf("result %d is for %s, want %s", i, r.Job.Key(), jobs[i].Key())
		}
		if _, err := os.Stat(r.Path); err != nil {
			t.Errorf("file %s was not created", r.Path)
		}
	}
}

type failingSource struct{ calls atomic.Int32 }

func (s *failingSource) Name() string { return "broken" }

func (s *failingSource) Open(context.Context, release.Entry, release.Compression) (io.ReadCloser, int64, error) {
	s.calls.Add(1)
	return nil, 0, errors.New("mirror unavailable")
}

type recordingPusher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPusher) Name() string { return "s3://mirror" }

func (p *recordingPusher) Put(_ context.Context, key release.CacheKey, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key.FileName())
	return nil
}

func TestDownloader_FallsBackAndPushes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("archive"))
	}))
	defer server.Close()

	broken := &failingSource{}
	pusher := &recordingPusher{}
	dl := NewDownloader(1, registry.New(t.TempDir()), nil, broken, NewHTTPSource(nil))
	dl.SetPusher(pusher)

	if _, err := dl.Ensure(context.Background(), testEntry(server.URL, "8.3.5", ""), release.Gzip, false); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if broken.calls.Load() != 1 {
		t.Errorf("first source called %d times, want 1", broken.calls.Load())
	}
	if len(pusher.keys) != 1 || pusher.keys[0] != "php-8.3.5.tar.gz" {
		t.Errorf("pushed %v, want php-8.3.5.tar.gz", pusher.keys)
	}
}
