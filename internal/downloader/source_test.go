package downloader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/frederic-klein/phpfarm/internal/registry"
	"github.com/frederic-klein/phpfarm/internal/release"
)

// fakeS3 answers path-style GetObject and PutObject requests for one bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	puts    []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		io.WriteString(w, body)
	case http.MethodPut:
		io.Copy(io.Discard, r.Body)
		f.puts = append(f.puts, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(t *testing.T, fake *fakeS3) *S3Source {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	src, err := NewS3Source(context.Background(), S3Config{
		Bucket:    "php-mirror",
		Prefix:    "distributions",
		Region:    "us-east-1",
		Endpoint:  server.URL,
		PathStyle: true,
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("NewS3Source() error = %v", err)
	}
	return src
}

func TestS3Source_Open(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"/php-mirror/distributions/php-8.3.5.tar.gz": "from the mirror",
	}}
	src := newTestS3(t, fake)
	e := testEntry("http://unused", "8.3.5", "")

	body, _, err := src.Open(context.Background(), e, release.Gzip)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "from the mirror" {
		t.Errorf("body = %q", data)
	}
}

func TestS3Source_MissFallsBackToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("from upstream"))
	}))
	defer upstream.Close()

	fake := &fakeS3{objects: map[string]string{}}
	mirror := newTestS3(t, fake)

	reg := registry.New(t.TempDir())
	dl := NewDownloader(1, reg, nil, mirror, NewHTTPSource(nil))
	dl.SetPusher(mirror)

	path, err := dl.Ensure(context.Background(), testEntry(upstream.URL, "8.3.5", ""), release.Gzip, false)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "from upstream" {
		t.Errorf("content = %q", data)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.puts) != 1 || fake.puts[0] != "/php-mirror/distributions/php-8.3.5.tar.gz" {
		t.Errorf("mirror uploads = %v", fake.puts)
	}
}

func TestS3Source_Key(t *testing.T) {
	src := &S3Source{bucket: "b", prefix: "php/dist"}
	key := release.CacheKey{Version: release.MustParseVersion("8.4.0RC1"), Compression: release.XZ}

	if got := src.Key(key); got != "php/dist/php-8.4.0RC1.tar.xz" {
		t.Errorf("Key() = %q", got)
	}
	if got := src.Name(); got != "s3://"+filepath.ToSlash("b/php/dist") {
		t.Errorf("Name() = %q", got)
	}
}

func TestNewS3Source_RequiresBucket(t *testing.T) {
	if _, err := NewS3Source(context.Background(), S3Config{}); err == nil {
		t.Error("NewS3Source() without bucket should fail")
	}
}
