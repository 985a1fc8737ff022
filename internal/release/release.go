package release

import (
	"fmt"
	"strings"
	"time"
)

// Compression is an archive compression kind offered upstream.
type Compression string

const (
	Gzip  Compression = "gz"
	Bzip2 Compression = "bz2"
	XZ    Compression = "xz"
)

// Compressions lists every supported compression kind.
var Compressions = []Compression{Gzip, Bzip2, XZ}

// ParseCompression parses a compression name; "bz" is accepted for bz2.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gz", "gzip":
		return Gzip, nil
	case "bz2", "bz", "bzip2":
		return Bzip2, nil
	case "xz":
		return XZ, nil
	}
	return "", fmt.Errorf("unknown compression %q (want gz, bz2 or xz)", s)
}

func (c Compression) String() string {
	return string(c)
}

// Origin records which upstream listing an entry came from.
type Origin string

const (
	OriginCurrent Origin = "current"
	OriginMuseum  Origin = "museum"
)

// Source locates one downloadable archive of a release.
type Source struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// Entry is a release known to one of the upstream feeds.
type Entry struct {
	Version Version                `json:"version"`
	Origin  Origin                 `json:"origin"`
	Date    time.Time              `json:"date,omitempty"`
	Sources map[Compression]Source `json:"sources"`
}

// Source returns the archive location for the given compression.
func (e Entry) Source(c Compression) (Source, bool) {
	s, ok := e.Sources[c]
	return s, ok
}

// CacheKey identifies one archive in the registry.
type CacheKey struct {
	Version     Version
	Compression Compression
}

// FileName returns the archive name upstream uses, e.g. php-8.3.5.tar.bz2.
func (k CacheKey) FileName() string {
	return FileName(k.Version, k.Compression)
}

func (k CacheKey) String() string {
	return k.FileName()
}

// FileName returns php-<version>.tar.<ext>.
func FileName(v Version, c Compression) string {
	return fmt.Sprintf("php-%s.tar.%s", v, c)
}

// ParseFileName turns an archive name back into a CacheKey.
func ParseFileName(name string) (CacheKey, error) {
	rest, ok := strings.CutPrefix(name, "php-")
	if !ok {
		return CacheKey{}, fmt.Errorf("archive name %q does not start with php-", name)
	}
	idx := strings.LastIndex(rest, ".tar.")
	if idx == -1 {
		return CacheKey{}, fmt.Errorf("archive name %q has no .tar.<ext> suffix", name)
	}

	c, err := ParseCompression(rest[idx+len(".tar."):])
	if err != nil {
		return CacheKey{}, fmt.Errorf("archive name %q: %w", name, err)
	}
	v, err := ParseVersion(rest[:idx])
	if err != nil {
		return CacheKey{}, fmt.Errorf("archive name %q: %w", name, err)
	}
	return CacheKey{Version: v, Compression: c}, nil
}
