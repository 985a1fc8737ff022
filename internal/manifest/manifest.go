// Package manifest records which files an extraction wrote into a source
// tree, so later operations can tell upstream files from local additions.
package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	"github.com/frederic-klein/phpfarm/internal/release"
)

// FileName is the sidecar written at the root of every extracted tree.
const FileName = ".phpfarm-manifest"

const header = "# phpfarm manifest: version 1\n"

// ErrNoManifest is returned by Read when a tree has no sidecar.
var ErrNoManifest = errors.New("tree has no manifest")

// Manifest is the set of tree-relative paths one extraction wrote.
// Directories are never listed.
type Manifest struct {
	Version *release.Version
	Archive string
	Created time.Time

	files []string
	set   map[string]bool
}

// New creates an empty manifest for an extraction of v from archive.
func New(v *release.Version, archive string) *Manifest {
	return &Manifest{Version: v, Archive: archive, Created: time.Now().UTC()}
}

// Add records a path relative to the tree root. Duplicates are ignored.
func (m *Manifest) Add(p string) {
	p = normalize(p)
	if p == "" || p == "." {
		return
	}
	if m.set == nil {
		m.set = make(map[string]bool)
	}
	if m.set[p] {
		return
	}
	m.set[p] = true
	m.files = append(m.files, p)
}

// Contains reports whether p was written by the extraction.
func (m *Manifest) Contains(p string) bool {
	return m.set[normalize(p)]
}

// Len returns the number of recorded paths.
func (m *Manifest) Len() int {
	return len(m.files)
}

// Files returns the recorded paths, sorted.
func (m *Manifest) Files() []string {
	out := make([]string, len(m.files))
	copy(out, m.files)
	sort.Strings(out)
	return out
}

func normalize(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	return path.Clean(p)
}

type document struct {
	Version string    `yaml:"version,omitempty"`
	Archive string    `yaml:"archive,omitempty"`
	Created time.Time `yaml:"created,omitempty"`
	Files   []string  `yaml:"files"`
}

// Encode writes m in the sidecar format.
func Encode(w io.Writer, m *Manifest) error {
	doc := document{Archive: m.Archive, Created: m.Created, Files: m.Files()}
	if m.Version != nil {
		doc.Version = m.Version.String()
	}

	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// Decode parses a sidecar. Files that do not start with the format header
// are read as the older plain list of one path per line.
func Decode(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte(header)) {
		return decodeLines(data)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	m := &Manifest{Archive: doc.Archive, Created: doc.Created}
	if doc.Version != "" {
		v, err := release.ParseVersion(doc.Version)
		if err != nil {
			return nil, fmt.Errorf("parsing manifest: %w", err)
		}
		m.Version = &v
	}
	for _, f := range doc.Files {
		m.Add(f)
	}
	return m, nil
}

func decodeLines(data []byte) (*Manifest, error) {
	m := &Manifest{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.Add(line)
	}
	return m, scanner.Err()
}

// Path returns the sidecar location for a tree.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Write atomically stores m as the sidecar of the tree at root.
func Write(root string, m *Manifest) error {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := renameio.WriteFile(Path(root), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Read loads the sidecar of the tree at root.
func Read(root string) (*Manifest, error) {
	f, err := os.Open(Path(root))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", root, ErrNoManifest)
	}
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	return Decode(f)
}
