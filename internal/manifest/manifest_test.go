package manifest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/frederic-klein/phpfarm/internal/release"
)

func TestManifest_Add(t *testing.T) {
	m := New(nil, "")
	m.Add("main/php.h")
	m.Add("./main/php.h")
	m.Add("Zend/zend.c")
	m.Add("")
	m.Add(".")

	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	if !m.Contains("main/php.h") || !m.Contains("./Zend/zend.c") {
		t.Error("Contains() missed a recorded path")
	}
	if m.Contains("configure") {
		t.Error("Contains() reported an unrecorded path")
	}
}

func TestEncodeDecode(t *testing.T) {
	// Arrange
	v := release.MustParseVersion("8.3.6RC1")
	m := New(&v, "php-8.3.6RC1.tar.xz")
	m.Add("configure.ac")
	m.Add("Zend/zend.c")
	m.Add("main/php.h")

	// Act
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := Decode(&buf)

	// Assert
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []string{"Zend/zend.c", "configure.ac", "main/php.h"}
	if !reflect.DeepEqual(got.Files(), want) {
		t.Errorf("Files() = %v, want %v", got.Files(), want)
	}
	if got.Version == nil || !got.Version.Equal(v) {
		t.Errorf("Version = %v, want %v", got.Version, v)
	}
	if got.Archive != "php-8.3.6RC1.tar.xz" {
		t.Errorf("Archive = %q", got.Archive)
	}
}

func TestEncode_Format(t *testing.T) {
	v := release.MustParseVersion("8.3.5")
	m := New(&v, "php-8.3.5.tar.bz2")
	m.Add("b")
	m.Add("a")

	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "# phpfarm manifest: version 1\n") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "8.3.5") {
		t.Errorf("missing version:\n%s", out)
	}
	a, b := strings.Index(out, "- a\n"), strings.Index(out, "- b\n")
	if a < 0 || b < 0 || a > b {
		t.Errorf("files not listed in sorted order:\n%s", out)
	}
}

func TestDecode_LegacyLines(t *testing.T) {
	input := "Makefile.in\n\nmain/php.h\n# comment\nZend/zend.c\n"

	m, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := []string{"Makefile.in", "Zend/zend.c", "main/php.h"}
	if !reflect.DeepEqual(m.Files(), want) {
		t.Errorf("Files() = %v, want %v", m.Files(), want)
	}
	if m.Version != nil {
		t.Error("legacy manifests carry no version")
	}
}

func TestWriteRead(t *testing.T) {
	root := t.TempDir()
	m := New(nil, "php-8.2.10.tar.gz")
	m.Add("A")
	m.Add("sub/B")

	if err := Write(root, m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, FileName)); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}

	got, err := Read(root)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !reflect.DeepEqual(got.Files(), []string{"A", "sub/B"}) {
		t.Errorf("Files() = %v", got.Files())
	}
}

func TestRead_NoManifest(t *testing.T) {
	_, err := Read(t.TempDir())
	if !errors.Is(err, ErrNoManifest) {
		t.Errorf("Read() error = %v, want ErrNoManifest", err)
	}
}
