package resolver

import (
	"errors"
	"testing"

	"github.com/frederic-klein/phpfarm/internal/index"
	"github.com/frederic-klein/phpfarm/internal/release"
)

func entries(origin release.Origin, versions ...string) []release.Entry {
	out := make([]release.Entry, len(versions))
	for i, v := range versions {
		ver := release.MustParseVersion(v)
		out[i] = release.Entry{
			Version: ver,
			Origin:  origin,
			Sources: map[release.Compression]release.Source{
				release.Bzip2: {URL: "https://example.test/" + release.FileName(ver, release.Bzip2)},
			},
		}
	}
	return out
}

func testSnapshot() *index.Snapshot {
	return index.New(
		entries(release.OriginCurrent, "8.3.4", "8.3.5", "8.3.6RC1", "8.2.17", "8.2.18", "8.5.0alpha1", "8.5.0beta2"),
		entries(release.OriginMuseum, "5.6.39", "5.6.40", "8.3.0"),
	)
}

func branch(s string) release.Branch {
	b, err := release.ParseBranch(s)
	if err != nil {
		panic(err)
	}
	return b
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver([]release.Branch{branch("8.2"), branch("8.3")})
	snap := testSnapshot()

	tests := []struct {
		name string
		spec string
		want string
	}{
		{"exact current", "8.3.4", "8.3.4"},
		{"exact pre-release", "8.3.6-RC1", "8.3.6RC1"},
		{"exact museum", "8.3.0", "8.3.0"},
		{"partial prefers final over newer RC", "8.3", "8.3.5"},
		{"partial museum fallback", "5.6", "5.6.40"},
		{"partial with only pre-releases", "8.5", "8.5.0beta2"},
		{"empty picks newest default branch", "", "8.3.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			spec, err := release.ParseSpecifier(tt.spec)
			if err != nil {
				t.Fatal(err)
			}

			// Act
			got, err := r.Resolve(spec, snap)

			// Assert
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.spec, err)
			}
			if got.Version.String() != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.spec, got.Version, tt.want)
			}
		})
	}
}

func TestResolver_Resolve_NotFound(t *testing.T) {
	r := NewResolver([]release.Branch{branch("9.0")})
	snap := testSnapshot()

	tests := []struct {
		spec         string
		wantSearched int
	}{
		{"8.3.99", 2},
		{"7.1", 2},
		{"", 1},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			spec, _ := release.ParseSpecifier(tt.spec)

			_, err := r.Resolve(spec, snap)

			var nf *NotFoundError
			if !errors.As(err, &nf) {
				t.Fatalf("Resolve(%q) error = %v, want *NotFoundError", tt.spec, err)
			}
			if len(nf.Searched) != tt.wantSearched {
				t.Errorf("Searched = %v, want %d origins", nf.Searched, tt.wantSearched)
			}
		})
	}
}

func TestResolver_Resolve_PartialIgnoresMuseumWhenCurrentHasBranch(t *testing.T) {
	// 8.3.9 only in the museum must not beat the current feed's 8.3.5.
	snap := index.New(
		entries(release.OriginCurrent, "8.3.5"),
		entries(release.OriginMuseum, "8.3.9"),
	)
	r := NewResolver(nil)

	got, err := r.Resolve(release.BranchSpecifier(branch("8.3")), snap)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version.String() != "8.3.5" {
		t.Errorf("Resolve(8.3) = %s, want 8.3.5", got.Version)
	}
}

func TestResolver_Resolve_Deterministic(t *testing.T) {
	r := NewResolver([]release.Branch{branch("8.2"), branch("8.3"), branch("8.5")})
	snap := testSnapshot()

	first, err := r.Resolve(release.Specifier{}, snap)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		got, _ := r.Resolve(release.Specifier{}, snap)
		if !got.Version.Equal(first.Version) {
			t.Fatalf("run %d resolved %s, first run %s", i, got.Version, first.Version)
		}
	}
	if first.Version.String() != "8.3.5" {
		t.Errorf("empty specifier = %s, want 8.3.5 (finals beat 8.5 pre-releases)", first.Version)
	}
}

func TestResolver_Latest(t *testing.T) {
	r := NewResolver(nil)
	got := r.Latest([]release.Branch{branch("8.2"), branch("8.3"), branch("7.0")}, testSnapshot())

	if len(got) != 2 {
		t.Fatalf("Latest() returned %d entries, want 2", len(got))
	}
	if got[0].Version.String() != "8.2.18" || got[1].Version.String() != "8.3.5" {
		t.Errorf("Latest() = %s, %s", got[0].Version, got[1].Version)
	}
}
