package release

import (
	"sort"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input string
		want  Version
	}{
		{"7.4.0", Version{Major: 7, Minor: 4, Patch: 0}},
		{"7.4.1", Version{Major: 7, Minor: 4, Patch: 1}},
		{"8.0.0alpha", Version{Major: 8, Patch: 0, Pre: PreRelease{Kind: Alpha}}},
		{"8.0.0beta3", Version{Major: 8, Pre: PreRelease{Kind: Beta, Ordinal: 3}}},
		{"8.0.0RC1", Version{Major: 8, Pre: PreRelease{Kind: RC, Ordinal: 1}}},
		{"8.3.6-RC1", Version{Major: 8, Minor: 3, Patch: 6, Pre: PreRelease{Kind: RC, Ordinal: 1}}},
		{"8.3.0rc5", Version{Major: 8, Minor: 3, Pre: PreRelease{Kind: RC, Ordinal: 5}}},
		{"8.2.12", Version{Major: 8, Minor: 2, Patch: 12}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if err != nil {
				t.Fatalf("ParseVersion(%q) error = %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseVersion(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseVersion_Invalid(t *testing.T) {
	for _, input := range []string{"", "8", "8.3", "8.3.x", "8.3.0gamma1", "php-8.3.0", "8.3.0-"} {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseVersion(input); err == nil {
				t.Errorf("ParseVersion(%q) should fail", input)
			}
		})
	}
}

func TestVersion_String(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"8.3.0RC5", "8.3.0RC5"},
		{"8.3.6-RC1", "8.3.6RC1"},
		{"8.4.0-alpha1", "8.4.0alpha1"},
		{"8.0.0beta", "8.0.0beta"},
		{"8.2.10", "8.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := MustParseVersion(tt.input).String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVersion_Sorting(t *testing.T) {
	versions := []string{
		"8.3.1alpha1",
		"7.4.1",
		"7.4.0",
		"8.3.0beta1",
		"8.3.0",
		"8.3.0RC2",
		"8.3.0alpha1",
		"8.3.0RC1",
		"8.3.0beta2",
		"8.3.0alpha2",
	}
	want := []string{
		"7.4.0",
		"7.4.1",
		"8.3.0alpha1",
		"8.3.0alpha2",
		"8.3.0beta1",
		"8.3.0beta2",
		"8.3.0RC1",
		"8.3.0RC2",
		"8.3.0",
		"8.3.1alpha1",
	}

	parsed := make([]Version, len(versions))
	for i, s := range versions {
		parsed[i] = MustParseVersion(s)
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Less(parsed[j]) })

	for i, v := range parsed {
		if v.String() != want[i] {
			t.Errorf("position %d = %s, want %s", i, v, want[i])
		}
	}
}

func TestVersion_Compare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"8.3.0RC2", "8.3.0", -1},
		{"8.3.0", "8.3.1alpha1", -1},
		{"8.3.0RC2", "8.3.0RC1", 1},
		{"8.3.0beta9", "8.3.0RC1", -1},
		{"8.3.0alpha9", "8.3.0beta1", -1},
		{"8.3.10", "8.3.9", 1},
		{"8.10.0", "8.9.30", 1},
		{"8.3.6-RC1", "8.3.6RC1", 0},
		{"7.4.33", "8.0.0alpha1", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			a, b := MustParseVersion(tt.a), MustParseVersion(tt.b)
			if got := a.Compare(b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := b.Compare(a); got != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestVersion_Equal(t *testing.T) {
	if !MustParseVersion("8.3.0RC1").Equal(MustParseVersion("8.3.0-rc1")) {
		t.Error("8.3.0RC1 should equal 8.3.0-rc1")
	}
	if MustParseVersion("8.3.0RC1").Equal(MustParseVersion("8.3.0")) {
		t.Error("8.3.0RC1 should not equal 8.3.0")
	}
	if MustParseVersion("8.3.0alpha1").Equal(MustParseVersion("8.3.0beta1")) {
		t.Error("8.3.0alpha1 should not equal 8.3.0beta1")
	}
}

func TestParseBranch(t *testing.T) {
	b, err := ParseBranch("8.3")
	if err != nil {
		t.Fatalf("ParseBranch() error = %v", err)
	}
	if b != (Branch{Major: 8, Minor: 3}) {
		t.Errorf("ParseBranch() = %v", b)
	}
	if b.String() != "8.3" {
		t.Errorf("String() = %q, want 8.3", b.String())
	}

	if _, err := ParseBranch("8.3.1"); err == nil {
		t.Error("ParseBranch(8.3.1) should fail")
	}
}

func TestVersion_TextRoundTrip(t *testing.T) {
	v := MustParseVersion("8.4.0RC3")

	data, err := v.MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	var got Version
	if err := got.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if !got.Equal(v) {
		t.Errorf("round trip = %v, want %v", got, v)
	}
}
