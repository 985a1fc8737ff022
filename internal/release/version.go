package release

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is a pre-release kind. Kinds are ordered alpha < beta < RC.
type Kind int

const (
	Alpha Kind = iota + 1
	Beta
	RC
)

func (k Kind) String() string {
	switch k {
	case Alpha:
		return "alpha"
	case Beta:
		return "beta"
	case RC:
		return "RC"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// PreRelease tags a version as alpha, beta or release candidate. The zero
// value marks a final release.
type PreRelease struct {
	Kind    Kind
	Ordinal uint
}

func (p PreRelease) String() string {
	if p.Ordinal == 0 {
		return p.Kind.String()
	}
	return p.Kind.String() + strconv.FormatUint(uint64(p.Ordinal), 10)
}

// Version is a concrete PHP release number, e.g. 8.3.5 or 8.4.0RC2.
// Version and the keys embedding it are comparable with ==.
type Version struct {
	Major uint
	Minor uint
	Patch uint
	Pre   PreRelease
}

// Branch is a major.minor pair spanning all its patch and pre-releases.
type Branch struct {
	Major uint
	Minor uint
}

func (b Branch) String() string {
	return fmt.Sprintf("%d.%d", b.Major, b.Minor)
}

// Compare orders branches numerically.
func (b Branch) Compare(o Branch) int {
	if c := cmpUint(b.Major, o.Major); c != 0 {
		return c
	}
	return cmpUint(b.Minor, o.Minor)
}

// Branch returns the major.minor branch the version belongs to.
func (v Version) Branch() Branch {
	return Branch{Major: v.Major, Minor: v.Minor}
}

// IsPreRelease reports whether v carries an alpha, beta or RC tag.
func (v Version) IsPreRelease() bool {
	return v.Pre.Kind != 0
}

// String renders the version the way upstream names its archives
// (8.3.5, 8.4.0RC2, 8.4.0alpha1).
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.IsPreRelease() {
		s += v.Pre.String()
	}
	return s
}

// Equal reports whether all fields of v and o are equal.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// Compare returns -1, 0 or +1. The (major, minor, patch) triple is compared
// first; for equal triples a final release outranks any pre-release, and
// pre-releases order by kind then ordinal.
func (v Version) Compare(o Version) int {
	if c := cmpUint(v.Major, o.Major); c != 0 {
		return c
	}
	if c := cmpUint(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := cmpUint(v.Patch, o.Patch); c != 0 {
		return c
	}

	switch {
	case !v.IsPreRelease() && !o.IsPreRelease():
		return 0
	case !v.IsPreRelease():
		return 1
	case !o.IsPreRelease():
		return -1
	}

	if v.Pre.Kind != o.Pre.Kind {
		if v.Pre.Kind < o.Pre.Kind {
			return -1
		}
		return 1
	}
	return cmpUint(v.Pre.Ordinal, o.Pre.Ordinal)
}

// MarshalText implements encoding.TextMarshaler so versions render as
// strings in JSON and YAML.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(data []byte) error {
	parsed, err := ParseVersion(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

var (
	versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:-?(?i:(alpha|beta|rc))(\d*))?$`)
	branchRe  = regexp.MustCompile(`^(\d+)\.(\d+)$`)
)

// ParseVersion parses a full version such as "8.3.5", "8.3.0RC2" or
// "8.3.0-RC2".
func ParseVersion(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}

	var v Version
	var err error
	if v.Major, err = parseUint(m[1]); err != nil {
		return Version{}, fmt.Errorf("invalid major version in %q: %w", s, err)
	}
	if v.Minor, err = parseUint(m[2]); err != nil {
		return Version{}, fmt.Errorf("invalid minor version in %q: %w", s, err)
	}
	if v.Patch, err = parseUint(m[3]); err != nil {
		return Version{}, fmt.Errorf("invalid patch version in %q: %w", s, err)
	}

	if m[4] != "" {
		var pre PreRelease
		switch strings.ToLower(m[4]) {
		case "alpha":
			pre.Kind = Alpha
		case "beta":
			pre.Kind = Beta
		case "rc":
			pre.Kind = RC
		}
		if m[5] != "" {
			if pre.Ordinal, err = parseUint(m[5]); err != nil {
				return Version{}, fmt.Errorf("invalid pre-release number in %q: %w", s, err)
			}
		}
		v.Pre = pre
	}

	return v, nil
}

// MustParseVersion is like ParseVersion but panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseBranch parses a "major.minor" pair.
func ParseBranch(s string) (Branch, error) {
	m := branchRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Branch{}, fmt.Errorf("invalid branch %q", s)
	}
	major, err := parseUint(m[1])
	if err != nil {
		return Branch{}, fmt.Errorf("invalid major version in %q: %w", s, err)
	}
	minor, err := parseUint(m[2])
	if err != nil {
		return Branch{}, fmt.Errorf("invalid minor version in %q: %w", s, err)
	}
	return Branch{Major: major, Minor: minor}, nil
}

func parseUint(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(n), nil
}

func cmpUint(a, b uint) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
