package release

import (
	"fmt"
	"strings"
)

// SpecifierKind says how much of a version the user supplied.
type SpecifierKind int

const (
	// Empty selects the newest release of the default branches.
	Empty SpecifierKind = iota
	// Partial names a branch (major.minor).
	Partial
	// Exact names one concrete version.
	Exact
)

// Specifier is a parsed user-supplied version string.
type Specifier struct {
	Kind    SpecifierKind
	Branch  Branch
	Version Version
	raw     string
}

// ParseSpecifier accepts "", "MAJOR.MINOR" or
// "MAJOR.MINOR.PATCH[-(alpha|beta|RC)N]".
func ParseSpecifier(s string) (Specifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Specifier{Kind: Empty}, nil
	}

	switch strings.Count(s, ".") {
	case 1:
		b, err := ParseBranch(s)
		if err != nil {
			return Specifier{}, err
		}
		return Specifier{Kind: Partial, Branch: b, raw: s}, nil
	case 2:
		v, err := ParseVersion(s)
		if err != nil {
			return Specifier{}, err
		}
		return Specifier{Kind: Exact, Branch: v.Branch(), Version: v, raw: s}, nil
	}
	return Specifier{}, fmt.Errorf("invalid version specifier %q: want MAJOR.MINOR or MAJOR.MINOR.PATCH", s)
}

// BranchSpecifier builds a partial specifier for b.
func BranchSpecifier(b Branch) Specifier {
	return Specifier{Kind: Partial, Branch: b}
}

// ExactSpecifier builds an exact specifier for v.
func ExactSpecifier(v Version) Specifier {
	return Specifier{Kind: Exact, Branch: v.Branch(), Version: v}
}

// Matches reports whether v falls under the specifier. Empty matches all.
func (s Specifier) Matches(v Version) bool {
	switch s.Kind {
	case Partial:
		return v.Branch() == s.Branch
	case Exact:
		return v.Equal(s.Version)
	}
	return true
}

func (s Specifier) String() string {
	switch s.Kind {
	case Partial:
		return s.Branch.String()
	case Exact:
		return s.Version.String()
	}
	return "(default branches)"
}

// Raw returns the text the specifier was parsed from, if any.
func (s Specifier) Raw() string {
	if s.raw != "" {
		return s.raw
	}
	return s.String()
}
