// Package semver implements semantic version precedence and npm style range
// expressions.
package semver

import (
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/pie/internal/core/domain"
	"go.trai.ch/zerr"
	modsemver "golang.org/x/mod/semver"
)

// Version is a parsed semantic version. Build metadata is kept for display
// but never affects ordering.
type Version struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	Prerelease []string
	Build      []string
}

// Parse parses a strict MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD] version.
// A single leading "v" or "=" is tolerated.
func Parse(raw string) (Version, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "=")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "v"), "V")

	v, err := parseVersion(s)
	if err != nil {
		return Version{}, zerr.With(err, "version", raw)
	}
	return v, nil
}

// MustParse is like Parse but panics on error.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func parseVersion(s string) (Version, error) {
	canonical := "v" + s
	if !modsemver.IsValid(canonical) {
		return Version{}, zerr.Wrap(domain.ErrInvalidVersion, "not a semantic version")
	}

	// IsValid also accepts the v1 and v1.2 shorthands.
	core, _ := splitCore(s)
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, zerr.Wrap(domain.ErrInvalidVersion, "expected major.minor.patch")
	}

	var v Version
	nums := [3]*uint64{&v.Major, &v.Minor, &v.Patch}
	for i, part := range parts {
		n, err := parseNumeric(part)
		if err != nil {
			return Version{}, err
		}
		*nums[i] = n
	}
	v.Prerelease, v.Build = splitTags(canonical)
	return v, nil
}

// splitCore separates the numeric core from a "-prerelease+build" suffix.
func splitCore(s string) (core, suffix string) {
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// splitTags returns the prerelease and build identifiers of a valid
// "v"-prefixed version.
func splitTags(canonical string) (prerelease, build []string) {
	if pre := modsemver.Prerelease(canonical); pre != "" {
		prerelease = strings.Split(pre[1:], ".")
	}
	if b := modsemver.Build(canonical); b != "" {
		build = strings.Split(b[1:], ".")
	}
	return prerelease, build
}

// maxComponent is the largest component npm accepts (2^53-1). It also keeps
// the +1 bumps of range desugaring from overflowing.
const maxComponent = 1<<53 - 1

func parseNumeric(s string) (uint64, error) {
	if s == "" || !isNumeric(s) {
		return 0, zerr.With(zerr.Wrap(domain.ErrInvalidVersion, "non-numeric component"), "component", s)
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, zerr.With(zerr.Wrap(domain.ErrInvalidVersion, "leading zero"), "component", s)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n > maxComponent {
		return 0, zerr.With(zerr.Wrap(domain.ErrInvalidVersion, "component out of range"), "component", s)
	}
	return n, nil
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// String renders the canonical form of v.
func (v Version) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(v.Major, 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(v.Minor, 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(v.Patch, 10))
	if len(v.Prerelease) > 0 {
		b.WriteByte('-')
		b.WriteString(strings.Join(v.Prerelease, "."))
	}
	if len(v.Build) > 0 {
		b.WriteByte('+')
		b.WriteString(strings.Join(v.Build, "."))
	}
	return b.String()
}

// IsPrerelease reports whether v carries prerelease identifiers.
func (v Version) IsPrerelease() bool {
	return len(v.Prerelease) > 0
}

// sameTuple reports whether a and b share major, minor, and patch.
func sameTuple(a, b Version) bool {
	return a.Major == b.Major && a.Minor == b.Minor && a.Patch == b.Patch
}

// Compare returns -1, 0, or +1 depending on the precedence of a and b.
// Build metadata is ignored.
func Compare(a, b Version) int {
	return modsemver.Compare("v"+a.String(), "v"+b.String())
}

// Sort orders versions ascending by precedence.
func Sort(versions []Version) {
	slices.SortStableFunc(versions, Compare)
}
