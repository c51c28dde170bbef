package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// LatestTag is the distribution tag used when a specifier names no constraint.
const LatestTag = "latest"

// VersionSpecifier pairs a package name with a constraint expression: an exact
// version, a range, or a distribution tag. The zero value is not valid.
type VersionSpecifier struct {
	Name       PackageName
	Constraint string
}

// NewSpecifier builds a specifier from an already validated name.
// An empty constraint is normalized to "latest".
func NewSpecifier(name PackageName, constraint string) VersionSpecifier {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		constraint = LatestTag
	}
	return VersionSpecifier{Name: name, Constraint: constraint}
}

// ParseSpecifier splits raw ("name", "name@range", "@scope/name@range") into
// a name and a constraint. The first "@" after position 0 separates the
// version, so a leading "@" always belongs to the scope.
func ParseSpecifier(raw string) (VersionSpecifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return VersionSpecifier{}, zerr.Wrap(ErrInvalidSpecifier, "specifier is empty")
	}

	namePart, constraint := raw, ""
	if idx := strings.Index(raw[1:], "@"); idx >= 0 {
		namePart = raw[:idx+1]
		constraint = raw[idx+2:]
	}

	name, err := ParsePackageName(namePart)
	if err != nil {
		return VersionSpecifier{}, zerr.With(WithCause(ErrInvalidSpecifier, err), "specifier", raw)
	}
	return NewSpecifier(name, constraint), nil
}

// String renders the specifier as "name@constraint".
func (s VersionSpecifier) String() string {
	return string(s.Name) + "@" + s.Constraint
}
