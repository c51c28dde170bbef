package domain

import (
	"strings"
	"unicode"

	"go.trai.ch/zerr"
)

const maxPackageNameLength = 214

// PackageName identifies a package in the registry. It is either a bare
// name ("left-pad") or a scoped name ("@types/node"); the "@scope/" prefix is
// part of the value and is never stripped.
type PackageName string

// ParsePackageName validates raw and returns it as a PackageName.
func ParsePackageName(raw string) (PackageName, error) {
	if raw == "" {
		return "", zerr.Wrap(ErrInvalidPackageName, "package name is empty")
	}
	if len(raw) > maxPackageNameLength {
		return "", zerr.With(zerr.Wrap(ErrInvalidPackageName, "package name is too long"), "name", raw)
	}
	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return "", zerr.With(zerr.Wrap(ErrInvalidPackageName, "package name contains whitespace"), "name", raw)
	}

	bare := raw
	if strings.HasPrefix(raw, "@") {
		scope, rest, ok := strings.Cut(raw[1:], "/")
		if !ok || scope == "" || rest == "" {
			return "", zerr.With(zerr.Wrap(ErrInvalidPackageName, "scoped name must look like @scope/name"), "name", raw)
		}
		if err := validateSegment(scope, raw); err != nil {
			return "", err
		}
		bare = rest
	}

	if strings.Contains(bare, "/") {
		return "", zerr.With(zerr.Wrap(ErrInvalidPackageName, "package name contains a path separator"), "name", raw)
	}
	if err := validateSegment(bare, raw); err != nil {
		return "", err
	}
	return PackageName(raw), nil
}

// MustParsePackageName is like ParsePackageName but panics on error.
// It is intended for constants in tests.
func MustParsePackageName(raw string) PackageName {
	name, err := ParsePackageName(raw)
	if err != nil {
		panic(err)
	}
	return name
}

func validateSegment(segment, raw string) error {
	switch {
	case segment == "." || segment == "..":
		return zerr.With(zerr.Wrap(ErrInvalidPackageName, "package name is a relative path"), "name", raw)
	case strings.HasPrefix(segment, "."), strings.HasPrefix(segment, "_"):
		return zerr.With(zerr.Wrap(ErrInvalidPackageName, "package name cannot start with . or _"), "name", raw)
	case strings.ContainsAny(segment, `\:*?"<>|%@`):
		return zerr.With(zerr.Wrap(ErrInvalidPackageName, "package name contains a reserved character"), "name", raw)
	}
	return nil
}

// String returns the full name including any scope.
func (n PackageName) String() string {
	return string(n)
}

// IsScoped reports whether the name carries an "@scope/" prefix.
func (n PackageName) IsScoped() bool {
	return strings.HasPrefix(string(n), "@")
}

// Scope returns the scope including the leading "@", or "" for unscoped names.
func (n PackageName) Scope() string {
	if !n.IsScoped() {
		return ""
	}
	scope, _, _ := strings.Cut(string(n), "/")
	return scope
}

// Bare returns the name without its scope.
func (n PackageName) Bare() string {
	if !n.IsScoped() {
		return string(n)
	}
	_, bare, _ := strings.Cut(string(n), "/")
	return bare
}

// PackageKey returns the canonical "name@version" identifier of a pinned package.
func PackageKey(name PackageName, version string) string {
	return string(name) + "@" + version
}
