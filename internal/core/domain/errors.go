package domain

import (
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrInvalidRangeSyntax is returned when a version range expression cannot be parsed.
	ErrInvalidRangeSyntax = zerr.New("invalid range syntax")

	// ErrInvalidVersion is returned when a version string is not a valid semantic version.
	ErrInvalidVersion = zerr.New("invalid version")

	// ErrInvalidPackageName is returned when a package name violates registry naming rules.
	ErrInvalidPackageName = zerr.New("invalid package name")

	// ErrInvalidSpecifier is returned when a requested specifier cannot be split into name and constraint.
	ErrInvalidSpecifier = zerr.New("invalid package specifier")

	// ErrInvalidIntegrity is returned when an integrity string uses an unknown algorithm or bad encoding.
	ErrInvalidIntegrity = zerr.New("invalid integrity digest")

	// ErrNoSpecifiers is returned when install is invoked without specifiers and without a lockfile.
	ErrNoSpecifiers = zerr.New("no packages specified")

	// ErrPackageNotFound is returned when the registry does not know the requested package name.
	ErrPackageNotFound = zerr.New("package not found")

	// ErrRegistryUnavailable is returned when the registry could not be reached after all retries.
	ErrRegistryUnavailable = zerr.New("registry unavailable")

	// ErrMalformedResponse is returned when the registry returned data that does not parse.
	ErrMalformedResponse = zerr.New("malformed registry response")

	// ErrUnsatisfiableRange is returned when no published version satisfies a constraint.
	ErrUnsatisfiableRange = zerr.New("no version satisfies range")

	// ErrFetchFailed is returned when a tarball download fails after all retries.
	ErrFetchFailed = zerr.New("fetch failed")

	// ErrIntegrityViolation is returned when downloaded bytes do not match the published digest.
	ErrIntegrityViolation = zerr.New("integrity violation")

	// ErrExtractionFailed is returned when a tarball cannot be unpacked into the store.
	ErrExtractionFailed = zerr.New("extraction failed")

	// ErrStoreCreateFailed is returned when the content store directories cannot be created.
	ErrStoreCreateFailed = zerr.New("failed to create content store")

	// ErrLockfileMalformed is returned when an existing lockfile cannot be decoded.
	ErrLockfileMalformed = zerr.New("malformed lockfile")

	// ErrLockfileWriteFailed is returned when the lockfile cannot be written.
	ErrLockfileWriteFailed = zerr.New("failed to write lockfile")

	// ErrLockfileOutOfDate is returned when a frozen install finds a lockfile that does not match the request.
	ErrLockfileOutOfDate = zerr.New("lockfile does not match requested packages")

	// ErrLinkFailed is returned when the project dependency tree cannot be materialized.
	ErrLinkFailed = zerr.New("failed to link packages into project")

	// ErrConfigInvalid is returned when the configuration file or overrides contain invalid values.
	ErrConfigInvalid = zerr.New("invalid configuration")

	// ErrDuplicateNode is returned when a graph holds two nodes for the same name and version.
	ErrDuplicateNode = zerr.New("duplicate resolution node")

	// ErrUnknownNode is returned when a graph operation references a node that does not exist.
	ErrUnknownNode = zerr.New("unknown resolution node")
)

// WithCause joins cause under sentinel so that errors.Is matches either of them.
// A nil cause returns the sentinel unchanged.
func WithCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
