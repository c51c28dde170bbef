package commands

import (
	"errors"

	"go.trai.ch/pie/internal/core/domain"
)

// Exit codes returned by the pie binary.
const (
	ExitOK                  = 0
	ExitFailure             = 1
	ExitUsage               = 2
	ExitPackageNotFound     = 3
	ExitUnsatisfiableRange  = 4
	ExitRegistryUnavailable = 5
	ExitFetchFailed         = 6
	ExitIntegrityViolation  = 7
	ExitExtractionFailed    = 8
	ExitLockfile            = 9
)

// exitCodes is checked in order; the first sentinel found in the chain wins.
// Integrity and extraction come before fetch since a fetch failure may wrap them.
var exitCodes = []struct {
	err  error
	code int
}{
	{domain.ErrIntegrityViolation, ExitIntegrityViolation},
	{domain.ErrExtractionFailed, ExitExtractionFailed},
	{domain.ErrFetchFailed, ExitFetchFailed},
	{domain.ErrUnsatisfiableRange, ExitUnsatisfiableRange},
	{domain.ErrPackageNotFound, ExitPackageNotFound},
	{domain.ErrRegistryUnavailable, ExitRegistryUnavailable},
	{domain.ErrMalformedResponse, ExitRegistryUnavailable},
	{domain.ErrInvalidRangeSyntax, ExitUsage},
	{domain.ErrInvalidPackageName, ExitUsage},
	{domain.ErrInvalidSpecifier, ExitUsage},
	{domain.ErrNoSpecifiers, ExitUsage},
	{domain.ErrLockfileMalformed, ExitLockfile},
	{domain.ErrLockfileWriteFailed, ExitLockfile},
	{domain.ErrLockfileOutOfDate, ExitLockfile},
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, e := range exitCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ExitFailure
}
