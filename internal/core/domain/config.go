package domain

import "time"

// Config is the effective runtime configuration after the config file,
// environment variables, and command line flags have been merged.
type Config struct {
	// RegistryURL is the base URL of the npm compatible registry.
	RegistryURL string

	// StoreDir is the root of the content addressable store.
	StoreDir string

	// LockfileName is the lockfile name relative to the project directory.
	LockfileName string

	// Concurrency bounds parallel metadata and tarball fetches.
	Concurrency int

	// Retries is the number of attempts for a retryable network operation.
	Retries int

	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration

	// Timeout bounds a single network attempt.
	Timeout time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		RegistryURL:  DefaultRegistryURL,
		StoreDir:     DefaultStorePath(),
		LockfileName: LockFileName,
		Concurrency:  16,
		Retries:      3,
		Backoff:      200 * time.Millisecond,
		Timeout:      30 * time.Second,
	}
}
