package domain

// VertexStatus represents the lifecycle state of one package during installation.
type VertexStatus string

const (
	// VertexStatusPending indicates the package is waiting for a worker.
	VertexStatusPending VertexStatus = "pending"
	// VertexStatusRunning indicates the package is being fetched.
	VertexStatusRunning VertexStatus = "running"
	// VertexStatusCompleted indicates the package was downloaded and stored.
	VertexStatusCompleted VertexStatus = "completed"
	// VertexStatusFailed indicates the package could not be fetched.
	VertexStatusFailed VertexStatus = "failed"
	// VertexStatusCached indicates the content store already held the package.
	VertexStatusCached VertexStatus = "cached"
)

// IsTerminal checks if a status is a terminal state (Completed, Failed, Cached).
func (s VertexStatus) IsTerminal() bool {
	switch s {
	case VertexStatusCompleted, VertexStatusFailed, VertexStatusCached:
		return true
	default:
		return false
	}
}

// LogLevel represents the severity of a log message, mirroring the standard slog levels.
type LogLevel int

const (
	// LogLevelDebug represents debug-level verbosity.
	LogLevelDebug LogLevel = -4
	// LogLevelInfo represents informational verbosity.
	LogLevelInfo LogLevel = 0
	// LogLevelWarn represents warning verbosity.
	LogLevelWarn LogLevel = 4
	// LogLevelError represents error verbosity.
	LogLevelError LogLevel = 8
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}
