package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is used for directories holding secrets (rwx------)
	DirectoryPermissions = 0o700
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
	// SharedFilePermissions is the permission for the history log (rw-r--r--)
	SharedFilePermissions = 0o644
)

// Timeout and duration constants
const (
	// DefaultGeneratorTimeout bounds one generator call
	DefaultGeneratorTimeout = 60 * time.Second
	// DefaultExecutionTimeout bounds one generated command
	DefaultExecutionTimeout = 30 * time.Minute
	// DefaultProbeTimeout bounds helper probes such as tool detection
	DefaultProbeTimeout = 2 * time.Second
)

// History constants
const (
	// DefaultHistoryWindow is the number of recent turns fed back into prompts
	DefaultHistoryWindow = 5
	// DefaultHistoryFileName lives in the system temporary directory
	DefaultHistoryFileName = "conv_history.txt"
	// HistoryBackendText is the line-oriented log
	HistoryBackendText = "text"
	// HistoryBackendSQLite stores turns in a SQLite database
	HistoryBackendSQLite = "sqlite"
)

// Execution constants
const (
	// DiagnosticMarker prefixes generator output that explains a failure instead of a command
	DiagnosticMarker = "ERROR:"
	// DefaultMaxDiagnosticBytes bounds captured stderr kept in a status
	DefaultMaxDiagnosticBytes = 2048
	// DefaultShell runs generated scripts
	DefaultShell = "/bin/sh"
)

// Generator defaults
const (
	DefaultMaxTokens   = 512
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339Nano
)
