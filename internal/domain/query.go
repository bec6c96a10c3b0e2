package domain

import "time"

// Request captures one invocation's natural-language request.
type Request struct {
	Text string
	// ModelOverride and ProviderOverride replace the configured generator for this run.
	ModelOverride    string
	ProviderOverride ProviderKind
}

// Outcome is the canonical response propagated back to the CLI.
type Outcome struct {
	Request   string
	Command   string
	Status    Status
	Execution *ExecutionResult
	Provider  string
	Model     string
	// Warnings are non-fatal problems (history unreadable, credential not persisted...).
	Warnings []string
}

// ExecutionResult wraps details from the command executor.
type ExecutionResult struct {
	Status   Status
	ExitCode int
	// Skipped is true when the text carried the diagnostic marker and never reached the shell.
	Skipped  bool
	Duration time.Duration
}
