package domain

import "strings"

// CredentialSource records where a resolved credential came from.
type CredentialSource string

const (
	SourceEnv       CredentialSource = "env"
	SourceFile      CredentialSource = "file"
	SourcePrompt    CredentialSource = "prompt"
	SourceAnonymous CredentialSource = "anonymous"
)

// Credential is a resolved named secret.
type Credential struct {
	Name   string
	Value  string
	Source CredentialSource
	// PersistErr is set when a prompted value could not be written back. The
	// value is still valid for the current invocation.
	PersistErr error
}

// CredentialEnvVar returns the override variable for a credential, e.g. OPENAI -> OPENAI_API_KEY.
func CredentialEnvVar(name string) string {
	return NormalizeCredentialName(name) + "_API_KEY"
}

// NormalizeCredentialName upper-cases and trims a credential name.
func NormalizeCredentialName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
