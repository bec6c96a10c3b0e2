// Package domain defines core entities and value objects for conv.
//
// This file contains the generator-facing types: role-tagged messages going
// out and assembled text coming back. They are transient and never persisted.
package domain

// Role tags a prompt message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message follows the role/content pair required by most chat APIs.
type Message struct {
	Role    Role   `yaml:"role"`
	Content string `yaml:"content"`
}

// Generation is the successful result of a CommandGenerator call.
type Generation struct {
	Text     string
	Provider string
	Model    string
}

// ProviderKind enumerates supported generator backends.
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderOllama    ProviderKind = "ollama"
	ProviderGemini    ProviderKind = "gemini"
)

// AllowsAnonymous reports whether the provider can be called without a credential.
func (k ProviderKind) AllowsAnonymous() bool {
	return k == ProviderOllama
}

// DefaultCredentialName is the credential section used by a provider when the
// configuration does not name one.
func (k ProviderKind) DefaultCredentialName() string {
	switch k {
	case ProviderAnthropic:
		return "ANTHROPIC"
	case ProviderGemini:
		return "GEMINI"
	case ProviderOllama:
		return "OLLAMA"
	default:
		return "OPENAI"
	}
}
