package domain

// Config mirrors ~/.config/conv/config.yaml.
type Config struct {
	ConfigFormatVersion string             `yaml:"config_format_version"`
	Generator           GeneratorSettings  `yaml:"generator"`
	History             HistorySettings    `yaml:"history"`
	Execution           ExecutionSettings  `yaml:"execution"`
	Credentials         CredentialSettings `yaml:"credentials"`
	Prompt              PromptSettings     `yaml:"prompt"`
	Context             ContextSettings    `yaml:"context"`
}

// GeneratorSettings selects and tunes the command generator.
type GeneratorSettings struct {
	Provider       ProviderKind `yaml:"provider"`
	Model          string       `yaml:"model"`
	Endpoint       string       `yaml:"endpoint,omitempty"`
	Credential     string       `yaml:"credential,omitempty"`
	MaxTokens      int          `yaml:"max_tokens"`
	Temperature    float32      `yaml:"temperature"`
	TimeoutSeconds int          `yaml:"timeout"`
}

// HistorySettings configures the history log.
type HistorySettings struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
	Window  int    `yaml:"window"`
}

// ExecutionSettings controls how commands run.
type ExecutionSettings struct {
	Shell              string `yaml:"shell"`
	TimeoutSeconds     int    `yaml:"timeout"`
	MaxDiagnosticBytes int    `yaml:"max_diagnostic_bytes"`
}

// CredentialSettings locates the credential store.
type CredentialSettings struct {
	Path           string `yaml:"path,omitempty"`
	EnvFile        string `yaml:"env_file,omitempty"`
	AllowAnonymous bool   `yaml:"allow_anonymous"`
}

// PromptSettings lets users replace the system instructions template.
type PromptSettings struct {
	System string `yaml:"system,omitempty"`
}

// ContextSettings configures the environment snapshot added to prompts.
type ContextSettings struct {
	IncludeTools bool     `yaml:"include_tools"`
	Tools        []string `yaml:"tools,omitempty"`
}
