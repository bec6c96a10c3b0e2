package domain

// ContextSnapshot holds environment data injected into prompts and logs.
type ContextSnapshot struct {
	WorkingDir     string
	Shell          string
	OS             string
	AvailableTools []string
}
