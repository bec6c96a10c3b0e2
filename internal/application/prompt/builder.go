// Package prompt renders the message sequence sent to a command generator.
//
// Three policies shape every prompt: the generation policy (system message),
// the context policy (recent turns so referents like "that file" resolve) and
// the error-forwarding policy (a failed last turn is fed back so the next
// command differs from the one that failed).
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/ports"
)

// RequestPrefix precedes the current request in the final user message.
const RequestPrefix = "Answer this as briefly as possible: "

// DefaultSystemTemplate is the generation policy. It can be replaced through
// prompt.system in the config file; the same fields are available there.
const DefaultSystemTemplate = `You are a command line utility that quickly and succinctly converts and manipulates files such as images, videos, audio and documents.
When the user asks for something, reply with the command or short script that does it, ready to run in {{.Shell}} on {{.OS}}.

Rules:
- Output only executable command lines. No prose, no markdown, no code fences, no backticks.
- Put each command on its own line. Install missing third-party tools first instead of assuming they exist.
- Prefer utilities that ship with the platform when they can do the job.
- Quote every file and directory path.
- Never change a file extension unless the user asks for it.
- Write output next to the input file unless the user names another location.
- If no command can do what was asked, reply with a single line starting with {{.Marker}} followed by the reason.

Examples:
{{range .Examples}}
Request: {{.Request}}
Reply:
{{.Reply}}
{{end}}
Environment:
- OS: {{.OS}}
- Shell: {{.Shell}}
- Working directory: {{.WorkingDir}}
{{- if .Tools}}
- Installed conversion tools: {{.Tools}}
{{- end}}`

const contextPreamble = `For context, here are recent requests and the commands they produced, oldest first.
If the current request is ambiguous (for example "that file" or "do it again"), resolve it against the most recent entry.
Keep file locations and names in mind: if a file was moved or renamed, use the latest location shown here.`

// Example is a worked request/reply pair shown to the generator.
type Example struct {
	Request string
	Reply   string
}

// DefaultExamples are embedded in the default system template.
var DefaultExamples = []Example{
	{Request: "conv file.webp to png", Reply: `dwebp "file.webp" -o "file.png"`},
	{Request: "rotate an image by 90 degrees", Reply: "brew install imagemagick\nmagick \"file.png\" -rotate 90 \"file.png\""},
	{Request: "convert a video in /path/to/video.mp4 to a gif", Reply: `ffmpeg -i "/path/to/video.mp4" "/path/to/video.gif"`},
	{Request: "avif to png for file.avif", Reply: `magick "file.avif" "file.png"`},
	{
		Request: "convert my pdf to docx, the file is /Users/path/file.pdf",
		Reply:   "pip3 install pdf2docx\npython3 -c \"from pdf2docx import parse; parse(r'/Users/path/file.pdf', r'/Users/path/file.docx')\"",
	},
}

type systemData struct {
	Marker     string
	OS         string
	Shell      string
	WorkingDir string
	Tools      string
	Examples   []Example
}

// Builder implements ports.PromptBuilder.
type Builder struct {
	system   *template.Template
	examples []Example
}

// NewBuilder parses the system template. An empty override selects DefaultSystemTemplate.
func NewBuilder(systemOverride string) (*Builder, error) {
	raw := DefaultSystemTemplate
	if strings.TrimSpace(systemOverride) != "" {
		raw = systemOverride
	}
	tmpl, err := template.New("system").Option("missingkey=error").Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse system prompt template")
	}
	return &Builder{system: tmpl, examples: DefaultExamples}, nil
}

// Build implements ports.PromptBuilder.
func (b *Builder) Build(in ports.PromptInput) ([]domain.Message, error) {
	request := strings.TrimSpace(in.Request)
	if request == "" {
		return nil, errors.New("empty request")
	}

	system, err := b.renderSystem(in.Context)
	if err != nil {
		return nil, err
	}
	messages := []domain.Message{{Role: domain.RoleSystem, Content: system}}

	if len(in.History) > 0 {
		messages = append(messages, domain.Message{Role: domain.RoleUser, Content: historyMessage(in.History)})
		if last := in.History[len(in.History)-1]; last.Status.Failed() {
			messages = append(messages, domain.Message{Role: domain.RoleUser, Content: failureMessage(last)})
		}
	}

	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: RequestPrefix + request})
	return messages, nil
}

func (b *Builder) renderSystem(snapshot domain.ContextSnapshot) (string, error) {
	data := systemData{
		Marker:     domain.DiagnosticMarker,
		OS:         orUnknown(snapshot.OS),
		Shell:      orUnknown(snapshot.Shell),
		WorkingDir: orUnknown(snapshot.WorkingDir),
		Tools:      strings.Join(snapshot.AvailableTools, ", "),
		Examples:   b.examples,
	}
	var buf bytes.Buffer
	if err := b.system.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "render system prompt")
	}
	return strings.TrimSpace(buf.String()), nil
}

func historyMessage(turns []domain.Turn) string {
	var b strings.Builder
	b.WriteString(contextPreamble)
	b.WriteString("\n\n")
	for _, turn := range turns {
		fmt.Fprintf(&b, "Question: %s\nAnswer: %s\nStatus: %s\n\n", turn.Request, turn.Command, turn.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func failureMessage(last domain.Turn) string {
	var b strings.Builder
	switch last.Status.Kind {
	case domain.StatusGenerationFailed:
		b.WriteString("The previous request could not be answered: no command was generated.\n")
	default:
		b.WriteString("The previous command failed.\n")
	}
	if last.Command != "" {
		fmt.Fprintf(&b, "Failed command:\n%s\n", last.Command)
	}
	if detail := strings.TrimSpace(last.Status.Detail); detail != "" {
		fmt.Fprintf(&b, "Error output:\n%s\n", detail)
	}
	b.WriteString("\nIf the current request retries or builds on it, start your reply with one line beginning with \"# \" that explains the likely cause, ")
	b.WriteString("then give a different command that avoids the problem. Never repeat the failed command unchanged. ")
	fmt.Fprintf(&b, "If the problem cannot be fixed with a command, reply with only a single line starting with %s and the explanation, with no \"# \" line before it.", domain.DiagnosticMarker)
	return b.String()
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unknown"
	}
	return value
}

var _ ports.PromptBuilder = (*Builder)(nil)
