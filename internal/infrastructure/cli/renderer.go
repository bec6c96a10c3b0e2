package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/infrastructure/executor"
	"github.com/doeshing/conv/internal/ports"
)

var (
	queryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	runStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	labelStyle   = lipgloss.NewStyle().Faint(true)
)

// Renderer prints session progress and outcomes. Progress goes to err so
// that a command's own stdout stays pipeable.
type Renderer struct {
	out     io.Writer
	err     io.Writer
	spinner *Spinner
}

// NewRenderer builds a renderer; spinner may be nil.
func NewRenderer(out, err io.Writer, spinner *Spinner) *Renderer {
	return &Renderer{out: out, err: err, spinner: spinner}
}

// Querying implements ports.SessionObserver.
func (r *Renderer) Querying(request string) {
	fmt.Fprintln(r.err, queryStyle.Render("Querying: ")+request)
	if r.spinner != nil {
		r.spinner.Start("Generating...")
	}
}

// Generated implements ports.SessionObserver.
func (r *Renderer) Generated() {
	if r.spinner != nil {
		r.spinner.Stop()
	}
}

// Running implements ports.SessionObserver.
func (r *Renderer) Running(command string) {
	if _, ok := executor.IsDiagnostic(command); ok {
		return
	}
	fmt.Fprintln(r.err, runStyle.Render("Running command: ")+indentContinuation(command))
}

// RenderOutcome prints the final status of a request.
func (r *Renderer) RenderOutcome(outcome domain.Outcome) {
	switch {
	case outcome.Status.Kind == domain.StatusSuccess:
		fmt.Fprintln(r.err, successStyle.Render("Executed: ")+indentContinuation(outcome.Command))
	case outcome.Status.Kind == domain.StatusGenerationFailed:
		fmt.Fprintln(r.err, failureStyle.Render("Could not generate a command: ")+outcome.Status.Detail)
	case outcome.Execution != nil && outcome.Execution.Skipped:
		fmt.Fprintln(r.err, failureStyle.Render("Not executed: ")+outcome.Status.Detail)
	default:
		msg := failureStyle.Render("An error occurred while executing the command")
		if outcome.Execution != nil && outcome.Execution.ExitCode > 0 {
			msg += failureStyle.Render(fmt.Sprintf(" (exit %d)", outcome.Execution.ExitCode))
		}
		fmt.Fprintln(r.err, msg+failureStyle.Render(":"))
		fmt.Fprintln(r.err, "  "+indentContinuation(outcome.Status.Detail))
	}
	r.RenderWarnings(outcome.Warnings)
}

// RenderWarnings prints non-fatal problems.
func (r *Renderer) RenderWarnings(warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintln(r.err, warnStyle.Render("warning: "+warning))
	}
}

// RenderHistory prints turns oldest first.
func (r *Renderer) RenderHistory(turns []domain.Turn, path string) {
	if len(turns) == 0 {
		fmt.Fprintln(r.out, labelStyle.Render("History is empty ("+path+")"))
		return
	}
	for i, turn := range turns {
		if i > 0 {
			fmt.Fprintln(r.out)
		}
		fmt.Fprintln(r.out, labelStyle.Render("Question: ")+turn.Request)
		fmt.Fprintln(r.out, labelStyle.Render("Answer:   ")+indentContinuation(turn.Command))
		status := successStyle.Render(turn.Status.String())
		if turn.Status.Failed() {
			status = failureStyle.Render(turn.Status.String())
		}
		fmt.Fprintln(r.out, labelStyle.Render("Status:   ")+status)
	}
}

// RenderCleared confirms a history clear.
func (r *Renderer) RenderCleared() {
	fmt.Fprintln(r.out, successStyle.Render("History cleared."))
}

// RenderCredentialSet confirms a stored credential without echoing it.
func (r *Renderer) RenderCredentialSet(name, path string) {
	fmt.Fprintln(r.out, successStyle.Render("Saved "+name+" credential")+labelStyle.Render(" ("+path+")"))
}

func indentContinuation(text string) string {
	return strings.ReplaceAll(text, "\n", "\n  ")
}

var _ ports.SessionObserver = (*Renderer)(nil)
