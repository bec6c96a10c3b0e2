package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	input "github.com/tcnksm/go-input"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/ports"
)

// Prompter implements ports.CredentialPrompter on the controlling terminal.
type Prompter struct {
	in          *os.File
	out         io.Writer
	interactive func() bool
}

// NewPrompter constructs a prompter referencing stdio.
func NewPrompter(in *os.File, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &Prompter{
		in:  in,
		out: out,
		interactive: func() bool {
			fd := in.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
	}
}

// PromptSecret asks for a masked value. It refuses with domain.ErrNonInteractive
// when stdin is not a terminal.
func (p *Prompter) PromptSecret(ctx context.Context, name string) (string, error) {
	if !p.interactive() {
		return "", domain.ErrNonInteractive
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ui := &input.UI{
		Writer: p.out,
		Reader: p.in,
	}
	query := fmt.Sprintf("No %s found. Enter your %s API key (stored in the conv credential file)",
		domain.CredentialEnvVar(name), strings.ToLower(name))
	answer, err := ui.Ask(query, &input.Options{
		Required:  true,
		Loop:      true,
		Mask:      true,
		HideOrder: true,
		ValidateFunc: func(answer string) error {
			if strings.TrimSpace(answer) == "" {
				return errors.New("value cannot be empty")
			}
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, input.ErrInterrupted) {
			return "", context.Canceled
		}
		return "", errors.Wrap(err, "read credential")
	}
	return strings.TrimSpace(answer), nil
}

var _ ports.CredentialPrompter = (*Prompter)(nil)
