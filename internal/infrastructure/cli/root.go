package cli

import (
	"context"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/doeshing/conv/internal/app"
	"github.com/doeshing/conv/internal/domain"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
	Version string
	Stdin   *os.File
	Stdout  io.Writer
	Stderr  io.Writer
}

type flags struct {
	clear         bool
	history       int
	setCredential string
	model         string
	provider      string
	verbose       bool
}

var credentialNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// NewRootCmd wires the cobra root command.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	var f flags
	root := &cobra.Command{
		Use:   "conv [request...]",
		Short: "conv - convert files with plain-language requests",
		Long: "conv turns a plain-language request such as \"convert photo.heic to jpg\" into a shell command and runs it.\n" +
			"Recent requests are remembered, so follow-ups like \"now rotate it\" work, and a failed command\n" +
			"is fed back so the next attempt tries something different.",
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.history, args = historyCount(cmd, args)
			mode, err := selectMode(cmd, args, f)
			if err != nil {
				return err
			}
			if mode == modeUsage {
				return cmd.Help()
			}

			container, err := app.BuildContainer(cmd.Context(), app.Options{
				Verbose:  opts.Verbose || f.verbose,
				Prompter: NewPrompter(opts.Stdin, opts.Stderr),
				Stdin:    opts.Stdin,
				Stdout:   opts.Stdout,
				Stderr:   opts.Stderr,
			})
			if err != nil {
				return err
			}
			defer container.Close()

			renderer := NewRenderer(opts.Stdout, opts.Stderr, NewSpinner(opts.Stderr, isTerminal(opts.Stderr)))
			return run(cmd.Context(), mode, container, renderer, args, f)
		},
	}

	root.Flags().BoolVar(&f.clear, "clear", false, "Clear the request history")
	root.Flags().IntVar(&f.history, "history", 0, "Show the last N history entries (default: the configured window)")
	root.Flags().Lookup("history").NoOptDefVal = "0"
	root.Flags().StringVar(&f.setCredential, "set-credential", "", "Store a credential as NAME=VALUE, or VALUE for the active provider")
	root.Flags().StringVarP(&f.model, "model", "m", "", "Override the configured model for this request")
	root.Flags().StringVarP(&f.provider, "provider", "p", "", "Override the configured provider (openai, anthropic, ollama, gemini)")
	root.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")
	root.MarkFlagsMutuallyExclusive("clear", "history", "set-credential")

	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)
	return root
}

type mode int

const (
	modeUsage mode = iota
	modeRequest
	modeClear
	modeHistory
	modeSetCredential
)

func selectMode(cmd *cobra.Command, args []string, f flags) (mode, error) {
	var side mode
	switch {
	case f.clear:
		side = modeClear
	case cmd.Flags().Changed("history"):
		side = modeHistory
	case cmd.Flags().Changed("set-credential"):
		side = modeSetCredential
	}

	hasRequest := strings.TrimSpace(strings.Join(args, " ")) != ""
	overrides := f.model != "" || f.provider != ""

	switch {
	case side != modeUsage && hasRequest:
		return modeUsage, errors.New("a request cannot be combined with --clear, --history or --set-credential")
	case side != modeUsage && overrides:
		return modeUsage, errors.New("--model and --provider only apply to a request")
	case side != modeUsage:
		return side, nil
	case hasRequest:
		return modeRequest, nil
	case overrides:
		return modeUsage, errors.New("--model and --provider need a request")
	default:
		return modeUsage, nil
	}
}

// historyCount accepts both --history=N and --history N. The bare flag has an
// optional value, so pflag leaves a separate N in args.
func historyCount(cmd *cobra.Command, args []string) (int, []string) {
	n, _ := cmd.Flags().GetInt("history")
	if !cmd.Flags().Changed("history") || n != 0 || len(args) != 1 {
		return n, args
	}
	if v, err := strconv.Atoi(strings.TrimSpace(args[0])); err == nil && v >= 0 {
		return v, nil
	}
	return n, args
}

func run(ctx context.Context, m mode, container *app.Container, renderer *Renderer, args []string, f flags) error {
	svc := container.Session
	switch m {
	case modeClear:
		if err := svc.Clear(ctx); err != nil {
			return err
		}
		renderer.RenderCleared()
		return nil

	case modeHistory:
		turns, err := svc.ShowHistory(ctx, f.history)
		if err != nil {
			return err
		}
		renderer.RenderHistory(turns, container.History.Path())
		return nil

	case modeSetCredential:
		name, value := parseCredentialArg(f.setCredential)
		stored, err := svc.SetCredential(ctx, name, value)
		if err != nil {
			return err
		}
		renderer.RenderCredentialSet(stored, container.Credentials.Path())
		return nil

	default:
		svc.Observer = renderer
		outcome, err := svc.Run(ctx, domain.Request{
			Text:             strings.Join(args, " "),
			ModelOverride:    f.model,
			ProviderOverride: domain.ProviderKind(strings.ToLower(strings.TrimSpace(f.provider))),
		})
		if err != nil {
			return err
		}
		renderer.RenderOutcome(outcome)
		return nil
	}
}

// parseCredentialArg splits NAME=VALUE. Anything that does not start with a
// plausible name before '=' is a bare value for the active provider.
func parseCredentialArg(raw string) (string, string) {
	name, value, ok := strings.Cut(raw, "=")
	if ok && credentialNamePattern.MatchString(name) {
		return name, value
	}
	return "", raw
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
