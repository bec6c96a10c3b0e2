package ai

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/doeshing/conv/internal/domain"
)

// normalizeCommand strips markdown wrapping from generator output. Every line
// of a multi-line script is kept, including blank lines between commands.
func normalizeCommand(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if block, ok := extractCodeBlocks(content); ok {
		content = block
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = unwrapLine(line)
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n\t ")
}

// extractCodeBlocks joins the bodies of all fenced blocks. The opening fence
// may carry a language tag, which is dropped.
func extractCodeBlocks(content string) (string, bool) {
	if !strings.Contains(content, "```") {
		return "", false
	}
	var (
		blocks []string
		body   []string
		inside bool
		found  bool
	)
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inside {
				blocks = append(blocks, strings.Join(body, "\n"))
				body = nil
				found = true
			}
			inside = !inside
			continue
		}
		if inside {
			body = append(body, line)
		}
	}
	if inside && len(body) > 0 {
		// unterminated fence, keep what was inside it
		blocks = append(blocks, strings.Join(body, "\n"))
		found = true
	}
	return strings.Join(blocks, "\n"), found
}

// unwrapLine removes backticks wrapping a whole line, and a single-quote pair
// left inside them, e.g. `'dwebp a.webp -o a.png'`.
func unwrapLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 2 || trimmed[0] != '`' || trimmed[len(trimmed)-1] != '`' {
		return strings.TrimRight(line, " \t")
	}
	inner := strings.Trim(trimmed, "`")
	if strings.Contains(inner, "`") {
		return strings.TrimRight(line, " \t")
	}
	if len(inner) >= 2 && inner[0] == '\'' && inner[len(inner)-1] == '\'' && strings.Count(inner, "'") == 2 {
		inner = inner[1 : len(inner)-1]
	}
	return strings.TrimSpace(inner)
}

// finishGeneration validates assembled text and wraps it as a Generation.
func finishGeneration(provider, model, raw string, truncated bool) (domain.Generation, error) {
	if truncated {
		return domain.Generation{}, domain.NewMalformedError(provider, errors.New("response truncated by token limit"))
	}
	text := normalizeCommand(raw)
	if text == "" {
		return domain.Generation{}, domain.NewMalformedError(provider, errors.New("empty response"))
	}
	return domain.Generation{Text: text, Provider: provider, Model: model}, nil
}
