package contextcollector

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/doeshing/conv/internal/domain"
	"github.com/doeshing/conv/internal/ports"
)

// DefaultTools are the conversion utilities worth mentioning to the generator.
var DefaultTools = []string{
	"magick", "convert", "ffmpeg", "dwebp", "cwebp", "sips", "pandoc",
	"python3", "pip3", "brew", "apt-get",
}

// BasicCollector implements ContextCollector with working directory, shell and tool detection.
type BasicCollector struct {
	lookPath func(string) (string, error)
	osDetail func(context.Context) string
}

func NewBasicCollector() *BasicCollector {
	return &BasicCollector{
		lookPath: exec.LookPath,
		osDetail: detectOSDetail,
	}
}

// Collect gathers context data.
func (c *BasicCollector) Collect(ctx context.Context, cfg domain.Config) (domain.ContextSnapshot, error) {
	wd, _ := os.Getwd()

	osName := runtime.GOOS
	if detail := c.osDetail(ctx); detail != "" {
		osName = osName + " (" + detail + ")"
	}

	var tools []string
	if cfg.Context.IncludeTools {
		candidates := cfg.Context.Tools
		if len(candidates) == 0 {
			candidates = DefaultTools
		}
		tools = c.detectTools(candidates)
	}

	return domain.ContextSnapshot{
		WorkingDir:     wd,
		Shell:          detectShell(cfg),
		OS:             osName,
		AvailableTools: tools,
	}, nil
}

func (c *BasicCollector) detectTools(candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	var available []string
	for _, tool := range candidates {
		tool = strings.TrimSpace(tool)
		if tool == "" || seen[tool] {
			continue
		}
		seen[tool] = true
		if _, err := c.lookPath(tool); err == nil {
			available = append(available, tool)
		}
	}
	sort.Strings(available)
	return available
}

// detectShell names the shell generated scripts will run under.
func detectShell(cfg domain.Config) string {
	return filepath.Base(cfg.GetExecutionShell())
}

func detectOSDetail(ctx context.Context) string {
	switch runtime.GOOS {
	case "darwin":
		if version := runCmd(ctx, "sw_vers", "-productVersion"); version != "" {
			return "macOS " + version
		}
	case "linux":
		return osRelease("/etc/os-release")
	}
	return ""
}

// osRelease returns PRETTY_NAME from an os-release file.
func osRelease(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if ok && key == "PRETTY_NAME" {
			return strings.Trim(value, `"'`)
		}
	}
	return ""
}

func runCmd(ctx context.Context, name string, args ...string) string {
	cctx, cancel := context.WithTimeout(ctx, domain.DefaultProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(cctx, name, args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

var _ ports.ContextCollector = (*BasicCollector)(nil)
