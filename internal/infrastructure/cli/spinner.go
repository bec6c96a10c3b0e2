package cli

import (
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner displays an animated spinner during long operations
type Spinner struct {
	mu      sync.Mutex
	spin    *spinner.Spinner
	enabled bool
}

// NewSpinner creates a new spinner. A disabled spinner never draws, which
// keeps piped output clean.
func NewSpinner(w io.Writer, enabled bool) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond,
		spinner.WithWriter(w),
		spinner.WithHiddenCursor(true),
	)
	return &Spinner{spin: s, enabled: enabled}
}

// Start begins the spinner animation
func (s *Spinner) Start(suffix string) {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spin.Suffix = " " + suffix
	s.spin.Start()
}

// Stop stops the spinner animation and clears its line
func (s *Spinner) Stop() {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spin.Stop()
}
