package printer

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/slok/fxtask/internal/model"
)

const progressBarWidth = 40

// ProgressBar renders the progress of a task on a single terminal line.
type ProgressBar struct {
	w        io.Writer
	mu       sync.Mutex
	rendered bool
}

// NewProgressBar returns a new progress bar that writes to w (normally stderr).
func NewProgressBar(w io.Writer) *ProgressBar {
	return &ProgressBar{w: w}
}

// Update redraws the bar with the task state.
func (p *ProgressBar) Update(t model.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pct := min(max(t.Progress, 0), 100)
	filled := int(pct / 100 * progressBarWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressBarWidth-filled)
	fmt.Fprintf(p.w, "\r  [%s] %4s %-9s", bar, FormatProgress(pct), t.Status)
	p.rendered = true
}

// Finish ends the bar line, it's a noop if the bar was never drawn.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rendered {
		fmt.Fprintln(p.w)
		p.rendered = false
	}
}
