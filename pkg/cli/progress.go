package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports the progress of a timed run such as a benchmark.
type ProgressReporter interface {
	// Start begins a run that lasts total.
	Start(total time.Duration)

	// Update reports the time elapsed so far and a running count.
	Update(elapsed time.Duration, count uint64)

	// Finish completes the bar and ends the line.
	Finish()

	// Error ends the bar with an error.
	Error(err error)
}

const barWidth = 30

// TimeBar draws a single-line progress bar on a terminal, redrawn in place
// with a carriage return.
type TimeBar struct {
	mu      sync.Mutex
	writer  io.Writer
	label   string
	total   time.Duration
	elapsed time.Duration
	count   uint64
}

// NewProgressReporter creates a reporter writing to w (os.Stderr when nil).
// label names the running count, for example "admitted"; an empty label
// hides the count.
func NewProgressReporter(w io.Writer, label string) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &TimeBar{writer: w, label: label}
}

// Start resets the bar for a run of length total.
func (p *TimeBar) Start(total time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.elapsed = 0
	p.count = 0
	p.render()
}

// Update redraws the bar. Elapsed time beyond the total is clamped.
func (p *TimeBar) Update(elapsed time.Duration, count uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.elapsed = min(elapsed, p.total)
	p.count = count
	p.render()
}

// Finish draws the full bar and ends the line.
func (p *TimeBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.elapsed = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

// Error ends the line with err.
func (p *TimeBar) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\n✗ Error: %v\n", err)
}

func (p *TimeBar) render() {
	if p.total <= 0 {
		return
	}

	fraction := float64(p.elapsed) / float64(p.total)
	filled := int(fraction * barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(p.writer, "\r[%s] %3.0f%% %v/%v", bar, fraction*100,
		p.elapsed.Round(100*time.Millisecond), p.total)

	if p.label != "" {
		fmt.Fprintf(p.writer, "  %s %d", p.label, p.count)
		if p.elapsed > 0 {
			fmt.Fprintf(p.writer, " (%.0f/s)", float64(p.count)/p.elapsed.Seconds())
		}
	}
}
