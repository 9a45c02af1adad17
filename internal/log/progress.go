package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// ProgressBar renders sweep progress for long-running operations. On a
// terminal it redraws a single line; otherwise it falls back to periodic
// structured log entries so CI output stays readable.
type ProgressBar struct {
	mu        sync.Mutex
	name      string
	total     int
	current   int
	startTime time.Time
	lastLog   time.Time
	isTTY     bool
}

// NewProgressBar creates a bar for an operation with a known item count.
func NewProgressBar(name string, total int) *ProgressBar {
	return &ProgressBar{
		name:      name,
		total:     total,
		startTime: time.Now(),
		isTTY:     term.IsTerminal(int(os.Stderr.Fd())),
	}
}

// Update sets the completed item count and redraws.
func (p *ProgressBar) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if p.isTTY {
		p.draw()
		return
	}
	// Off-terminal: log at most every two seconds.
	if time.Since(p.lastLog) < 2*time.Second && current < p.total {
		return
	}
	p.lastLog = time.Now()
	log.Info().
		Str("operation", p.name).
		Int("completed", current).
		Int("total", p.total).
		Msg("Progress")
}

// Finish clears the bar and logs the elapsed time.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime).Round(time.Millisecond)
	if p.isTTY {
		fmt.Fprintf(os.Stderr, "\r\033[K%s: %d items in %v\n", p.name, p.total, elapsed)
		return
	}
	log.Info().
		Str("operation", p.name).
		Int("total", p.total).
		Dur("elapsed", elapsed).
		Msg("Completed")
}

func (p *ProgressBar) draw() {
	if p.total <= 0 {
		return
	}
	const width = 20
	filled := width * p.current / p.total
	var b strings.Builder
	b.WriteString("\r\033[K")
	b.WriteString(p.name)
	b.WriteString(" [")
	for i := 0; i < width; i++ {
		if i < filled {
			b.WriteString("█")
		} else {
			b.WriteString("░")
		}
	}
	pct := float64(p.current) / float64(p.total) * 100
	b.WriteString(fmt.Sprintf("] %d/%d (%.1f%%)", p.current, p.total, pct))

	if p.current > 0 {
		rate := float64(p.current) / time.Since(p.startTime).Seconds()
		if rate > 0 {
			eta := time.Duration(float64(p.total-p.current)/rate) * time.Second
			b.WriteString(fmt.Sprintf(" ETA %v", eta.Round(time.Second)))
		}
	}
	fmt.Fprint(os.Stderr, b.String())
}
