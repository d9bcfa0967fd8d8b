// Package progress carries run status to the operator and lets the operator
// pause a run between steps.
package progress

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Reporter receives coarse progress milestones. inc is added to a running
// total that reaches 100 when a run finishes.
type Reporter interface {
	Update(status string, inc int)
}

// Nop discards updates.
type Nop struct{}

func (Nop) Update(string, int) {}

// Printer writes milestones to a terminal in the "→ status..." form and
// mirrors them to the log.
type Printer struct {
	out    io.Writer
	logger *zap.Logger

	mu    sync.Mutex
	total int
}

func NewPrinter(out io.Writer, logger *zap.Logger) *Printer {
	return &Printer{out: out, logger: logger.Named("progress")}
}

func (p *Printer) Update(status string, inc int) {
	p.mu.Lock()
	p.total += inc
	if p.total > 100 {
		p.total = 100
	}
	total := p.total
	p.mu.Unlock()

	fmt.Fprintf(p.out, "→ [%3d%%] %s\n", total, status)
	p.logger.Info("Progress.", zap.String("status", status), zap.Int("percent", total))
}

// Total returns the accumulated percentage.
func (p *Printer) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}
