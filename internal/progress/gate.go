package progress

import (
	"context"
	"sync"
)

// Gate blocks the executor between steps while paused. The zero value is
// ready to use and open.
type Gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{} // closed when the gate reopens
}

func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.resume = make(chan struct{})
}

func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.resume)
}

// Toggle flips the gate and reports whether it is now paused.
func (g *Gate) Toggle() bool {
	g.mu.Lock()
	paused := g.paused
	g.mu.Unlock()
	if paused {
		g.Resume()
		return false
	}
	g.Pause()
	return true
}

func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait returns immediately when the gate is open, otherwise it blocks until
// Resume or until ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	if !g.paused {
		g.mu.Unlock()
		return nil
	}
	ch := g.resume
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
