package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// Running guard: one run per dataset at a time
// ─────────────────────────────────────────────────────────────

// runningGuard tracks in-flight dataset runs. A cron tick, a file event and
// a manual run may all target the same dataset concurrently; only the first
// proceeds.
type runningGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks dataset as running. It returns false if a run is already in
// progress.
func (g *runningGuard) TryLock(dataset string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[dataset]; ok {
		return false
	}
	g.running[dataset] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock releases a dataset locked by a successful TryLock.
func (g *runningGuard) Unlock(dataset string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, dataset)
	g.wg.Done()
}

// Running reports whether dataset has a run in progress.
func (g *runningGuard) Running(dataset string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[dataset]
	return ok
}

// WaitAll blocks until every in-flight run finishes or ctx is done.
func (g *runningGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
