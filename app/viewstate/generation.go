package viewstate

import (
	"context"
	"sync"
)

// View identifies an independently refreshed part of the page.
type View int

const (
	ViewColumns View = iota
	ViewCharts
	ViewFull
	numViews
)

func (v View) String() string {
	switch v {
	case ViewColumns:
		return "columns"
	case ViewCharts:
		return "charts"
	case ViewFull:
		return "full"
	}
	return "unknown"
}

// Token identifies one request for a view. Call Done when the request is
// over, whether or not it was still current.
type Token struct {
	View   View
	Gen    uint64
	cancel context.CancelFunc
}

func (t Token) Done() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Generations keeps a counter per view. Starting a request for a view cancels
// the one before it.
type Generations struct {
	mu      sync.Mutex
	current [numViews]uint64
	cancel  [numViews]context.CancelFunc
}

func (g *Generations) Begin(ctx context.Context, v View) (context.Context, Token) {
	ctx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if prev := g.cancel[v]; prev != nil {
		prev()
	}
	g.current[v]++
	g.cancel[v] = cancel
	return ctx, Token{View: v, Gen: g.current[v], cancel: cancel}
}

func (g *Generations) IsCurrent(t Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current[t.View] == t.Gen
}

// CancelAll cancels every in-flight request and invalidates their tokens.
func (g *Generations) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for v := range g.cancel {
		if g.cancel[v] != nil {
			g.cancel[v]()
			g.cancel[v] = nil
		}
		g.current[v]++
	}
}
