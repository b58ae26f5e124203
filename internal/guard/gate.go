package guard

import (
	"context"
	"sync"

	"github.com/iliyamo/hotel-backoffice/internal/model"
	"github.com/iliyamo/hotel-backoffice/internal/session"
)

// Source is the part of session.Manager a Gate watches.
type Source interface {
	State() session.State
	OnChange(fn func(session.State)) (unsubscribe func())
}

// Gate keeps a Decision current for one protected area.  It re-decides on
// every session change, so an authorized session that later expires is
// redirected too.
type Gate struct {
	src        Source
	required   model.RoleSet
	onDecision func(Decision)

	mu      sync.Mutex
	current Decision
	changed chan struct{}
	unsub   func()
}

// NewGate starts watching src.  onDecision, if not nil, receives every new
// decision including the first.
func NewGate(src Source, required model.RoleSet, onDecision func(Decision)) *Gate {
	g := &Gate{src: src, required: required, onDecision: onDecision, changed: make(chan struct{})}
	g.unsub = src.OnChange(func(session.State) { g.update() })
	g.update()
	return g
}

// update re-reads the source under g.mu so the last writer always holds the
// latest state.
func (g *Gate) update() {
	g.mu.Lock()
	d := Decide(g.required, g.src.State())
	g.current = d
	close(g.changed)
	g.changed = make(chan struct{})
	g.mu.Unlock()
	if g.onDecision != nil {
		g.onDecision(d)
	}
}

// Decision returns the latest decision.
func (g *Gate) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Await blocks until the decision is no longer Wait or ctx ends.
func (g *Gate) Await(ctx context.Context) (Decision, error) {
	for {
		g.mu.Lock()
		d, ch := g.current, g.changed
		g.mu.Unlock()
		if d.Outcome != Wait {
			return d, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return g.Decision(), ctx.Err()
		}
	}
}

// Close stops watching the session.
func (g *Gate) Close() {
	if g.unsub != nil {
		g.unsub()
	}
}
