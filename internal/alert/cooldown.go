package alert

import (
	"sync"
	"time"
)

// DefaultCooldown is the window during which a kind that already fired
// stays suppressed.
const DefaultCooldown = 30 * time.Second

// Gate suppresses repeated firing of the same alert kind within a cooldown
// window. Per-kind last-fired instants are owned exclusively by the gate and
// mutated only inside TryFire's check-and-stamp; stamps are monotonically
// non-decreasing per kind.
type Gate struct {
	mu     sync.Mutex
	window time.Duration
	last   map[Kind]time.Time
	now    func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock overrides the gate's time source, for tests.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

func NewGate(window time.Duration, opts ...GateOption) *Gate {
	if window <= 0 {
		window = DefaultCooldown
	}
	g := &Gate{
		window: window,
		last:   make(map[Kind]time.Time),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TryFire atomically checks the elapsed time for the kind and, if the cooldown
// window has passed, stamps now and returns true. Otherwise it returns false
// with no side effect: the losing caller of a same-kind race is suppressed,
// not queued or retried. Expiry is evaluated lazily here, not by a timer.
func (g *Gate) TryFire(kind Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.last[kind]; ok && now.Sub(last) < g.window {
		return false
	}
	g.last[kind] = now
	return true
}

// Window returns the configured cooldown window.
func (g *Gate) Window() time.Duration {
	return g.window
}

// LastFired returns a copy of the per-kind last-fired instants.
func (g *Gate) LastFired() map[Kind]time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[Kind]time.Time, len(g.last))
	for k, t := range g.last {
		out[k] = t
	}
	return out
}
