package refresh

import "time"

type gateState int

const (
	suppressed gateState = iota
	enabled
)

func (s gateState) String() string {
	if s == enabled {
		return "enabled"
	}
	return "suppressed"
}

// gate decides whether a tick may refresh. An interaction suppresses
// refreshing until two full intervals pass without another one.
type gate struct {
	interval        time.Duration
	state           gateState
	lastInteraction time.Time
}

func newGate(interval time.Duration, start time.Time) *gate {
	g := &gate{interval: interval}
	g.interact(start)
	return g
}

func (g *gate) interact(at time.Time) {
	g.state = suppressed
	g.lastInteraction = at
}

// tick moves the gate to enabled once the user has been idle for the
// debounce window and reports whether the tick should refresh.
func (g *gate) tick(at time.Time) bool {
	if g.state == suppressed && at.Sub(g.lastInteraction) >= 2*g.interval {
		g.state = enabled
	}
	return g.state == enabled
}
