package sim

import (
	"fmt"
	"time"
)

type fakeTurn struct {
	parent   IntersectionID
	length   float64
	priority Priority
}

type fakePlan struct {
	cycle     TurnSet
	remaining time.Duration
	err       error
	onQuery   func() // runs on every CurrentCycle call
}

// fakeNetwork is a hand-built map model plus control layer for engine tests.
type fakeNetwork struct {
	name      string
	signals   []bool
	turns     map[TurnID]fakeTurn
	conflicts map[[2]TurnID]bool
	plans     map[IntersectionID]*fakePlan
}

func newFakeNetwork(signals ...bool) *fakeNetwork {
	return &fakeNetwork{
		signals:   signals,
		turns:     make(map[TurnID]fakeTurn),
		conflicts: make(map[[2]TurnID]bool),
		plans:     make(map[IntersectionID]*fakePlan),
	}
}

func (n *fakeNetwork) turn(id TurnID, parent IntersectionID, length float64, p Priority) *fakeNetwork {
	n.turns[id] = fakeTurn{parent: parent, length: length, priority: p}
	return n
}

func (n *fakeNetwork) conflict(a, b TurnID) *fakeNetwork {
	n.conflicts[[2]TurnID{a, b}] = true
	n.conflicts[[2]TurnID{b, a}] = true
	return n
}

func (n *fakeNetwork) plan(i IntersectionID, remaining time.Duration, turns ...TurnID) *fakeNetwork {
	n.plans[i] = &fakePlan{cycle: NewTurnSet(turns...), remaining: remaining}
	return n
}

func (n *fakeNetwork) control() Control { return Control{StopSigns: n, Signals: n} }

func (n *fakeNetwork) named(name string) *fakeNetwork {
	n.name = name
	return n
}

func (n *fakeNetwork) Name() string { return n.name }

func (n *fakeNetwork) NumIntersections() int           { return len(n.signals) }
func (n *fakeNetwork) HasSignal(i IntersectionID) bool { return n.signals[i] }

func (n *fakeNetwork) TurnParent(t TurnID) (IntersectionID, bool) {
	ft, ok := n.turns[t]
	return ft.parent, ok
}

func (n *fakeNetwork) TurnLength(t TurnID) float64 { return n.turns[t].length }
func (n *fakeNetwork) Conflicts(a, b TurnID) bool  { return n.conflicts[[2]TurnID{a, b}] }

func (n *fakeNetwork) HasStopSign(i IntersectionID) bool { return !n.signals[i] }

func (n *fakeNetwork) Priority(_ IntersectionID, t TurnID) Priority { return n.turns[t].priority }

func (n *fakeNetwork) HasSignalPlan(i IntersectionID) bool {
	_, ok := n.plans[i]
	return ok
}

func (n *fakeNetwork) CurrentCycle(i IntersectionID, _ time.Duration) (Cycle, time.Duration, error) {
	p, ok := n.plans[i]
	if !ok {
		return nil, 0, fmt.Errorf("no plan for %d", i)
	}
	if p.onQuery != nil {
		p.onQuery()
	}
	if p.err != nil {
		return nil, 0, p.err
	}
	return p.cycle, p.remaining, nil
}

func mustRegistry(t interface {
	Helper()
	Fatalf(string, ...any)
}, n *fakeNetwork, opts ...Option) *Registry {
	t.Helper()
	r, err := NewRegistry(n, n.control(), opts...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}
