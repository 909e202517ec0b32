package sim

import "time"

// MapModel is the static geometry the engine consults. Implementations must be safe
// for concurrent readers.
type MapModel interface {
	NumIntersections() int
	HasSignal(i IntersectionID) bool
	// TurnParent reports the intersection a turn belongs to; ok is false for unknown turns.
	TurnParent(t TurnID) (IntersectionID, bool)
	// TurnLength is the physical length of the turn in meters.
	TurnLength(t TurnID) float64
	// Conflicts must be symmetric.
	Conflicts(a, b TurnID) bool
}

// StopSignControl supplies the static priority table of unsignalized intersections.
type StopSignControl interface {
	HasStopSign(i IntersectionID) bool
	Priority(i IntersectionID, t TurnID) Priority
}

// Cycle is the set of turns a signal currently lets move.
type Cycle interface {
	Contains(t TurnID) bool
}

// SignalPlanProvider reports the active cycle of a signal and the time left in it.
type SignalPlanProvider interface {
	HasSignalPlan(i IntersectionID) bool
	CurrentCycle(i IntersectionID, now time.Duration) (Cycle, time.Duration, error)
}

// Control bundles the two control-layer providers.
type Control struct {
	StopSigns StopSignControl
	Signals   SignalPlanProvider
}

// TurnSet is a Cycle backed by a plain set.
type TurnSet map[TurnID]struct{}

func NewTurnSet(turns ...TurnID) TurnSet {
	s := make(TurnSet, len(turns))
	for _, t := range turns {
		s[t] = struct{}{}
	}
	return s
}

func (s TurnSet) Contains(t TurnID) bool {
	_, ok := s[t]
	return ok
}
