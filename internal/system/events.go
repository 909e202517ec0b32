package system

import (
	"github.com/junctionsim/junction/internal/core/event"
	coresys "github.com/junctionsim/junction/internal/core/system"
	"github.com/junctionsim/junction/internal/sim"
)

// EventSystem delivers the previous tick's events at the start of each tick.
// Phase 0 (Input); register it before other input systems.
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *EventSystem) Update(_ sim.Tick) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
