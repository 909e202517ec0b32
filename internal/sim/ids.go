package sim

import (
	"fmt"
	"time"
)

// Timestep is the amount of simulated time covered by one tick.
const Timestep = 100 * time.Millisecond

// WaitAtStopSign is the mandatory dwell for turns in the Stop priority category.
const WaitAtStopSign = 1500 * time.Millisecond

// DefaultSpeedLimit is the crossing speed (m/s) used by the signal policy.
const DefaultSpeedLimit = 8.9408 // 20 mph

// Tick is the discrete simulated clock. Tick 0 is the start of the run.
type Tick uint32

// AsTime converts a tick count to simulated time.
func (t Tick) AsTime() time.Duration { return time.Duration(t) * Timestep }

// Since returns the simulated time elapsed from earlier to t, or 0 if earlier is after t.
func (t Tick) Since(earlier Tick) time.Duration {
	if earlier > t {
		return 0
	}
	return (t - earlier).AsTime()
}

func (t Tick) String() string { return fmt.Sprintf("t%d", uint32(t)) }

// IntersectionID indexes an intersection in the map model and the registry.
type IntersectionID int

// TurnID is an opaque map-model handle for a movement through one intersection.
type TurnID int

// CarID and PedestrianID are owned by the population layer.
type (
	CarID        uint32
	PedestrianID uint32
)

// AgentKind tags the AgentID variant. The declaration order is the sort order.
type AgentKind uint8

const (
	AgentCar AgentKind = iota
	AgentPedestrian
)

func (k AgentKind) String() string {
	switch k {
	case AgentCar:
		return "car"
	case AgentPedestrian:
		return "ped"
	}
	return fmt.Sprintf("agent(%d)", uint8(k))
}

// AgentID identifies either a car or a pedestrian. Ordering is by kind, then id,
// so it never depends on hashing.
type AgentID struct {
	Kind AgentKind
	ID   uint32
}

func Car(id CarID) AgentID               { return AgentID{Kind: AgentCar, ID: uint32(id)} }
func Pedestrian(id PedestrianID) AgentID { return AgentID{Kind: AgentPedestrian, ID: uint32(id)} }

// Compare returns -1, 0 or +1.
func (a AgentID) Compare(b AgentID) int {
	switch {
	case a.Kind < b.Kind:
		return -1
	case a.Kind > b.Kind:
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

func (a AgentID) String() string { return fmt.Sprintf("%s %d", a.Kind, a.ID) }

// Priority is the stop-sign right-of-way category of a turn. Higher values win.
type Priority uint8

const (
	// PriorityStop requires a full stop of WaitAtStopSign before entering.
	PriorityStop Priority = iota
	PriorityYield
	PriorityNormal
)

func (p Priority) String() string {
	switch p {
	case PriorityStop:
		return "stop"
	case PriorityYield:
		return "yield"
	case PriorityNormal:
		return "normal"
	}
	return fmt.Sprintf("priority(%d)", uint8(p))
}

// ParsePriority accepts the names produced by Priority.String.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "stop":
		return PriorityStop, nil
	case "yield":
		return PriorityYield, nil
	case "normal", "priority":
		return PriorityNormal, nil
	}
	return 0, fmt.Errorf("unknown turn priority %q", s)
}
