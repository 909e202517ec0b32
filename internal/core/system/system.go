package system

import "github.com/junctionsim/junction/internal/sim"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput     Phase = iota // 0: agents submit requests
	PhaseAdmission              // 1: registry step
	PhaseMovement               // 2: granted agents enter, finished agents exit
	PhaseOutput                 // 3: metrics and event dispatch
	PhasePersist                // 4: snapshots
)

// System is the interface every per-tick system implements.
type System interface {
	Phase() Phase
	Update(now sim.Tick)
}
