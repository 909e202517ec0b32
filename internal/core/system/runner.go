package system

import (
	"sort"

	"github.com/junctionsim/junction/internal/sim"
)

// Runner executes systems in phase order each tick. Systems of the same phase run
// in registration order.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(now sim.Tick) {
	r.ensureSorted()
	for _, s := range r.systems {
		s.Update(now)
	}
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
