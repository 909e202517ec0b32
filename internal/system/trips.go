package system

import (
	"errors"

	"github.com/junctionsim/junction/internal/core/event"
	coresys "github.com/junctionsim/junction/internal/core/system"
	"github.com/junctionsim/junction/internal/data"
	"github.com/junctionsim/junction/internal/sim"
	"go.uber.org/zap"
)

type tripStage uint8

const (
	stageWaiting  tripStage = iota // submitted, not granted yet
	stageCrossing                  // entered, holding the turn
	stageDone
)

type tripState struct {
	trip      data.Trip
	stage     tripStage
	remaining int // ticks left on the turn
}

// TripDriver replays a demand trace against the registry. Each agent runs its
// trips one at a time in departure order. The driver itself submits requests in
// Phase 0 (Input); Movement returns the companion system that enters, crosses
// and exits granted turns in Phase 2 (Movement).
type TripDriver struct {
	registry *sim.Registry
	m        sim.MapModel
	bus      *event.Bus
	log      *zap.Logger

	pending []data.Trip          // not yet started, sorted by departure
	active  []*tripState         // started, in start order
	busy    map[sim.AgentID]bool // agents with an active trip
	done    int
}

func NewTripDriver(registry *sim.Registry, m sim.MapModel, trips []data.Trip, bus *event.Bus, log *zap.Logger) *TripDriver {
	return &TripDriver{
		registry: registry,
		m:        m,
		bus:      bus,
		log:      log,
		pending:  append([]data.Trip(nil), trips...),
		busy:     make(map[sim.AgentID]bool),
	}
}

func (d *TripDriver) Phase() coresys.Phase { return coresys.PhaseInput }

func (d *TripDriver) Update(now sim.Tick) {
	d.start(now)
	for _, st := range d.active {
		if st.stage != stageWaiting {
			continue
		}
		if err := d.registry.Submit(st.trip.Request, now); err != nil {
			d.violation(now, "submit", st, err)
		}
	}
}

// start activates every departed trip whose agent is free. A trip stays queued
// behind an earlier one of the same agent.
func (d *TripDriver) start(now sim.Tick) {
	blocked := make(map[sim.AgentID]bool)
	kept := d.pending[:0]
	for _, trip := range d.pending {
		agent := trip.Request.Agent
		if trip.Depart > now || d.busy[agent] || blocked[agent] {
			blocked[agent] = true
			kept = append(kept, trip)
			continue
		}
		d.busy[agent] = true
		d.active = append(d.active, &tripState{trip: trip})
	}
	d.pending = kept
}

func (d *TripDriver) move(now sim.Tick) {
	for _, st := range d.active {
		req := st.trip.Request
		switch st.stage {
		case stageWaiting:
			if !d.registry.Granted(req) {
				continue
			}
			if err := d.registry.Enter(req); err != nil {
				d.violation(now, "enter", st, err)
				continue
			}
			st.stage = stageCrossing
			st.remaining = d.crossingTicks(req.Turn)
			event.Emit(d.bus, event.AgentEntered{Tick: now, Request: req})
		case stageCrossing:
			st.remaining--
			if st.remaining > 0 {
				continue
			}
			if err := d.registry.Exit(req); err != nil {
				d.violation(now, "exit", st, err)
				continue
			}
			d.finish(st)
			event.Emit(d.bus, event.AgentExited{Tick: now, Request: req})
		}
	}
	d.compact()
}

func (d *TripDriver) crossingTicks(turn sim.TurnID) int {
	dur := sim.CrossingTime(d.m.TurnLength(turn), d.registry.SpeedLimit())
	ticks := int((dur + sim.Timestep - 1) / sim.Timestep)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// violation reports a rejected call. The trip is abandoned so one bad agent does
// not flood the log every tick.
func (d *TripDriver) violation(now sim.Tick, op string, st *tripState, err error) {
	if !errors.Is(err, sim.ErrConsistency) {
		d.log.Error("registry call failed", zap.String("op", op), zap.Stringer("request", st.trip.Request), zap.Error(err))
	} else {
		d.log.Warn("protocol violation", zap.String("op", op), zap.Stringer("request", st.trip.Request), zap.Error(err))
	}
	event.Emit(d.bus, event.ViolationReported{Tick: now, Op: op, Request: st.trip.Request, Err: err})
	d.finish(st)
}

func (d *TripDriver) finish(st *tripState) {
	st.stage = stageDone
	delete(d.busy, st.trip.Request.Agent)
	d.done++
}

func (d *TripDriver) compact() {
	kept := d.active[:0]
	for _, st := range d.active {
		if st.stage != stageDone {
			kept = append(kept, st)
		}
	}
	clear(d.active[len(kept):])
	d.active = kept
}

// Done reports whether every trip has finished or been abandoned.
func (d *TripDriver) Done() bool { return len(d.pending) == 0 && len(d.active) == 0 }

// Finished returns the number of trips that completed or were abandoned.
func (d *TripDriver) Finished() int { return d.done }

// Movement returns the system that advances granted trips.
func (d *TripDriver) Movement() coresys.System { return movementSystem{d} }

type movementSystem struct{ d *TripDriver }

func (s movementSystem) Phase() coresys.Phase { return coresys.PhaseMovement }
func (s movementSystem) Update(now sim.Tick)  { s.d.move(now) }
