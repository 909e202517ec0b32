package sim

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Registry owns one admission policy per intersection and is the only entry point
// the rest of the simulation uses: Submit, Step, Granted, Enter and Exit.
//
// A Registry is not safe for concurrent mutation. Step and StepParallel are the
// only operations that promote requests.
type Registry struct {
	intersections []Policy
	m             MapModel
	ctl           Control
	speedLimit    float64
	network       string // name of m, if it has one
}

// Option configures a Registry.
type Option func(*Registry)

// WithSpeedLimit sets the crossing speed (m/s) used by signal policies.
func WithSpeedLimit(mps float64) Option {
	return func(r *Registry) {
		if mps > 0 {
			r.speedLimit = mps
		}
	}
}

// NewRegistry builds one policy per intersection of m: a signal policy where the map
// has a signal, a stop-sign policy otherwise.
func NewRegistry(m MapModel, ctl Control, opts ...Option) (*Registry, error) {
	r := newEmptyRegistry(m, ctl, opts)
	n := m.NumIntersections()
	r.intersections = make([]Policy, 0, n)
	for i := 0; i < n; i++ {
		id := IntersectionID(i)
		kind := PolicyStopSign
		if m.HasSignal(id) {
			kind = PolicySignal
		}
		if err := r.checkControl(id, kind); err != nil {
			return nil, err
		}
		switch kind {
		case PolicySignal:
			r.intersections = append(r.intersections, signalPolicy(id))
		case PolicyStopSign:
			r.intersections = append(r.intersections, stopSignPolicy(id))
		}
	}
	return r, nil
}

func newEmptyRegistry(m MapModel, ctl Control, opts []Option) *Registry {
	r := &Registry{m: m, ctl: ctl, speedLimit: DefaultSpeedLimit, network: networkName(m)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// networkName returns the name of a map model that reports one.
func networkName(m MapModel) string {
	if named, ok := m.(interface{ Name() string }); ok {
		return named.Name()
	}
	return ""
}

func (r *Registry) checkControl(id IntersectionID, kind PolicyKind) error {
	switch kind {
	case PolicySignal:
		if r.ctl.Signals == nil || !r.ctl.Signals.HasSignalPlan(id) {
			return malformed("intersection %d has a signal but no signal plan", id)
		}
	case PolicyStopSign:
		if r.ctl.StopSigns == nil || !r.ctl.StopSigns.HasStopSign(id) {
			return malformed("intersection %d has no stop sign priorities", id)
		}
	}
	return nil
}

// NumIntersections returns the number of policies held.
func (r *Registry) NumIntersections() int { return len(r.intersections) }

// SpeedLimit returns the crossing speed used by signal policies.
func (r *Registry) SpeedLimit() float64 { return r.speedLimit }

func (r *Registry) policyFor(turn TurnID) (*Policy, IntersectionID, error) {
	i, ok := r.m.TurnParent(turn)
	if !ok {
		return nil, 0, malformed("turn %d has no parent intersection", turn)
	}
	if !r.has(i) {
		return nil, 0, malformed("turn %d belongs to intersection %d, out of range [0,%d)", turn, i, len(r.intersections))
	}
	return &r.intersections[i], i, nil
}

// Granted reports whether req's agent holds req's turn. It never mutates state.
func (r *Registry) Granted(req Request) bool {
	p, _, err := r.policyFor(req.Turn)
	if err != nil {
		return false
	}
	held, ok := p.acceptedSet().get(req.Agent)
	return ok && held == req.Turn
}

// Submit records that req is ready to enter. It is idempotent: repeating it, in any
// order relative to other agents, leaves the same state, and the first tick a request
// was seen is kept. Submitting a different turn while the agent already holds or
// waits for one at the same intersection is a ConsistencyViolation.
func (r *Registry) Submit(req Request, now Tick) error {
	p, _, err := r.policyFor(req.Turn)
	if err != nil {
		return err
	}
	return p.submit(req, now)
}

// Step runs admission for every intersection. Per-intersection failures do not stop
// the others; they are joined into the returned error.
func (r *Registry) Step(now Tick) ([]Admission, error) {
	var (
		out  []Admission
		errs []error
	)
	for i := range r.intersections {
		admitted, err := r.intersections[i].step(now, r.m, r.ctl, r.speedLimit)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, admitted...)
	}
	return out, errors.Join(errs...)
}

// StepParallel is Step with intersections partitioned across at most workers
// goroutines. Intersections share no mutable state, so the result equals Step's.
// The map model and control providers must tolerate concurrent readers.
//
// ctx is only checked before the tick starts. Once started, every intersection is
// stepped, so a tick is never applied to part of the network.
func (r *Registry) StepParallel(ctx context.Context, now Tick, workers int) ([]Admission, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("step tick %d: %w", now, err)
	}
	n := len(r.intersections)
	if workers <= 1 || n <= 1 {
		return r.Step(now)
	}
	if workers > n {
		workers = n
	}

	results := make([][]Admission, n)
	errs := make([]error, n)
	chunk := (n + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				results[i], errs[i] = r.intersections[i].step(now, r.m, r.ctl, r.speedLimit)
			}
			return nil
		})
	}
	_ = g.Wait() // workers report through errs

	var out []Admission
	for _, admitted := range results {
		out = append(out, admitted...)
	}
	return out, errors.Join(errs...)
}

func (r *Registry) checkHeld(op string, req Request) (*Policy, error) {
	p, i, err := r.policyFor(req.Turn)
	if err != nil {
		return nil, err
	}
	held, ok := p.acceptedSet().get(req.Agent)
	if !ok {
		return nil, &ConsistencyViolation{Op: op, Request: req, Intersection: i}
	}
	if held != req.Turn {
		return nil, &ConsistencyViolation{Op: op, Request: req, Intersection: i, Held: held, HasHeld: true}
	}
	return p, nil
}

// Enter asserts that the agent holds the turn it is starting.
func (r *Registry) Enter(req Request) error {
	_, err := r.checkHeld("enter", req)
	return err
}

// Exit releases the agent's turn so later requests stop conflicting with it.
func (r *Registry) Exit(req Request) error {
	p, err := r.checkHeld("exit", req)
	if err != nil {
		return err
	}
	p.acceptedSet().remove(req.Agent)
	return nil
}

func (r *Registry) has(i IntersectionID) bool {
	return int(i) >= 0 && int(i) < len(r.intersections)
}

// Kind returns the policy kind of intersection i; ok is false if i is out of range.
func (r *Registry) Kind(i IntersectionID) (kind PolicyKind, ok bool) {
	if !r.has(i) {
		return 0, false
	}
	return r.intersections[i].kind, true
}

// Counts is the queue depth of one intersection.
type Counts struct {
	Waiting  int
	Accepted int
}

// Counts returns the waiting/accepted sizes of every intersection, by index.
func (r *Registry) Counts() []Counts {
	out := make([]Counts, len(r.intersections))
	for i := range r.intersections {
		p := &r.intersections[i]
		out[i] = Counts{Waiting: p.waitingLen(), Accepted: p.acceptedSet().len()}
	}
	return out
}

// Accepted lists the accepted requests of intersection i in agent order. It is
// nil for an unknown intersection.
func (r *Registry) Accepted(i IntersectionID) []Request {
	if !r.has(i) {
		return nil
	}
	var out []Request
	r.intersections[i].acceptedSet().each(func(a AgentID, t TurnID) bool {
		out = append(out, Request{Agent: a, Turn: t})
		return true
	})
	return out
}

// Waiting lists the waiting requests of intersection i in canonical order. It is
// nil for an unknown intersection.
func (r *Registry) Waiting(i IntersectionID) []Request {
	if !r.has(i) {
		return nil
	}
	var out []Request
	p := &r.intersections[i]
	switch p.kind {
	case PolicyStopSign:
		p.stop.waiting.each(func(req Request, _ Tick) bool {
			out = append(out, req)
			return true
		})
	case PolicySignal:
		p.signal.pending.each(func(req Request) bool {
			out = append(out, req)
			return true
		})
	}
	return out
}

// WaitingSince returns the tick req was first submitted. Only stop signs track it.
func (r *Registry) WaitingSince(req Request) (Tick, bool) {
	p, _, err := r.policyFor(req.Turn)
	if err != nil || p.kind != PolicyStopSign {
		return 0, false
	}
	return p.stop.waiting.get(req)
}
