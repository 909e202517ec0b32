package sim

import (
	"fmt"
	"time"
)

// PolicyKind tags the admission regime of an intersection.
type PolicyKind uint8

const (
	PolicyStopSign PolicyKind = iota
	PolicySignal
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyStopSign:
		return "stop_sign"
	case PolicySignal:
		return "signal"
	}
	return fmt.Sprintf("policy(%d)", uint8(k))
}

// Policy is a closed union over the two admission regimes. Exactly one of stop and
// signal is set, matching kind; the kind never changes after construction.
type Policy struct {
	kind   PolicyKind
	stop   *StopSign
	signal *Signal
}

func stopSignPolicy(id IntersectionID) Policy {
	return Policy{kind: PolicyStopSign, stop: newStopSign(id)}
}

func signalPolicy(id IntersectionID) Policy {
	return Policy{kind: PolicySignal, signal: newSignal(id)}
}

func (p *Policy) Kind() PolicyKind { return p.kind }

func (p *Policy) acceptedSet() agentTurns {
	switch p.kind {
	case PolicyStopSign:
		return p.stop.accepted
	case PolicySignal:
		return p.signal.accepted
	}
	panic(fmt.Sprintf("unknown policy kind %d", p.kind))
}

func (p *Policy) submit(req Request, now Tick) error {
	switch p.kind {
	case PolicyStopSign:
		return p.stop.submit(req, now)
	case PolicySignal:
		return p.signal.submit(req)
	}
	panic(fmt.Sprintf("unknown policy kind %d", p.kind))
}

func (p *Policy) step(now Tick, m MapModel, ctl Control, speedLimit float64) ([]Admission, error) {
	switch p.kind {
	case PolicyStopSign:
		return p.stop.step(now, m, ctl.StopSigns), nil
	case PolicySignal:
		return p.signal.step(now, m, ctl.Signals, speedLimit)
	}
	panic(fmt.Sprintf("unknown policy kind %d", p.kind))
}

func (p *Policy) waitingLen() int {
	switch p.kind {
	case PolicyStopSign:
		return p.stop.waiting.len()
	case PolicySignal:
		return p.signal.pending.len()
	}
	panic(fmt.Sprintf("unknown policy kind %d", p.kind))
}

// Admission records one request promoted to accepted during a step.
type Admission struct {
	Intersection IntersectionID
	Kind         PolicyKind
	Request      Request
	// Waited is the time since first submission; only tracked at stop signs.
	Waited time.Duration
}
