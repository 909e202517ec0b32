package sim

import (
	"fmt"
	"time"
)

// Signal admits requests at a signalized intersection when the active cycle allows
// the turn and the agent can clear it before the cycle ends.
type Signal struct {
	id       IntersectionID
	accepted agentTurns
	pending  requestSet
}

func newSignal(id IntersectionID) *Signal {
	return &Signal{
		id:       id,
		accepted: newAgentTurns(),
		pending:  newRequestSet(),
	}
}

func (s *Signal) pendingFor(agent AgentID) (Request, bool) {
	var found Request
	ok := false
	s.pending.each(func(req Request) bool {
		if c := req.Agent.Compare(agent); c >= 0 {
			found, ok = req, c == 0
			return false
		}
		return true
	})
	return found, ok
}

func (s *Signal) submit(req Request) error {
	if held, ok := s.accepted.get(req.Agent); ok {
		if held == req.Turn {
			return nil
		}
		return &ConsistencyViolation{Op: "submit", Request: req, Intersection: s.id, Held: held, HasHeld: true}
	}
	if other, ok := s.pendingFor(req.Agent); ok && other.Turn != req.Turn {
		return &ConsistencyViolation{Op: "submit", Request: req, Intersection: s.id, Held: other.Turn, HasHeld: true}
	}
	s.pending.add(req)
	return nil
}

// CrossingTime is how long a turn of the given length takes at speedLimit (m/s).
func CrossingTime(length, speedLimit float64) time.Duration {
	return time.Duration(length / speedLimit * float64(time.Second))
}

func (s *Signal) step(now Tick, m MapModel, plans SignalPlanProvider, speedLimit float64) ([]Admission, error) {
	cycle, remaining, err := plans.CurrentCycle(s.id, now.AsTime())
	if err != nil {
		return nil, fmt.Errorf("signal plan for intersection %d: %w", s.id, err)
	}

	var promoted []Admission
	s.pending.each(func(req Request) bool {
		if !cycle.Contains(req.Turn) {
			return true
		}
		// Agents that cannot clear the turn before the cycle ends wait for the next one.
		if CrossingTime(m.TurnLength(req.Turn), speedLimit) >= remaining {
			return true
		}
		promoted = append(promoted, Admission{
			Intersection: s.id,
			Kind:         PolicySignal,
			Request:      req,
		})
		return true
	})

	for _, a := range promoted {
		s.accepted.put(a.Request.Agent, a.Request.Turn)
		s.pending.remove(a.Request)
	}
	return promoted, nil
}
