package sim

import "math"

// StopSign admits requests at an unsignalized intersection by conflict, static
// priority and, for Stop-category turns, a minimum dwell.
type StopSign struct {
	id IntersectionID
	// waiting maps each request to the tick it was first submitted.
	waiting  requestTicks
	accepted agentTurns
}

func newStopSign(id IntersectionID) *StopSign {
	return &StopSign{
		id:       id,
		waiting:  newRequestTicks(),
		accepted: newAgentTurns(),
	}
}

// waitingFor returns the waiting request of agent, if any. Requests are ordered by
// agent first, so the scan stops as soon as it passes the agent.
func (s *StopSign) waitingFor(agent AgentID) (Request, bool) {
	k, _ := s.waiting.m.Ceiling(Request{Agent: agent, Turn: math.MinInt})
	if k == nil {
		return Request{}, false
	}
	req := k.(Request)
	if req.Agent != agent {
		return Request{}, false
	}
	return req, true
}

func (s *StopSign) submit(req Request, now Tick) error {
	if held, ok := s.accepted.get(req.Agent); ok {
		if held == req.Turn {
			return nil
		}
		return &ConsistencyViolation{Op: "submit", Request: req, Intersection: s.id, Held: held, HasHeld: true}
	}
	if other, ok := s.waitingFor(req.Agent); ok && other.Turn != req.Turn {
		return &ConsistencyViolation{Op: "submit", Request: req, Intersection: s.id, Held: other.Turn, HasHeld: true}
	}
	// Later submissions must not reset the dwell clock.
	if _, ok := s.waiting.get(req); !ok {
		s.waiting.put(req, now)
	}
	return nil
}

func (s *StopSign) conflictsWithAccepted(turn TurnID, m MapModel) bool {
	conflict := false
	s.accepted.each(func(_ AgentID, t TurnID) bool {
		conflict = m.Conflicts(turn, t)
		return !conflict
	})
	return conflict
}

func (s *StopSign) conflictsWithHigherPriorityWaiting(turn TurnID, m MapModel, ctl StopSignControl) bool {
	base := ctl.Priority(s.id, turn)
	conflict := false
	s.waiting.each(func(req Request, _ Tick) bool {
		conflict = m.Conflicts(turn, req.Turn) && ctl.Priority(s.id, req.Turn) > base
		return !conflict
	})
	return conflict
}

// step promotes every waiting request that is eligible against the accepted set as
// it stood when the tick began. Requests promoted in the same pass are not checked
// against each other.
func (s *StopSign) step(now Tick, m MapModel, ctl StopSignControl) []Admission {
	var promoted []Admission
	s.waiting.each(func(req Request, since Tick) bool {
		if s.conflictsWithAccepted(req.Turn, m) {
			return true
		}
		if s.conflictsWithHigherPriorityWaiting(req.Turn, m, ctl) {
			return true
		}
		if ctl.Priority(s.id, req.Turn) == PriorityStop && now.Since(since) < WaitAtStopSign {
			return true
		}
		promoted = append(promoted, Admission{
			Intersection: s.id,
			Kind:         PolicyStopSign,
			Request:      req,
			Waited:       now.Since(since),
		})
		return true
	})

	for _, a := range promoted {
		s.accepted.put(a.Request.Agent, a.Request.Turn)
		s.waiting.remove(a.Request)
	}
	return promoted
}
