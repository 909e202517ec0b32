package sim

import "fmt"

// Request is one agent asking to execute one turn. A request is identified by the
// (agent, turn) pair; a later turn by the same agent is a new Request.
type Request struct {
	Agent AgentID
	Turn  TurnID
}

func CarRequest(car CarID, turn TurnID) Request {
	return Request{Agent: Car(car), Turn: turn}
}

func PedRequest(ped PedestrianID, turn TurnID) Request {
	return Request{Agent: Pedestrian(ped), Turn: turn}
}

// Compare orders by agent first, then turn.
func (r Request) Compare(o Request) int {
	if c := r.Agent.Compare(o.Agent); c != 0 {
		return c
	}
	switch {
	case r.Turn < o.Turn:
		return -1
	case r.Turn > o.Turn:
		return 1
	}
	return 0
}

func (r Request) String() string { return fmt.Sprintf("%s -> turn %d", r.Agent, r.Turn) }
