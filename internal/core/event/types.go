package event

import "github.com/junctionsim/junction/internal/sim"

type RequestAccepted struct {
	Tick      sim.Tick
	Admission sim.Admission
}

type AgentEntered struct {
	Tick    sim.Tick
	Request sim.Request
}

type AgentExited struct {
	Tick    sim.Tick
	Request sim.Request
}

// ViolationReported is emitted when the registry rejects an agent's call.
type ViolationReported struct {
	Tick    sim.Tick
	Op      string
	Request sim.Request
	Err     error
}
