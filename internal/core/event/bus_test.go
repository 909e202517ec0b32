package event

import (
	"testing"

	"github.com/junctionsim/junction/internal/sim"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var accepted []sim.Request
	var exited int
	Subscribe(b, func(e RequestAccepted) { accepted = append(accepted, e.Admission.Request) })
	Subscribe(b, func(AgentExited) { exited++ })

	Emit(b, RequestAccepted{Tick: 1, Admission: sim.Admission{Request: sim.CarRequest(1, 5)}})
	Emit(b, RequestAccepted{Tick: 1, Admission: sim.Admission{Request: sim.CarRequest(2, 5)}})
	Emit(b, AgentExited{Tick: 1})

	b.DispatchAll()
	if len(accepted) != 0 {
		t.Fatal("events visible before SwapBuffers")
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(accepted) != 2 || accepted[0] != sim.CarRequest(1, 5) || exited != 1 {
		t.Fatalf("accepted = %v, exited = %d", accepted, exited)
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(accepted) != 2 || exited != 1 {
		t.Fatal("events delivered twice")
	}
}
