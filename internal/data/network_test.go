package data

import (
	"errors"
	"testing"
	"time"

	"github.com/junctionsim/junction/internal/sim"
)

func loadTestNetwork(t *testing.T) *Network {
	t.Helper()
	n, err := LoadNetwork("testdata/network.yaml")
	if err != nil {
		t.Fatalf("LoadNetwork: %v", err)
	}
	return n
}

func TestLoadNetwork(t *testing.T) {
	n := loadTestNetwork(t)

	if n.Name() != "two-junctions" || n.NumIntersections() != 2 || n.TurnCount() != 5 {
		t.Fatalf("name=%q intersections=%d turns=%d", n.Name(), n.NumIntersections(), n.TurnCount())
	}
	if n.HasSignal(0) || !n.HasSignal(1) {
		t.Error("signal flags not loaded")
	}
	if !n.HasStopSign(0) || n.HasStopSign(1) {
		t.Error("stop sign flags wrong")
	}
	if !n.Conflicts(12, 10) || !n.Conflicts(10, 12) {
		t.Error("conflicts must be symmetric")
	}
	if n.Conflicts(10, 11) {
		t.Error("10 and 11 do not conflict")
	}
	if p, ok := n.TurnParent(21); !ok || p != 1 {
		t.Errorf("TurnParent(21) = %d, %v", p, ok)
	}
	if _, ok := n.TurnParent(99); ok {
		t.Error("unknown turn has a parent")
	}
	if got := n.TurnLength(12); got != 15 {
		t.Errorf("TurnLength(12) = %v", got)
	}

	priorities := map[sim.TurnID]sim.Priority{10: sim.PriorityNormal, 11: sim.PriorityYield, 12: sim.PriorityStop}
	for turn, want := range priorities {
		if got := n.Priority(0, turn); got != want {
			t.Errorf("Priority(%d) = %s, want %s", turn, got, want)
		}
	}
}

func TestCurrentCycle(t *testing.T) {
	n := loadTestNetwork(t)

	tests := []struct {
		now       time.Duration
		turn      sim.TurnID
		remaining time.Duration
	}{
		{0, 21, 5 * time.Second},
		{5 * time.Second, 20, 30 * time.Second},
		{20 * time.Second, 20, 15 * time.Second},
		{40 * time.Second, 21, 15 * time.Second},
		{55 * time.Second, 20, 30 * time.Second},
	}
	for _, tt := range tests {
		cycle, remaining, err := n.CurrentCycle(1, tt.now)
		if err != nil {
			t.Fatal(err)
		}
		if !cycle.Contains(tt.turn) || remaining != tt.remaining {
			t.Errorf("at %s: contains(%d)=%v remaining=%s, want remaining %s", tt.now, tt.turn, cycle.Contains(tt.turn), remaining, tt.remaining)
		}
	}

	if _, _, err := n.CurrentCycle(0, 0); !errors.Is(err, sim.ErrMalformed) {
		t.Errorf("stop sign intersection plan lookup: %v", err)
	}
}

func TestParseNetworkValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"sparse intersection ids", `
intersections: [{id: 0}, {id: 2}]`},
		{"turn outside network", `
intersections: [{id: 0}]
turns: [{id: 1, intersection: 3, length: 5, priority: normal}]`},
		{"missing priority", `
intersections: [{id: 0}]
turns: [{id: 1, intersection: 0, length: 5}]`},
		{"zero length", `
intersections: [{id: 0}]
turns: [{id: 1, intersection: 0, length: 0, priority: stop}]`},
		{"conflict across intersections", `
intersections: [{id: 0}, {id: 1}]
turns:
  - {id: 1, intersection: 0, length: 5, priority: stop, conflicts: [2]}
  - {id: 2, intersection: 1, length: 5, priority: stop}`},
		{"cycle shorter than a nanosecond", `
intersections: [{id: 0, signal: true}]
turns: [{id: 1, intersection: 0, length: 5}]
signal_plans: [{intersection: 0, cycles: [{turns: [1], duration: 0.0000000001}]}]`},
		{"signal without plan", `
intersections: [{id: 0, signal: true}]
turns: [{id: 1, intersection: 0, length: 5}]`},
		{"plan with foreign turn", `
intersections: [{id: 0, signal: true}, {id: 1}]
turns:
  - {id: 1, intersection: 0, length: 5}
  - {id: 2, intersection: 1, length: 5, priority: stop}
signal_plans:
  - {intersection: 0, cycles: [{turns: [2], duration: 10}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseNetwork([]byte(tt.yaml)); !errors.Is(err, sim.ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestLoadTrips(t *testing.T) {
	n := loadTestNetwork(t)
	trips, err := LoadTrips("testdata/trips.yaml", n)
	if err != nil {
		t.Fatal(err)
	}
	want := []Trip{
		{Request: sim.PedRequest(1, 11), Depart: 0},
		{Request: sim.CarRequest(1, 10), Depart: 3},
		{Request: sim.CarRequest(2, 12), Depart: 3},
	}
	if len(trips) != len(want) {
		t.Fatalf("got %d trips", len(trips))
	}
	for i := range want {
		if trips[i] != want[i] {
			t.Errorf("trip %d = %+v, want %+v", i, trips[i], want[i])
		}
	}
}

func TestNetworkDrivesRegistry(t *testing.T) {
	n := loadTestNetwork(t)
	r, err := sim.NewRegistry(n, n.Control(), sim.WithSpeedLimit(10))
	if err != nil {
		t.Fatal(err)
	}
	k0, _ := r.Kind(0)
	k1, _ := r.Kind(1)
	if k0 != sim.PolicyStopSign || k1 != sim.PolicySignal {
		t.Fatalf("kinds = %s, %s", k0, k1)
	}

	// Turn 20 is green from 5s to 35s; at tick 100 (10s) 25s remain.
	main, side := sim.CarRequest(1, 20), sim.CarRequest(2, 21)
	for _, req := range []sim.Request{main, side} {
		if err := r.Submit(req, 100); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.Step(100); err != nil {
		t.Fatal(err)
	}
	if !r.Granted(main) || r.Granted(side) {
		t.Fatalf("main=%v side=%v", r.Granted(main), r.Granted(side))
	}
}
