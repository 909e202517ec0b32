package sim

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"
)

func populatedNetwork() *fakeNetwork {
	return newFakeNetwork(false, true).
		turn(t1, 0, 10, PriorityNormal).
		turn(t2, 0, 10, PriorityStop).
		turn(t3, 1, 20, PriorityNormal).
		turn(t4, 1, 20, PriorityNormal).
		conflict(t1, t2).
		plan(1, 10*time.Second, t3)
}

func populated(t *testing.T) (*fakeNetwork, *Registry) {
	t.Helper()
	n := populatedNetwork().named("Caf\u00e9 district")
	r := mustRegistry(t, n, WithSpeedLimit(10))
	subs := []struct {
		req  Request
		tick Tick
	}{
		{CarRequest(5, t1), 2},
		{PedRequest(2, t2), 3},
		{CarRequest(1, t2), 4},
		{CarRequest(7, t3), 4},
		{PedRequest(4, t4), 4},
		{CarRequest(2, t4), 5},
	}
	for _, s := range subs {
		if err := r.Submit(s.req, s.tick); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.Step(6); err != nil {
		t.Fatal(err)
	}
	return n, r
}

func TestSnapshotRoundTrip(t *testing.T) {
	n, r := populated(t)
	data, err := r.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	restored, err := Restore(data, n, n.control())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	again, err := restored.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Fatal("re-encoded snapshot differs")
	}
	if restored.SpeedLimit() != 10 {
		t.Errorf("speed limit = %v", restored.SpeedLimit())
	}

	for i := 0; i < r.NumIntersections(); i++ {
		id := IntersectionID(i)
		if got, want := restored.Waiting(id), r.Waiting(id); !equalRequests(got, want) {
			t.Errorf("intersection %d waiting = %v, want %v", i, got, want)
		}
		if got, want := restored.Accepted(id), r.Accepted(id); !equalRequests(got, want) {
			t.Errorf("intersection %d accepted = %v, want %v", i, got, want)
		}
	}
	if since, ok := restored.WaitingSince(PedRequest(2, t2)); !ok || since != 3 {
		t.Errorf("WaitingSince = %v %v", since, ok)
	}

	// Restored state keeps behaving: the stop-sign dwell clock was preserved.
	if err := restored.Exit(CarRequest(5, t1)); err != nil {
		t.Fatal(err)
	}
	if _, err := restored.Step(18); err != nil {
		t.Fatal(err)
	}
	if !restored.Granted(PedRequest(2, t2)) {
		t.Error("pedestrian waiting since t3 should be admitted at t18")
	}
}

func equalRequests(a, b []Request) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSnapshotIndependentOfSubmissionOrder(t *testing.T) {
	n, _ := populated(t)
	reqs := []Request{CarRequest(3, t2), PedRequest(1, t1), CarRequest(9, t4), PedRequest(8, t3)}

	var payloads [][]byte
	for seed := int64(0); seed < 4; seed++ {
		r := mustRegistry(t, n)
		for _, i := range rand.New(rand.NewSource(seed)).Perm(len(reqs)) {
			if err := r.Submit(reqs[i], 1); err != nil {
				t.Fatal(err)
			}
		}
		data, err := r.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}
		payloads = append(payloads, data)
	}
	for i := 1; i < len(payloads); i++ {
		if !bytes.Equal(payloads[0], payloads[i]) {
			t.Fatalf("payload %d differs from payload 0", i)
		}
	}
}

func TestRestoreRejectsBadPayloads(t *testing.T) {
	n, r := populated(t)
	data, err := r.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	other := newFakeNetwork(false, false).
		named(n.name).
		turn(t1, 0, 10, PriorityNormal).
		turn(t2, 0, 10, PriorityStop).
		turn(t3, 1, 20, PriorityNormal).
		turn(t4, 1, 20, PriorityNormal)

	// corrupt marshals a freshly populated registry after mutating it in ways
	// Submit and Step never would.
	corrupt := func(mutate func(r *Registry)) []byte {
		_, r := populated(t)
		mutate(r)
		data, err := r.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}
		return data
	}
	withSpeed := func(v float64) []byte {
		return corrupt(func(r *Registry) { r.speedLimit = v })
	}

	tests := []struct {
		name string
		data []byte
		net  *fakeNetwork
		want string
	}{
		{"empty", nil, n, "bad magic"},
		{"bad magic", append([]byte("XXXX"), data[4:]...), n, "bad magic"},
		{"truncated", data[:len(data)-3], n, "truncated"},
		{"trailing bytes", append(append([]byte{}, data...), 0), n, "trailing bytes"},
		{"policy kind mismatch", data, other, "map says"},
		{"intersection count mismatch", data, newFakeNetwork(false).named(n.name).turn(t1, 0, 1, PriorityNormal), "map has"},
		{"other network", data, populatedNetwork().named("uptown"), "saved for network"},
		{"zero speed limit", withSpeed(0), n, "speed limit"},
		{"negative speed limit", withSpeed(-10), n, "speed limit"},
		{"NaN speed limit", withSpeed(math.NaN()), n, "speed limit"},
		{"infinite speed limit", withSpeed(math.Inf(1)), n, "speed limit"},
		{"waiting while accepted", corrupt(func(r *Registry) {
			// car 5 holds t1 at the stop sign.
			r.intersections[0].stop.waiting.put(CarRequest(5, t2), 1)
		}), n, "while holding turn 1"},
		{"two waiting turns", corrupt(func(r *Registry) {
			// car 1 already waits for t2.
			r.intersections[0].stop.waiting.put(CarRequest(1, t1), 4)
		}), n, "next to turn"},
		{"pending while accepted", corrupt(func(r *Registry) {
			// car 7 holds t3 at the signal.
			r.intersections[1].signal.pending.add(CarRequest(7, t4))
		}), n, "while holding turn 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(tt.data, tt.net, tt.net.control())
			if !errors.Is(err, ErrSnapshot) || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want ErrSnapshot mentioning %q", err, tt.want)
			}
		})
	}
}

func TestRestoreMatchesNetworkNameCanonically(t *testing.T) {
	_, r := populated(t)
	data, err := r.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	// Same name, decomposed accent.
	n := populatedNetwork().named("Cafe\u0301 district")
	restored, err := Restore(data, n, n.control())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !restored.Equal(r) {
		t.Fatal("restored registry differs")
	}
}
