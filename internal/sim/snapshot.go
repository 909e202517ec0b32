package sim

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/junctionsim/junction/internal/codec"
)

const (
	snapshotMagic   = "JXSN"
	snapshotVersion = 2
)

// ErrSnapshot marks payloads Restore cannot accept.
var ErrSnapshot = errors.New("invalid intersection snapshot")

// MarshalBinary encodes the registry. Every container is written in its canonical
// order, so equal logical state always gives identical bytes.
func (r *Registry) MarshalBinary() ([]byte, error) {
	w := codec.NewWriter()
	w.WriteBytes([]byte(snapshotMagic))
	w.WriteU16(snapshotVersion)
	w.WriteString(r.network)
	w.WriteF64(r.speedLimit)
	w.WriteU32(uint32(len(r.intersections)))
	for i := range r.intersections {
		p := &r.intersections[i]
		w.WriteU8(uint8(p.kind))
		w.WriteU32(uint32(i))
		switch p.kind {
		case PolicyStopSign:
			w.WriteU32(uint32(p.stop.waiting.len()))
			p.stop.waiting.each(func(req Request, since Tick) bool {
				writeRequest(w, req)
				w.WriteU32(uint32(since))
				return true
			})
			writeAccepted(w, p.stop.accepted)
		case PolicySignal:
			writeAccepted(w, p.signal.accepted)
			w.WriteU32(uint32(p.signal.pending.len()))
			p.signal.pending.each(func(req Request) bool {
				writeRequest(w, req)
				return true
			})
		default:
			return nil, fmt.Errorf("intersection %d: unknown policy kind %d", i, p.kind)
		}
	}
	return w.Bytes(), nil
}

func writeRequest(w *codec.Writer, req Request) {
	w.WriteU8(uint8(req.Agent.Kind))
	w.WriteU32(req.Agent.ID)
	w.WriteI64(int64(req.Turn))
}

func writeAccepted(w *codec.Writer, accepted agentTurns) {
	w.WriteU32(uint32(accepted.len()))
	accepted.each(func(a AgentID, t TurnID) bool {
		writeRequest(w, Request{Agent: a, Turn: t})
		return true
	})
}

// Restore rebuilds a registry from MarshalBinary output. The payload must have been
// saved for a map of the same name and describe the same intersections, with the
// same policy kinds, as m.
func Restore(data []byte, m MapModel, ctl Control, opts ...Option) (*Registry, error) {
	rd := codec.NewReader(data)
	if magic := rd.ReadBytes(len(snapshotMagic)); string(magic) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrSnapshot)
	}
	if v := rd.ReadU16(); v != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSnapshot, v)
	}

	r := newEmptyRegistry(m, ctl, nil)
	network := rd.ReadString()
	speed := rd.ReadF64()
	if rd.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshot, rd.Err())
	}
	if want := codec.Canonical(r.network); network != want {
		return nil, fmt.Errorf("%w: saved for network %q, map is %q", ErrSnapshot, network, want)
	}
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return nil, fmt.Errorf("%w: speed limit %v", ErrSnapshot, speed)
	}
	r.speedLimit = speed
	for _, opt := range opts {
		opt(r)
	}

	n := int(rd.ReadU32())
	if rd.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshot, rd.Err())
	}
	if n != m.NumIntersections() {
		return nil, fmt.Errorf("%w: %d intersections, map has %d", ErrSnapshot, n, m.NumIntersections())
	}

	r.intersections = make([]Policy, 0, n)
	for i := 0; i < n; i++ {
		kind := PolicyKind(rd.ReadU8())
		id := IntersectionID(rd.ReadU32())
		if rd.Err() != nil {
			break
		}
		if int(id) != i {
			return nil, fmt.Errorf("%w: intersection %d stored at index %d", ErrSnapshot, id, i)
		}
		want := PolicyStopSign
		if m.HasSignal(id) {
			want = PolicySignal
		}
		if kind != want {
			return nil, fmt.Errorf("%w: intersection %d is %s, map says %s", ErrSnapshot, id, kind, want)
		}
		if err := r.checkControl(id, kind); err != nil {
			return nil, err
		}

		var (
			p      Policy
			queued []Request
		)
		switch kind {
		case PolicyStopSign:
			p = stopSignPolicy(id)
			for k := rd.ReadU32(); k > 0 && rd.Err() == nil; k-- {
				req := readRequest(rd)
				since := Tick(rd.ReadU32())
				if rd.Err() != nil {
					break
				}
				if err := r.checkParent(req, id); err != nil {
					return nil, err
				}
				p.stop.waiting.put(req, since)
				queued = append(queued, req)
			}
			if err := r.readAccepted(rd, p.stop.accepted, id); err != nil {
				return nil, err
			}
		case PolicySignal:
			p = signalPolicy(id)
			if err := r.readAccepted(rd, p.signal.accepted, id); err != nil {
				return nil, err
			}
			for k := rd.ReadU32(); k > 0 && rd.Err() == nil; k-- {
				req := readRequest(rd)
				if rd.Err() != nil {
					break
				}
				if err := r.checkParent(req, id); err != nil {
					return nil, err
				}
				p.signal.pending.add(req)
				queued = append(queued, req)
			}
		}
		if err := checkQueued(id, queued, p.acceptedSet()); err != nil {
			return nil, err
		}
		r.intersections = append(r.intersections, p)
	}
	if rd.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshot, rd.Err())
	}
	if rd.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSnapshot, rd.Remaining())
	}
	return r, nil
}

// checkQueued enforces what Submit guarantees: an agent has at most one request at
// an intersection, either queued or accepted.
func checkQueued(id IntersectionID, queued []Request, accepted agentTurns) error {
	seen := make(map[AgentID]TurnID, len(queued))
	for _, req := range queued {
		if held, ok := accepted.get(req.Agent); ok {
			return fmt.Errorf("%w: %s queued at intersection %d while holding turn %d", ErrSnapshot, req, id, held)
		}
		if other, ok := seen[req.Agent]; ok {
			return fmt.Errorf("%w: %s queued at intersection %d next to turn %d", ErrSnapshot, req, id, other)
		}
		seen[req.Agent] = req.Turn
	}
	return nil
}

func readRequest(rd *codec.Reader) Request {
	kind := AgentKind(rd.ReadU8())
	id := rd.ReadU32()
	turn := TurnID(rd.ReadI64())
	return Request{Agent: AgentID{Kind: kind, ID: id}, Turn: turn}
}

func (r *Registry) readAccepted(rd *codec.Reader, into agentTurns, id IntersectionID) error {
	for k := rd.ReadU32(); k > 0 && rd.Err() == nil; k-- {
		req := readRequest(rd)
		if rd.Err() != nil {
			return nil // reported by Restore
		}
		if err := r.checkParent(req, id); err != nil {
			return err
		}
		into.put(req.Agent, req.Turn)
	}
	return nil
}

func (r *Registry) checkParent(req Request, id IntersectionID) error {
	if req.Agent.Kind > AgentPedestrian {
		return fmt.Errorf("%w: unknown agent kind %d", ErrSnapshot, req.Agent.Kind)
	}
	parent, ok := r.m.TurnParent(req.Turn)
	if !ok || parent != id {
		return fmt.Errorf("%w: %s stored under intersection %d", ErrSnapshot, req, id)
	}
	return nil
}

// Equal reports whether two registries hold the same state in the same order.
func (r *Registry) Equal(o *Registry) bool {
	a, errA := r.MarshalBinary()
	b, errB := o.MarshalBinary()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}
