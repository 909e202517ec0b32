package data

import (
	"fmt"
	"os"
	"time"

	"github.com/junctionsim/junction/internal/sim"
	"gopkg.in/yaml.v3"
)

// IntersectionInfo is one junction of the network file.
type IntersectionInfo struct {
	ID     int    `yaml:"id"`
	Name   string `yaml:"name"`
	Signal bool   `yaml:"signal"`
}

// TurnInfo is one movement through a junction. Priority is only read for
// unsignalized intersections.
type TurnInfo struct {
	ID           int     `yaml:"id"`
	Intersection int     `yaml:"intersection"`
	Length       float64 `yaml:"length"` // meters
	Priority     string  `yaml:"priority"`
	Conflicts    []int   `yaml:"conflicts"`
}

// CycleInfo is one phase of a fixed-time signal plan.
type CycleInfo struct {
	Turns    []int   `yaml:"turns"`
	Duration float64 `yaml:"duration"` // seconds
}

// SignalPlanInfo is the cycle list of one signalized intersection.
type SignalPlanInfo struct {
	Intersection int         `yaml:"intersection"`
	Offset       float64     `yaml:"offset"` // seconds
	Cycles       []CycleInfo `yaml:"cycles"`
}

type networkFile struct {
	Name          string             `yaml:"name"`
	Intersections []IntersectionInfo `yaml:"intersections"`
	Turns         []TurnInfo         `yaml:"turns"`
	SignalPlans   []SignalPlanInfo   `yaml:"signal_plans"`
}

type turnEntry struct {
	parent    sim.IntersectionID
	length    float64
	priority  sim.Priority
	conflicts map[sim.TurnID]struct{}
}

type cycleEntry struct {
	turns    sim.TurnSet
	duration time.Duration
}

type planEntry struct {
	offset time.Duration
	total  time.Duration
	cycles []cycleEntry
}

// Network is the static map and control data of one simulation. It implements
// sim.MapModel, sim.StopSignControl and sim.SignalPlanProvider and is read-only
// after loading, so concurrent readers are safe.
type Network struct {
	name          string
	intersections []IntersectionInfo
	turns         map[sim.TurnID]*turnEntry
	plans         map[sim.IntersectionID]*planEntry
}

// LoadNetwork reads and validates a network YAML file.
func LoadNetwork(path string) (*Network, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network %s: %w", path, err)
	}
	n, err := ParseNetwork(raw)
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", path, err)
	}
	return n, nil
}

// ParseNetwork decodes and validates network YAML.
func ParseNetwork(raw []byte) (*Network, error) {
	var file networkFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse network: %w", err)
	}
	return buildNetwork(&file)
}

func buildNetwork(file *networkFile) (*Network, error) {
	n := &Network{
		name:          file.Name,
		intersections: make([]IntersectionInfo, len(file.Intersections)),
		turns:         make(map[sim.TurnID]*turnEntry, len(file.Turns)),
		plans:         make(map[sim.IntersectionID]*planEntry, len(file.SignalPlans)),
	}

	seen := make([]bool, len(file.Intersections))
	for _, info := range file.Intersections {
		if info.ID < 0 || info.ID >= len(file.Intersections) || seen[info.ID] {
			return nil, fmt.Errorf("%w: intersection ids must be unique and in [0,%d), got %d", sim.ErrMalformed, len(file.Intersections), info.ID)
		}
		seen[info.ID] = true
		n.intersections[info.ID] = info
	}

	for _, t := range file.Turns {
		id := sim.TurnID(t.ID)
		if _, dup := n.turns[id]; dup {
			return nil, fmt.Errorf("%w: duplicate turn %d", sim.ErrMalformed, t.ID)
		}
		if t.Intersection < 0 || t.Intersection >= len(n.intersections) {
			return nil, fmt.Errorf("%w: turn %d references intersection %d", sim.ErrMalformed, t.ID, t.Intersection)
		}
		if t.Length <= 0 {
			return nil, fmt.Errorf("%w: turn %d has non-positive length %v", sim.ErrMalformed, t.ID, t.Length)
		}
		e := &turnEntry{
			parent:    sim.IntersectionID(t.Intersection),
			length:    t.Length,
			priority:  sim.PriorityNormal,
			conflicts: make(map[sim.TurnID]struct{}, len(t.Conflicts)),
		}
		if !n.intersections[t.Intersection].Signal {
			p, err := sim.ParsePriority(t.Priority)
			if err != nil {
				return nil, fmt.Errorf("%w: turn %d: %v", sim.ErrMalformed, t.ID, err)
			}
			e.priority = p
		}
		n.turns[id] = e
	}

	// Conflicts are declared on either side; store the symmetric closure.
	for _, t := range file.Turns {
		a := sim.TurnID(t.ID)
		for _, c := range t.Conflicts {
			b := sim.TurnID(c)
			other, ok := n.turns[b]
			if !ok {
				return nil, fmt.Errorf("%w: turn %d conflicts with unknown turn %d", sim.ErrMalformed, t.ID, c)
			}
			if other.parent != n.turns[a].parent {
				return nil, fmt.Errorf("%w: turns %d and %d conflict across intersections", sim.ErrMalformed, t.ID, c)
			}
			if a == b {
				continue
			}
			n.turns[a].conflicts[b] = struct{}{}
			other.conflicts[a] = struct{}{}
		}
	}

	for _, p := range file.SignalPlans {
		i := p.Intersection
		if i < 0 || i >= len(n.intersections) || !n.intersections[i].Signal {
			return nil, fmt.Errorf("%w: signal plan for non-signal intersection %d", sim.ErrMalformed, i)
		}
		if _, dup := n.plans[sim.IntersectionID(i)]; dup {
			return nil, fmt.Errorf("%w: duplicate signal plan for intersection %d", sim.ErrMalformed, i)
		}
		plan, err := n.buildPlan(p)
		if err != nil {
			return nil, err
		}
		n.plans[sim.IntersectionID(i)] = plan
	}
	for _, info := range n.intersections {
		if _, ok := n.plans[sim.IntersectionID(info.ID)]; info.Signal && !ok {
			return nil, fmt.Errorf("%w: signalized intersection %d has no plan", sim.ErrMalformed, info.ID)
		}
	}
	return n, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (n *Network) buildPlan(p SignalPlanInfo) (*planEntry, error) {
	if len(p.Cycles) == 0 {
		return nil, fmt.Errorf("%w: signal plan for intersection %d has no cycles", sim.ErrMalformed, p.Intersection)
	}
	plan := &planEntry{offset: seconds(p.Offset)}
	for k, c := range p.Cycles {
		ce := cycleEntry{turns: make(sim.TurnSet, len(c.Turns)), duration: seconds(c.Duration)}
		// Checked after conversion: sub-nanosecond durations round to zero.
		if ce.duration <= 0 {
			return nil, fmt.Errorf("%w: intersection %d cycle %d has non-positive duration %v", sim.ErrMalformed, p.Intersection, k, c.Duration)
		}
		for _, t := range c.Turns {
			e, ok := n.turns[sim.TurnID(t)]
			if !ok || int(e.parent) != p.Intersection {
				return nil, fmt.Errorf("%w: intersection %d cycle %d lists foreign turn %d", sim.ErrMalformed, p.Intersection, k, t)
			}
			ce.turns[sim.TurnID(t)] = struct{}{}
		}
		plan.cycles = append(plan.cycles, ce)
		plan.total += ce.duration
	}
	return plan, nil
}

// Name returns the network name from the file.
func (n *Network) Name() string { return n.name }

// Intersection returns the metadata of intersection i.
func (n *Network) Intersection(i sim.IntersectionID) IntersectionInfo { return n.intersections[i] }

// TurnCount returns the number of turns loaded.
func (n *Network) TurnCount() int { return len(n.turns) }

func (n *Network) NumIntersections() int { return len(n.intersections) }

func (n *Network) HasSignal(i sim.IntersectionID) bool { return n.intersections[i].Signal }

func (n *Network) TurnParent(t sim.TurnID) (sim.IntersectionID, bool) {
	e, ok := n.turns[t]
	if !ok {
		return 0, false
	}
	return e.parent, true
}

func (n *Network) TurnLength(t sim.TurnID) float64 {
	if e, ok := n.turns[t]; ok {
		return e.length
	}
	return 0
}

func (n *Network) Conflicts(a, b sim.TurnID) bool {
	e, ok := n.turns[a]
	if !ok {
		return false
	}
	_, c := e.conflicts[b]
	return c
}

func (n *Network) HasStopSign(i sim.IntersectionID) bool {
	return int(i) >= 0 && int(i) < len(n.intersections) && !n.intersections[i].Signal
}

func (n *Network) Priority(_ sim.IntersectionID, t sim.TurnID) sim.Priority {
	if e, ok := n.turns[t]; ok {
		return e.priority
	}
	return sim.PriorityStop
}

func (n *Network) HasSignalPlan(i sim.IntersectionID) bool {
	_, ok := n.plans[i]
	return ok
}

// CurrentCycle returns the active cycle of a fixed-time plan and the time left in
// it. The plan repeats forever, shifted by its offset.
func (n *Network) CurrentCycle(i sim.IntersectionID, now time.Duration) (sim.Cycle, time.Duration, error) {
	plan, ok := n.plans[i]
	if !ok {
		return nil, 0, fmt.Errorf("%w: no signal plan for intersection %d", sim.ErrMalformed, i)
	}
	t := (now - plan.offset) % plan.total
	if t < 0 {
		t += plan.total
	}
	for _, c := range plan.cycles {
		if t < c.duration {
			return c.turns, c.duration - t, nil
		}
		t -= c.duration
	}
	// Unreachable: t < total = sum of durations.
	last := plan.cycles[len(plan.cycles)-1]
	return last.turns, 0, nil
}

// Control returns the network as the registry's control layer.
func (n *Network) Control() sim.Control {
	return sim.Control{StopSigns: n, Signals: n}
}
