package sim

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/sets/treeset"
)

func agentComparator(a, b interface{}) int {
	return a.(AgentID).Compare(b.(AgentID))
}

func requestComparator(a, b interface{}) int {
	return a.(Request).Compare(b.(Request))
}

// agentTurns is an ordered AgentID -> TurnID map.
type agentTurns struct {
	m *treemap.Map
}

func newAgentTurns() agentTurns {
	return agentTurns{m: treemap.NewWith(agentComparator)}
}

func (a agentTurns) get(agent AgentID) (TurnID, bool) {
	v, ok := a.m.Get(agent)
	if !ok {
		return 0, false
	}
	return v.(TurnID), true
}

func (a agentTurns) put(agent AgentID, turn TurnID) { a.m.Put(agent, turn) }
func (a agentTurns) remove(agent AgentID)           { a.m.Remove(agent) }
func (a agentTurns) len() int                       { return a.m.Size() }

// each visits entries in agent order until fn returns false.
func (a agentTurns) each(fn func(AgentID, TurnID) bool) {
	it := a.m.Iterator()
	for it.Next() {
		if !fn(it.Key().(AgentID), it.Value().(TurnID)) {
			return
		}
	}
}

// requestTicks is an ordered Request -> Tick map.
type requestTicks struct {
	m *treemap.Map
}

func newRequestTicks() requestTicks {
	return requestTicks{m: treemap.NewWith(requestComparator)}
}

func (r requestTicks) get(req Request) (Tick, bool) {
	v, ok := r.m.Get(req)
	if !ok {
		return 0, false
	}
	return v.(Tick), true
}

func (r requestTicks) put(req Request, t Tick) { r.m.Put(req, t) }
func (r requestTicks) remove(req Request)      { r.m.Remove(req) }
func (r requestTicks) len() int                { return r.m.Size() }

func (r requestTicks) each(fn func(Request, Tick) bool) {
	it := r.m.Iterator()
	for it.Next() {
		if !fn(it.Key().(Request), it.Value().(Tick)) {
			return
		}
	}
}

// requestSet is an ordered set of Requests.
type requestSet struct {
	s *treeset.Set
}

func newRequestSet() requestSet {
	return requestSet{s: treeset.NewWith(requestComparator)}
}

func (r requestSet) add(req Request)           { r.s.Add(req) }
func (r requestSet) remove(req Request)        { r.s.Remove(req) }
func (r requestSet) contains(req Request) bool { return r.s.Contains(req) }
func (r requestSet) len() int                  { return r.s.Size() }

func (r requestSet) each(fn func(Request) bool) {
	it := r.s.Iterator()
	for it.Next() {
		if !fn(it.Value().(Request)) {
			return
		}
	}
}
