package scripting

import (
	"fmt"
	"time"

	"github.com/junctionsim/junction/internal/sim"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const signalPlanFunc = "signal_plan"

// SignalPlans answers signal plan queries from the Lua function
//
//	signal_plan(intersection, seconds) -> {turns = {...}, remaining = seconds} | nil
//
// and falls back to the static plan whenever the script returns nil or does not
// define the function. Only intersections the static plan knows are signalized.
type SignalPlans struct {
	engine   *Engine
	fallback sim.SignalPlanProvider
	log      *zap.Logger
}

func NewSignalPlans(engine *Engine, fallback sim.SignalPlanProvider, log *zap.Logger) *SignalPlans {
	return &SignalPlans{engine: engine, fallback: fallback, log: log}
}

func (p *SignalPlans) HasSignalPlan(i sim.IntersectionID) bool {
	return p.fallback.HasSignalPlan(i)
}

func (p *SignalPlans) CurrentCycle(i sim.IntersectionID, now time.Duration) (sim.Cycle, time.Duration, error) {
	cycle, remaining, ok, err := p.scripted(i, now)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return p.fallback.CurrentCycle(i, now)
	}
	return cycle, remaining, nil
}

func (p *SignalPlans) scripted(i sim.IntersectionID, now time.Duration) (sim.Cycle, time.Duration, bool, error) {
	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, defined := e.vm.GetGlobal(signalPlanFunc).(*lua.LFunction); !defined {
		return nil, 0, false, nil
	}
	result, err := e.call(signalPlanFunc, lua.LNumber(i), lua.LNumber(now.Seconds()))
	if err != nil {
		return nil, 0, false, fmt.Errorf("intersection %d: %w", i, err)
	}
	if result == lua.LNil {
		return nil, 0, false, nil
	}
	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil, 0, false, fmt.Errorf("intersection %d: %s returned %s, want table", i, signalPlanFunc, result.Type())
	}

	remaining := float64(lua.LVAsNumber(rt.RawGetString("remaining")))
	if remaining < 0 {
		return nil, 0, false, fmt.Errorf("intersection %d: negative remaining time %v", i, remaining)
	}

	turns := sim.NewTurnSet()
	if list, ok := rt.RawGetString("turns").(*lua.LTable); ok {
		list.ForEach(func(_, v lua.LValue) {
			if n, ok := v.(lua.LNumber); ok {
				turns[sim.TurnID(n)] = struct{}{}
			}
		})
	}
	p.log.Debug("scripted signal cycle",
		zap.Int("intersection", int(i)),
		zap.Duration("now", now),
		zap.Int("turns", len(turns)),
		zap.Float64("remaining", remaining))
	return turns, time.Duration(remaining * float64(time.Second)), true, nil
}
