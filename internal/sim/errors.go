package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrConsistency marks protocol violations by a caller of the registry.
	ErrConsistency = errors.New("intersection protocol violation")
	// ErrMalformed marks external data the engine cannot work with.
	ErrMalformed = errors.New("malformed intersection data")
)

// ConsistencyViolation describes an enter/exit/submit that does not match the
// registry's accepted set. errors.Is(v, ErrConsistency) holds.
type ConsistencyViolation struct {
	Op           string
	Request      Request
	Intersection IntersectionID
	// Held is the turn the agent actually holds, if any.
	Held    TurnID
	HasHeld bool
}

func (v *ConsistencyViolation) Error() string {
	if v.HasHeld {
		return fmt.Sprintf("%s %s at intersection %d: agent holds turn %d", v.Op, v.Request, v.Intersection, v.Held)
	}
	return fmt.Sprintf("%s %s at intersection %d: agent not accepted", v.Op, v.Request, v.Intersection)
}

func (v *ConsistencyViolation) Unwrap() error { return ErrConsistency }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
