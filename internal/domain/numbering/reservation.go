package numbering

import "fmt"

// ReservationState is the lifecycle state of one reservation attempt
type ReservationState int

const (
	// StateIdle means no reservation is in flight
	StateIdle ReservationState = iota
	// StateReserving means the sequence lock is being acquired
	StateReserving
	// StateReserved means a candidate has been issued and the counter advanced
	StateReserved
	// StateCommitted means the entity save succeeded
	StateCommitted
	// StateReleased means the save failed and the candidate was handed back
	StateReleased
	// StateBurned means the save failed because the candidate was taken; it is never reissued
	StateBurned
)

func (s ReservationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReserving:
		return "reserving"
	case StateReserved:
		return "reserved"
	case StateCommitted:
		return "committed"
	case StateReleased:
		return "released"
	case StateBurned:
		return "burned"
	default:
		return fmt.Sprintf("ReservationState(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is possible
func (s ReservationState) IsTerminal() bool {
	return s == StateCommitted || s == StateReleased || s == StateBurned
}

// Reservation is an in-memory claim on one candidate number for a single save attempt
type Reservation struct {
	Key    Key
	Value  int64
	Number string
	state  ReservationState
}

func (r *Reservation) transition(to ReservationState) error {
	allowed := false
	switch r.state {
	case StateIdle:
		allowed = to == StateReserving
	case StateReserving:
		allowed = to == StateReserved || to == StateIdle
	case StateReserved:
		allowed = to.IsTerminal()
	}
	if !allowed {
		return fmt.Errorf("reservation %s: invalid transition %s -> %s", r.Number, r.state, to)
	}
	r.state = to
	return nil
}
