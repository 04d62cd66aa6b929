package numbering

import "context"

// State is the persisted row of one sequence
type State struct {
	// Next is the next candidate value. It never decreases except when a
	// release hands back the most recent reservation.
	Next int64
	// Template renders Next into a display number
	Template string
}

// Store persists sequence counters and answers uniqueness questions
type Store interface {
	// Load returns the persisted state. found is false when the sequence has no row yet.
	Load(ctx context.Context, key Key) (state State, found bool, err error)

	// Save upserts the state. Callers must hold the sequence lock.
	Save(ctx context.Context, key Key, state State) error

	// NumberExists reports whether number is already persisted for key
	NumberExists(ctx context.Context, key Key, number string) (bool, error)
}
