package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCapital means the sized amount fell below the
	// exchange minimum notional. Non-fatal: the caller skips the buy
	// (or the spawn) and retries at the next tick.
	ErrInsufficientCapital = errors.New("insufficient capital for minimum notional")

	// ErrLevelAlreadyOpen and ErrLevelEmpty are ledger contract
	// violations. They indicate a transition engine bug and abort the
	// current transition without touching the ledger further.
	ErrLevelAlreadyOpen = errors.New("level already holds a position")
	ErrLevelEmpty       = errors.New("level holds no position")

	// ErrInstanceClosed is returned when an operation reaches an
	// instance that has already terminated.
	ErrInstanceClosed = errors.New("grid instance is closed")
)

// TransitionError wraps the failure of one intent within a transition.
// Sibling intents in the same transition still proceed.
type TransitionError struct {
	Intent Intent
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition failed: %s L%d (%s): %v", e.Intent.Side, e.Intent.Level, e.Intent.Reason, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
