package src

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes a caller is expected to branch on.
var (
	// ErrInsufficientBudget means the caller has no credits left. No
	// network call is made.
	ErrInsufficientBudget = errors.New("insufficient budget")

	// ErrMissingCredential means no usable key exists for the requested
	// provider, neither from the caller nor from the shared pool.
	ErrMissingCredential = errors.New("missing credential")

	// ErrParseFailure means every parse strategy failed, including the
	// one self-correction round trip.
	ErrParseFailure = errors.New("unparseable model response")

	// ErrTaskExhausted means an agent task was rejected by the analysis
	// step three times in a row; the whole run aborts.
	ErrTaskExhausted = errors.New("task attempts exhausted")

	// ErrActionFailed means an action in a god-mode queue failed; the
	// remaining queue is abandoned without rolling back completed actions.
	ErrActionFailed = errors.New("action failed")
)

// ProviderError wraps the last transport failure after the retry ceiling
// is reached.
type ProviderError struct {
	Provider Provider
	Attempts int
	Last     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed after %d attempts: %v", e.Provider, e.Attempts, e.Last)
}

func (e *ProviderError) Unwrap() error { return e.Last }
