package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConstraint signals a malformed constraint (min > max, empty allow-list).
	ErrInvalidConstraint = errors.New("invalid constraint")
	// ErrSchemaMismatch signals a column-set disagreement between datasets or constraints.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrConstraintUnsatisfiable signals an exhausted sampling budget with pending rows remaining.
	ErrConstraintUnsatisfiable = errors.New("constraint unsatisfiable")
	// ErrModelTraining signals a generative model training failure.
	ErrModelTraining = errors.New("model training failed")
	// ErrModelSampling signals a generative model sampling failure.
	ErrModelSampling = errors.New("model sampling failed")
	// ErrModelNotTrained signals sampling from an untrained model.
	ErrModelNotTrained = errors.New("model not trained")
	// ErrUnknownBackend signals a model backend name outside the configured set.
	ErrUnknownBackend = errors.New("unknown model backend")

	// ErrSessionNotFound signals a missing generation session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDatasetNotFound signals a missing dataset artifact.
	ErrDatasetNotFound = errors.New("dataset not found")
)

// UnsatisfiableError wraps ErrConstraintUnsatisfiable with the state the
// caller needs to decide whether to relax constraints and retry: the
// number of unresolved positions, the rounds spent, and how many rows
// were accepted before the budget ran out. The partially accepted batch
// is returned alongside it, never discarded silently.
type UnsatisfiableError struct {
	Pending  int
	Accepted int
	Rounds   int
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("%s: %d of %d positions pending after %d rounds",
		ErrConstraintUnsatisfiable.Error(), e.Pending, e.Pending+e.Accepted, e.Rounds)
}

func (e *UnsatisfiableError) Unwrap() error { return ErrConstraintUnsatisfiable }

// NewUnsatisfiable creates a constraint-unsatisfiable error.
func NewUnsatisfiable(pending, accepted, rounds int) error {
	return &UnsatisfiableError{Pending: pending, Accepted: accepted, Rounds: rounds}
}
