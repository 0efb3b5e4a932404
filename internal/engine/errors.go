package engine

import (
	"errors"
	"fmt"

	"tradeflow/internal/simulator"
)

var (
	ErrUnknownSymbol    = simulator.ErrUnknownSymbol
	ErrAlreadyFollowing = simulator.ErrAlreadyFollowing
	ErrNegativeShares   = simulator.ErrNegativeShares

	// ErrPersistenceFailure matches every PersistenceError.
	ErrPersistenceFailure = errors.New("subscription persistence failed")
)

// PersistenceError reports a subscription change that was applied in memory
// but rejected by the subscription store. The in-memory change stands.
type PersistenceError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Symbol, ErrPersistenceFailure, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistenceFailure
}
