package simulator

import "math/rand"

// Source is the randomness the simulation draws from. Implementations are not
// required to be safe for concurrent use; the simulator is single-writer.
type Source interface {
	Float64() float64
	Int63n(n int64) int64
}

// NewSource returns a deterministic source for the given seed.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}
