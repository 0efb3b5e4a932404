package simulator

import (
	"errors"

	"tradeflow/internal/catalog"
	"tradeflow/pkg/models"
)

var (
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrAlreadyFollowing = errors.New("symbol already followed")
	ErrNegativeShares   = errors.New("share delta must not be negative")
)

const (
	// MaxStepPercent bounds the per-tick move: each step draws uniformly from
	// [-MaxStepPercent, +MaxStepPercent).
	MaxStepPercent = 1.0
	PriceFloor     = 1.0

	minSeedVolume   = 1_000_000
	seedVolumeRange = 10_000_000
	minSeedShares   = 5
	seedSharesRange = 20
	maxVolumeStep   = 10_000
)

// Simulator owns the followed set and one position per followed symbol.
// It performs no locking; callers serialize access.
type Simulator struct {
	catalog   *catalog.Catalog
	rng       Source
	order     []string
	positions map[string]models.Position
}

func New(c *catalog.Catalog, rng Source) *Simulator {
	return &Simulator{
		catalog:   c,
		rng:       rng,
		positions: make(map[string]models.Position),
	}
}

// Follow opens a position at the instrument's reference price with a random
// volume seed and a random nonzero demo holding.
func (s *Simulator) Follow(symbol string) (models.Position, error) {
	if _, exists := s.positions[symbol]; exists {
		return models.Position{}, ErrAlreadyFollowing
	}

	instrument, ok := s.catalog.Lookup(symbol)
	if !ok {
		return models.Position{}, ErrUnknownSymbol
	}

	volume := minSeedVolume + s.rng.Int63n(seedVolumeRange)
	shares := minSeedShares + s.rng.Int63n(seedSharesRange)
	position := models.NewPosition(instrument, volume, shares)

	s.positions[symbol] = position
	s.order = append(s.order, symbol)

	return position, nil
}

// Unfollow drops the position and reports whether one existed.
func (s *Simulator) Unfollow(symbol string) bool {
	if _, exists := s.positions[symbol]; !exists {
		return false
	}

	delete(s.positions, symbol)
	for i, existing := range s.order {
		if existing == symbol {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Simulator) AddShares(symbol string, delta int64) (models.Position, error) {
	position, exists := s.positions[symbol]
	if !exists {
		return models.Position{}, ErrUnknownSymbol
	}
	if delta < 0 {
		return position, ErrNegativeShares
	}

	position.Shares += delta
	s.positions[symbol] = position
	return position, nil
}

// Tick advances every position by one step and returns the new positions in
// follow order.
func (s *Simulator) Tick() []models.Position {
	next := StepAll(s.Positions(), s.rng)
	for _, position := range next {
		s.positions[position.Symbol] = position
	}
	return next
}

// Positions returns the current positions in follow order.
func (s *Simulator) Positions() []models.Position {
	out := make([]models.Position, 0, len(s.order))
	for _, symbol := range s.order {
		out = append(out, s.positions[symbol])
	}
	return out
}

func (s *Simulator) Position(symbol string) (models.Position, bool) {
	position, exists := s.positions[symbol]
	return position, exists
}

// Symbols returns the followed set in follow order.
func (s *Simulator) Symbols() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Simulator) Len() int {
	return len(s.order)
}

func (s *Simulator) Catalog() *catalog.Catalog {
	return s.catalog
}

// Step applies one bounded symmetric random-walk move to a position.
func Step(p models.Position, rng Source) models.Position {
	changePercent := (rng.Float64() - 0.5) * 2 * MaxStepPercent
	return Apply(p, changePercent, 1+rng.Int63n(maxVolumeStep))
}

// Apply moves the price by changePercent, clamps it to the floor, widens the
// running extrema and adds volume.
func Apply(p models.Position, changePercent float64, volume int64) models.Position {
	price := p.Price * (1 + changePercent/100)
	if price < PriceFloor {
		price = PriceFloor
	}

	p.Price = price
	if price > p.High {
		p.High = price
	}
	if price < p.Low {
		p.Low = price
	}
	p.Volume += volume
	return p
}

// StepAll is the pure tick transition over a set of positions.
func StepAll(positions []models.Position, rng Source) []models.Position {
	next := make([]models.Position, len(positions))
	for i, position := range positions {
		next[i] = Step(position, rng)
	}
	return next
}
