package simulator

import (
	"testing"

	"tradeflow/internal/catalog"
	"tradeflow/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource always returns the same draws.
type fixedSource struct {
	float float64
	int   int64
}

func (f fixedSource) Float64() float64 { return f.float }

func (f fixedSource) Int63n(n int64) int64 {
	if f.int >= n {
		return n - 1
	}
	return f.int
}

func newTestSimulator(t *testing.T, rng Source, symbols ...string) *Simulator {
	t.Helper()
	s := New(catalog.Default(), rng)
	for _, symbol := range symbols {
		_, err := s.Follow(symbol)
		require.NoError(t, err)
	}
	return s
}

func TestFollow_StartsAtReferencePrice(t *testing.T) {
	s := newTestSimulator(t, NewSource(1))

	p, err := s.Follow("NVDA")
	require.NoError(t, err)

	assert.Equal(t, 467.30, p.Price)
	assert.Equal(t, 467.30, p.PreviousClose)
	assert.Equal(t, 467.30, p.High)
	assert.Equal(t, 467.30, p.Low)
	assert.Greater(t, p.Shares, int64(0))
	assert.GreaterOrEqual(t, p.Volume, int64(minSeedVolume))
	assert.Less(t, p.Volume, int64(minSeedVolume+seedVolumeRange))
}

func TestFollow_Errors(t *testing.T) {
	s := newTestSimulator(t, NewSource(1), "GOOG")

	_, err := s.Follow("GOOG")
	assert.ErrorIs(t, err, ErrAlreadyFollowing)

	_, err = s.Follow("AAPL")
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	assert.Equal(t, []string{"GOOG"}, s.Symbols())
}

func TestFollow_SeedRanges(t *testing.T) {
	low := newTestSimulator(t, fixedSource{int: 0}, "TSLA")
	p, _ := low.Position("TSLA")
	assert.Equal(t, int64(minSeedShares), p.Shares)
	assert.Equal(t, int64(minSeedVolume), p.Volume)

	high := newTestSimulator(t, fixedSource{int: 1 << 40}, "TSLA")
	p, _ = high.Position("TSLA")
	assert.Equal(t, int64(minSeedShares+seedSharesRange-1), p.Shares)
	assert.Equal(t, int64(minSeedVolume+seedVolumeRange-1), p.Volume)
}

func TestUnfollow_Idempotent(t *testing.T) {
	s := newTestSimulator(t, NewSource(1), "GOOG", "TSLA", "AMZN")

	assert.True(t, s.Unfollow("TSLA"))
	once := s.Positions()

	assert.False(t, s.Unfollow("TSLA"))
	assert.Equal(t, once, s.Positions())
	assert.Equal(t, []string{"GOOG", "AMZN"}, s.Symbols())

	_, ok := s.Position("TSLA")
	assert.False(t, ok)
}

func TestRefollowResetsPreviousClose(t *testing.T) {
	s := newTestSimulator(t, fixedSource{float: 0.99}, "META")
	s.Tick()
	moved, _ := s.Position("META")
	require.NotEqual(t, moved.PreviousClose, moved.Price)

	s.Unfollow("META")
	p, err := s.Follow("META")
	require.NoError(t, err)
	assert.Equal(t, 505.75, p.Price)
	assert.Equal(t, 505.75, p.PreviousClose)
}

func TestAddShares(t *testing.T) {
	s := newTestSimulator(t, NewSource(1), "GOOG")
	before, _ := s.Position("GOOG")

	p, err := s.AddShares("GOOG", 3)
	require.NoError(t, err)
	assert.Equal(t, before.Shares+3, p.Shares)

	_, err = s.AddShares("GOOG", -5)
	assert.ErrorIs(t, err, ErrNegativeShares)
	after, _ := s.Position("GOOG")
	assert.Equal(t, before.Shares+3, after.Shares)

	_, err = s.AddShares("NVDA", 1)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestTick_MinusOnePercent(t *testing.T) {
	s := newTestSimulator(t, fixedSource{float: 0, int: 0}, "NVDA")

	next := s.Tick()
	require.Len(t, next, 1)

	p := next[0]
	assert.InDelta(t, 467.30*0.99, p.Price, 1e-9)
	assert.Equal(t, p.Price, p.Low)
	assert.Equal(t, 467.30, p.High)
	assert.Equal(t, 467.30, p.PreviousClose)
}

func TestTick_FloorClamp(t *testing.T) {
	p := models.Position{Symbol: "X", Price: 1.005, PreviousClose: 1.2, High: 1.2, Low: 1.005}

	next := Apply(p, -1, 1)
	assert.Equal(t, PriceFloor, next.Price)
	assert.Equal(t, PriceFloor, next.Low)

	next = Apply(next, -1, 1)
	assert.Equal(t, PriceFloor, next.Price)
}

func TestTick_ZeroChange(t *testing.T) {
	s := newTestSimulator(t, fixedSource{float: 0.5, int: 0}, "AMZN")

	for i := 0; i < 3; i++ {
		s.Tick()
	}

	p, _ := s.Position("AMZN")
	assert.Equal(t, 186.40, p.Price)
	assert.Zero(t, p.ChangePercent())
	assert.Zero(t, p.PnL())
}

func TestTick_Invariants(t *testing.T) {
	s := newTestSimulator(t, NewSource(42), allSymbols()...)
	closes := make(map[string]float64)
	volumes := make(map[string]int64)
	for _, p := range s.Positions() {
		closes[p.Symbol] = p.PreviousClose
		volumes[p.Symbol] = p.Volume
	}

	for i := 0; i < 2000; i++ {
		for _, p := range s.Tick() {
			require.LessOrEqual(t, p.Low, p.Price)
			require.LessOrEqual(t, p.Price, p.High)
			require.GreaterOrEqual(t, p.Price, PriceFloor)
			require.Equal(t, closes[p.Symbol], p.PreviousClose)
			require.Greater(t, p.Volume, volumes[p.Symbol])
			volumes[p.Symbol] = p.Volume
		}
	}
}

func TestTick_StepBounded(t *testing.T) {
	rng := NewSource(7)
	p := models.NewPosition(models.Instrument{Symbol: "X", ReferencePrice: 100}, 1, 1)

	for i := 0; i < 1000; i++ {
		next := Step(p, rng)
		ratio := next.Price / p.Price
		require.GreaterOrEqual(t, ratio, 0.99-1e-12)
		require.Less(t, ratio, 1.01)
		p = next
	}
}

func TestTick_Deterministic(t *testing.T) {
	a := newTestSimulator(t, NewSource(99), "GOOG", "NVDA")
	b := newTestSimulator(t, NewSource(99), "GOOG", "NVDA")

	for i := 0; i < 50; i++ {
		a.Tick()
		b.Tick()
	}
	assert.Equal(t, a.Positions(), b.Positions())
}

func TestStepAll_DoesNotMutateInput(t *testing.T) {
	positions := []models.Position{
		models.NewPosition(models.Instrument{Symbol: "X", ReferencePrice: 50}, 10, 1),
	}

	next := StepAll(positions, fixedSource{float: 0.9})
	assert.Equal(t, 50.0, positions[0].Price)
	assert.NotEqual(t, 50.0, next[0].Price)
}

func allSymbols() []string {
	return catalog.Default().Symbols()
}
