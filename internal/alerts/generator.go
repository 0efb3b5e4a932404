package alerts

import (
	"fmt"
	"math"
	"time"

	"tradeflow/pkg/models"
)

const (
	// SignificantMovePercent is the move since previous close above which a
	// price alert may fire.
	SignificantMovePercent = 3.0
	// AlertProbability is the chance per qualifying tick that an alert fires.
	AlertProbability = 0.05
)

// Random is the draw the alert gate uses.
type Random interface {
	Float64() float64
}

// Generator derives notifications from price movement and user actions.
// It is not safe for concurrent use.
type Generator struct {
	rng      Random
	now      func() time.Time
	welcomed bool
}

func NewGenerator(rng Random, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rng: rng,
		now: now,
	}
}

// Evaluate decides whether the move from prev to next deserves a price alert.
// Qualifying moves only fire when the independent draw passes the gate.
func (g *Generator) Evaluate(prev, next models.Position) (*models.Notification, bool) {
	if prev.Symbol != next.Symbol {
		return nil, false
	}

	totalChangePercent := next.ChangePercent()
	if math.Abs(totalChangePercent) <= SignificantMovePercent {
		return nil, false
	}

	if g.rng.Float64() >= AlertProbability {
		return nil, false
	}

	direction := "up"
	if totalChangePercent < 0 {
		direction = "down"
	}

	return models.NewNotification(
		models.CategoryPriceAlert,
		fmt.Sprintf("%s Price Alert", next.Symbol),
		fmt.Sprintf("%s is %s %.2f%% today", next.Symbol, direction, math.Abs(totalChangePercent)),
		g.now(),
	), true
}

// EvaluateAll runs Evaluate pairwise over a tick's before and after positions.
func (g *Generator) EvaluateAll(prev, next []models.Position) []*models.Notification {
	before := make(map[string]models.Position, len(prev))
	for _, p := range prev {
		before[p.Symbol] = p
	}

	var out []*models.Notification
	for _, p := range next {
		old, ok := before[p.Symbol]
		if !ok {
			continue
		}
		if n, fired := g.Evaluate(old, p); fired {
			out = append(out, n)
		}
	}
	return out
}

func (g *Generator) Followed(symbol string) *models.Notification {
	return models.NewNotification(
		models.CategoryPortfolio,
		"Stock Added",
		fmt.Sprintf("%s has been added to your portfolio", symbol),
		g.now(),
	)
}

func (g *Generator) Unfollowed(symbol string) *models.Notification {
	return models.NewNotification(
		models.CategoryPortfolio,
		"Stock Removed",
		fmt.Sprintf("%s has been removed from your portfolio", symbol),
		g.now(),
	)
}

// Welcome returns the welcome notification the first time it is called with a
// non-empty followed set, and nothing afterwards.
func (g *Generator) Welcome(followed int) (*models.Notification, bool) {
	if g.welcomed || followed == 0 {
		return nil, false
	}
	g.welcomed = true

	return models.NewNotification(
		models.CategorySystem,
		"Welcome to TradeFlow",
		"Your dashboard is ready. Start tracking your stocks!",
		g.now(),
	), true
}

// SyncFailed reports a subscription change the durable store did not accept.
func (g *Generator) SyncFailed(action, symbol string) *models.Notification {
	return models.NewNotification(
		models.CategorySystem,
		"Sync Failed",
		fmt.Sprintf("Could not save %s of %s; it will not survive a restart", action, symbol),
		g.now(),
	)
}
