// Package portfolio derives portfolio-level figures from the simulator's
// positions. Everything here is recomputed from scratch on each call.
package portfolio

import (
	"math"
	"sort"
	"strings"

	"tradeflow/internal/catalog"
	"tradeflow/pkg/models"
)

// Compute totals value, P&L and return over positions. Return is 0 when the
// cost basis is 0.
func Compute(positions []models.Position) models.Snapshot {
	var value, pnl, basis float64
	for _, p := range positions {
		value += p.MarketValue()
		pnl += p.PnL()
		basis += p.CostBasis()
	}

	snapshot := models.Snapshot{
		TotalValue: value,
		TotalPnL:   pnl,
		Positions:  len(positions),
	}
	if basis > 0 {
		snapshot.TotalReturnPercent = pnl / basis * 100
	}
	return snapshot
}

// Filter keeps the positions whose symbol, instrument name or sector contains
// query, ignoring case. An empty query keeps everything.
func Filter(positions []models.Position, c *catalog.Catalog, query string) []models.Position {
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]models.Position, 0, len(positions))
	for _, p := range positions {
		if query == "" || matches(p.Symbol, c, query) {
			out = append(out, p)
		}
	}
	return out
}

func matches(symbol string, c *catalog.Catalog, query string) bool {
	if strings.Contains(strings.ToLower(symbol), query) {
		return true
	}

	instrument, ok := c.Lookup(symbol)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(instrument.Name), query) ||
		strings.Contains(strings.ToLower(instrument.Sector), query)
}

// TopMovers returns up to n positions ordered by absolute change percent,
// largest first. Ties keep follow order.
func TopMovers(positions []models.Position, n int) []models.Position {
	out := make([]models.Position, len(positions))
	copy(out, positions)

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].ChangePercent()) > math.Abs(out[j].ChangePercent())
	})

	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Allocation maps each symbol to its percentage of total market value.
func Allocation(positions []models.Position) map[string]float64 {
	total := Compute(positions).TotalValue

	out := make(map[string]float64, len(positions))
	for _, p := range positions {
		if total > 0 {
			out[p.Symbol] = p.MarketValue() / total * 100
		} else {
			out[p.Symbol] = 0
		}
	}
	return out
}

// Holdings joins positions with their catalog metadata for display.
func Holdings(positions []models.Position, c *catalog.Catalog) []models.Holding {
	out := make([]models.Holding, 0, len(positions))
	for _, p := range positions {
		instrument, _ := c.Lookup(p.Symbol)
		out = append(out, models.Holding{
			Position:      p,
			Name:          instrument.Name,
			Sector:        instrument.Sector,
			Color:         instrument.Color,
			Change:        p.Change(),
			ChangePercent: p.ChangePercent(),
			Value:         p.MarketValue(),
		})
	}
	return out
}
