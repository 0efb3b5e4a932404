package models

import (
	"math"
	"testing"
)

func TestNewPosition(t *testing.T) {
	nvda := Instrument{Symbol: "NVDA", Name: "NVIDIA Corp.", Sector: "Semiconductors", ReferencePrice: 467.30}
	p := NewPosition(nvda, 2_000_000, 7)

	if p.Price != 467.30 || p.PreviousClose != 467.30 || p.High != 467.30 || p.Low != 467.30 {
		t.Errorf("Expected all prices at 467.30, got %+v", p)
	}
	if p.Shares != 7 {
		t.Errorf("Expected 7 shares, got %d", p.Shares)
	}
	if p.Change() != 0 || p.ChangePercent() != 0 || p.PnL() != 0 {
		t.Errorf("Expected a flat new position, got change %f", p.Change())
	}
}

func TestPosition_Derived(t *testing.T) {
	p := Position{Symbol: "TSLA", Price: 110, PreviousClose: 100, High: 110, Low: 100, Shares: 3}

	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"change", p.Change(), 10},
		{"change percent", p.ChangePercent(), 10},
		{"market value", p.MarketValue(), 330},
		{"cost basis", p.CostBasis(), 300},
		{"pnl", p.PnL(), 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.expected) > 1e-9 {
				t.Errorf("got %f, expected %f", tt.got, tt.expected)
			}
		})
	}
}

func TestPosition_ChangePercentZeroBase(t *testing.T) {
	p := Position{Price: 5}
	if p.ChangePercent() != 0 {
		t.Errorf("Expected 0 for zero previous close, got %f", p.ChangePercent())
	}
}
