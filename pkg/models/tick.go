package models

import "time"

// Tick represents the state of one followed symbol right after a simulation step
type Tick struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTick captures a position as a tick stamped with ts
func NewTick(p Position, ts time.Time) *Tick {
	return &Tick{
		Symbol:        p.Symbol,
		Price:         p.Price,
		Change:        p.Change(),
		ChangePercent: p.ChangePercent(),
		High:          p.High,
		Low:           p.Low,
		Volume:        p.Volume,
		Timestamp:     ts,
	}
}
