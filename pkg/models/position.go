package models

// Position is the live simulation state of one followed symbol.
type Position struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        int64   `json:"volume"`
	Shares        int64   `json:"shares"`
}

// NewPosition opens a position at the instrument's reference price.
func NewPosition(instrument Instrument, volume, shares int64) Position {
	price := instrument.ReferencePrice
	return Position{
		Symbol:        instrument.Symbol,
		Price:         price,
		PreviousClose: price,
		High:          price,
		Low:           price,
		Volume:        volume,
		Shares:        shares,
	}
}

// Change is the absolute move since the previous close.
func (p Position) Change() float64 {
	return p.Price - p.PreviousClose
}

// ChangePercent is the move since the previous close in percent.
func (p Position) ChangePercent() float64 {
	if p.PreviousClose == 0 {
		return 0
	}
	return p.Change() / p.PreviousClose * 100
}

func (p Position) MarketValue() float64 {
	return p.Price * p.quantity()
}

func (p Position) CostBasis() float64 {
	return p.PreviousClose * p.quantity()
}

func (p Position) PnL() float64 {
	return p.Change() * p.quantity()
}

func (p Position) quantity() float64 {
	return float64(p.Shares)
}
