package models

// Snapshot is the portfolio aggregate derived from the current positions.
type Snapshot struct {
	TotalValue         float64 `json:"total_value"`
	TotalPnL           float64 `json:"total_pnl"`
	TotalReturnPercent float64 `json:"total_return_percent"`
	Positions          int     `json:"positions"`
}

// Holding is a position joined with its instrument metadata for display.
type Holding struct {
	Position
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	Color         string  `json:"color"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Value         float64 `json:"value"`
	// Allocation is the share of total portfolio value, in percent.
	Allocation float64 `json:"allocation"`
}

// Dashboard is everything a presentation layer renders for one session.
type Dashboard struct {
	User          User            `json:"user"`
	Snapshot      Snapshot        `json:"snapshot"`
	Holdings      []Holding       `json:"holdings"`
	Available     []string        `json:"available"`
	TopMovers     []string        `json:"top_movers"`
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
	Query         string          `json:"query,omitempty"`
}
