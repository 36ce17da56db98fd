package models

// Position is an open holding tracked by the trading engine. A ticker maps
// to at most one open position at a time. HighestPrice starts at BuyPrice
// and never decreases while the position is open.
type Position struct {
	Quantity     int64   `json:"quantity"`
	BuyPrice     float64 `json:"buy_price"`
	HighestPrice float64 `json:"highest_price"`
}
