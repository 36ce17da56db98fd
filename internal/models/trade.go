package models

import "gorm.io/gorm"

// Trade sides.
const (
	TradeSideBuy  = "BUY"
	TradeSideSell = "SELL"
)

// Trade is an executed order, journaled to the database and kept in the
// engine's in-memory history for the process lifetime.
type Trade struct {
	gorm.Model
	Ticker    string  `json:"ticker"`
	Side      string  `json:"side"` // "BUY" or "SELL"
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}
