package models

// InsiderTransaction is a single row scraped from the OpenInsider results
// table. All fields are immutable once parsed.
type InsiderTransaction struct {
	CompanyName string  `json:"company_name"`
	InsiderName string  `json:"insider_name"`
	Title       string  `json:"title"`
	TradeType   string  `json:"trade_type"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"qty"`
	OwnChange   float64 `json:"own_change"`   // ΔOwn, percent
	TotalValue  float64 `json:"total_value"`  // dollar value of the transaction
}

// InsiderData groups transactions by ticker, preserving page order within
// each ticker.
type InsiderData map[string][]InsiderTransaction
