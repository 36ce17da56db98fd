package trader

import (
	"sort"
	"sync"
	"time"

	"insider-trade-bot-go/internal/models"
)

// Store owns the mutable trading state: open positions, the available
// budget, and the in-memory trade history. One mutex guards all of it, plus
// the claim set used to reserve a ticker while its order is in flight, so a
// concurrent status reader always sees a consistent view.
type Store struct {
	mu        sync.Mutex
	budget    float64
	positions map[string]*models.Position
	claimed   map[string]struct{}
	history   []models.Trade
}

// NewStore creates an empty position store.
func NewStore() *Store {
	return &Store{
		positions: make(map[string]*models.Position),
		claimed:   make(map[string]struct{}),
	}
}

// Budget returns the available cash.
func (s *Store) Budget() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// SetBudget seeds the available cash at the start of a trading run.
func (s *Store) SetBudget(budget float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budget = budget
}

// Has reports whether an open position exists for the ticker.
func (s *Store) Has(ticker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.positions[ticker]
	return ok
}

// Len returns the number of open positions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}

// Tickers returns the tickers of all open positions, sorted.
func (s *Store) Tickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tickers := make([]string, 0, len(s.positions))
	for ticker := range s.positions {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// Position returns a copy of the position for the ticker, if one is open.
func (s *Store) Position(ticker string) (models.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[ticker]
	if !ok {
		return models.Position{}, false
	}
	return *pos, true
}

// Claim reserves a ticker for an in-flight buy. It fails if the ticker is
// already claimed or held, which closes the check-then-act race between the
// position lookup and the order submission.
func (s *Store) Claim(ticker string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[ticker]; ok {
		return false
	}
	if _, ok := s.claimed[ticker]; ok {
		return false
	}
	s.claimed[ticker] = struct{}{}
	return true
}

// Release drops a claim after a failed order.
func (s *Store) Release(ticker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, ticker)
}

// CommitBuy records a filled buy: it creates the position, debits the
// budget, appends the history entry, and consumes the claim. Returns the
// recorded trade.
func (s *Store) CommitBuy(ticker string, qty int64, price float64, now time.Time) models.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[ticker] = &models.Position{
		Quantity:     qty,
		BuyPrice:     price,
		HighestPrice: price,
	}
	s.budget -= float64(qty) * price
	delete(s.claimed, ticker)

	trade := models.Trade{
		Ticker:    ticker,
		Side:      models.TradeSideBuy,
		Quantity:  qty,
		Price:     price,
		Timestamp: now.Unix(),
	}
	s.history = append(s.history, trade)
	return trade
}

// UpdateHighest raises the position's peak price if the observed price
// exceeds it. The peak never decreases. Returns true when a new peak was
// recorded.
func (s *Store) UpdateHighest(ticker string, price float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[ticker]
	if !ok || price <= pos.HighestPrice {
		return false
	}
	pos.HighestPrice = price
	return true
}

// CommitSell records a filled sell: it credits the budget with the full
// proceeds at the given price, appends the history entry, and removes the
// position. The same price is used for the credit and the record.
func (s *Store) CommitSell(ticker string, price float64, now time.Time) (models.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[ticker]
	if !ok {
		return models.Trade{}, false
	}

	s.budget += float64(pos.Quantity) * price
	delete(s.positions, ticker)

	trade := models.Trade{
		Ticker:    ticker,
		Side:      models.TradeSideSell,
		Quantity:  pos.Quantity,
		Price:     price,
		Timestamp: now.Unix(),
	}
	s.history = append(s.history, trade)
	return trade, true
}

// Snapshot returns a consistent copy of the positions, budget, and trade
// history for display purposes.
func (s *Store) Snapshot() (map[string]models.Position, float64, []models.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions := make(map[string]models.Position, len(s.positions))
	for ticker, pos := range s.positions {
		positions[ticker] = *pos
	}
	history := make([]models.Trade, len(s.history))
	copy(history, s.history)

	return positions, s.budget, history
}
