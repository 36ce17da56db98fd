package trader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"insider-trade-bot-go/internal/models"
)

var testNow = time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)

func TestStore_CommitBuy(t *testing.T) {
	s := NewStore()
	s.SetBudget(10000)

	assert.True(t, s.Claim("AAPL"))
	trade := s.CommitBuy("AAPL", 40, 50, testNow)

	assert.Equal(t, 8000.0, s.Budget())
	assert.Equal(t, models.TradeSideBuy, trade.Side)
	assert.Equal(t, int64(40), trade.Quantity)
	assert.Equal(t, 50.0, trade.Price)

	pos, ok := s.Position("AAPL")
	assert.True(t, ok)
	assert.Equal(t, int64(40), pos.Quantity)
	assert.Equal(t, 50.0, pos.BuyPrice)
	assert.Equal(t, 50.0, pos.HighestPrice)
}

func TestStore_ClaimBlocksDuplicates(t *testing.T) {
	s := NewStore()

	assert.True(t, s.Claim("AAPL"))
	// A second claim while the first order is in flight must fail.
	assert.False(t, s.Claim("AAPL"))

	// A failed order releases the claim, making the ticker claimable again.
	s.Release("AAPL")
	assert.True(t, s.Claim("AAPL"))

	// A held ticker can never be claimed.
	s.CommitBuy("AAPL", 10, 100, testNow)
	assert.False(t, s.Claim("AAPL"))
}

func TestStore_UpdateHighestIsMonotonic(t *testing.T) {
	s := NewStore()
	s.Claim("AAPL")
	s.CommitBuy("AAPL", 10, 100, testNow)

	observations := []float64{105, 103, 130, 120, 129.99}
	peaks := make([]float64, 0, len(observations))
	for _, price := range observations {
		s.UpdateHighest("AAPL", price)
		pos, _ := s.Position("AAPL")
		peaks = append(peaks, pos.HighestPrice)
	}

	assert.Equal(t, []float64{105, 105, 130, 130, 130}, peaks)

	// Equal price is not a new peak.
	assert.False(t, s.UpdateHighest("AAPL", 130))
	assert.True(t, s.UpdateHighest("AAPL", 130.01))
}

func TestStore_CommitSell(t *testing.T) {
	s := NewStore()
	s.SetBudget(8000)
	s.Claim("AAPL")
	s.CommitBuy("AAPL", 40, 50, testNow)
	assert.Equal(t, 6000.0, s.Budget())

	trade, ok := s.CommitSell("AAPL", 60, testNow)

	assert.True(t, ok)
	assert.Equal(t, models.TradeSideSell, trade.Side)
	assert.Equal(t, int64(40), trade.Quantity)
	assert.Equal(t, 60.0, trade.Price)
	assert.Equal(t, 8400.0, s.Budget())

	_, held := s.Position("AAPL")
	assert.False(t, held)

	// Selling a ticker that is not held is a no-op.
	_, ok = s.CommitSell("AAPL", 60, testNow)
	assert.False(t, ok)
	assert.Equal(t, 8400.0, s.Budget())
}

func TestStore_HistoryPairsBuysAndSells(t *testing.T) {
	s := NewStore()
	s.SetBudget(10000)
	s.Claim("AAPL")
	s.CommitBuy("AAPL", 40, 50, testNow)
	s.CommitSell("AAPL", 55, testNow.Add(time.Hour))

	_, _, history := s.Snapshot()

	assert.Len(t, history, 2)
	assert.Equal(t, models.TradeSideBuy, history[0].Side)
	assert.Equal(t, models.TradeSideSell, history[1].Side)
	assert.Equal(t, history[0].Ticker, history[1].Ticker)
	assert.Equal(t, history[0].Quantity, history[1].Quantity)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.SetBudget(10000)
	s.Claim("AAPL")
	s.CommitBuy("AAPL", 40, 50, testNow)

	positions, budget, history := s.Snapshot()
	assert.Equal(t, 8000.0, budget)

	// Mutating the snapshot must not leak into the store.
	p := positions["AAPL"]
	p.HighestPrice = 999
	positions["AAPL"] = p
	history[0].Price = 999

	pos, _ := s.Position("AAPL")
	assert.Equal(t, 50.0, pos.HighestPrice)
	_, _, freshHistory := s.Snapshot()
	assert.Equal(t, 50.0, freshHistory[0].Price)
}
