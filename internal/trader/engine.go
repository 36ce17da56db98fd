package trader

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"insider-trade-bot-go/internal/alpaca"
	"insider-trade-bot-go/internal/config"
	"insider-trade-bot-go/internal/models"
)

// ErrAlreadyRunning is returned by Start while a trading cycle is active.
var ErrAlreadyRunning = errors.New("a trading cycle is already running")

// Engine runs the trading cycle: filter significant tickers, buy with the
// available budget, monitor held positions until they are sold, then rescan
// after the cycle delay. One background worker at a time; Stop is observed
// at loop-iteration boundaries only.
type Engine struct {
	logger *zap.Logger
	cfg    *config.Config
	broker alpaca.ClientInterface
	db     *gorm.DB
	store  *Store
	clock  Clock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewEngine creates a new trading engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, broker alpaca.ClientInterface, db *gorm.DB) *Engine {
	return &Engine{
		logger: logger,
		cfg:    cfg,
		broker: broker,
		db:     db,
		store:  NewStore(),
		clock:  realClock{},
	}
}

// Store exposes the position store for status readers.
func (e *Engine) Store() *Store {
	return e.store
}

// Running reports whether a trading cycle is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start launches one trading-cycle run in a background goroutine, seeded
// with the scraped insider data and the run's thresholds. It refuses to
// start while a cycle is already active.
func (e *Engine) Start(data models.InsiderData, gainThreshold, dropThreshold float64) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("Trading worker panicked", zap.Any("panic", r))
			}
			cancel()
			e.mu.Lock()
			e.running = false
			e.cancel = nil
			e.mu.Unlock()
			e.logger.Info("Trading worker finished")
		}()
		e.run(ctx, data, gainThreshold, dropThreshold)
	}()

	return nil
}

// Stop requests cooperative shutdown of the running cycle, if any. The
// worker observes it at the top of its next loop iteration.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.logger.Info("Stopping the trading bot...")
		e.cancel()
	}
}

func (e *Engine) run(ctx context.Context, data models.InsiderData, gainThreshold, dropThreshold float64) {
	cash, err := e.broker.GetCashBalance()
	if err != nil {
		e.logger.Error("Failed to fetch account cash balance", zap.Error(err))
		cash = 0
	}
	e.store.SetBudget(cash)
	e.logger.Info("Starting trading run",
		zap.Float64("budget", cash),
		zap.Float64("gain_threshold", gainThreshold),
		zap.Float64("drop_threshold", dropThreshold),
	)

	cycleDelay := time.Duration(e.cfg.Trading.CycleDelaySeconds) * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		significant := FilterSignificant(data,
			e.cfg.Trading.MinValue,
			e.cfg.Trading.MinInsiders,
			e.cfg.Trading.MinOwnChange,
		)

		if len(significant) == 0 {
			e.logger.Info("No significant stocks found in this cycle, skipping trading")
			if !e.wait(ctx, cycleDelay) {
				return
			}
			continue
		}

		e.logger.Info("Significant stocks selected", zap.Strings("tickers", significant))
		e.buyPass(significant)

		if e.store.Len() > 0 {
			e.monitor(ctx, gainThreshold, dropThreshold)
		}

		e.logger.Info("Completed a trading cycle, repeating...")
		if !e.wait(ctx, cycleDelay) {
			return
		}
	}
}

// buyPass attempts to buy each significant ticker in order. It stops early
// when the budget is exhausted or a price cannot be fetched; a ticker that
// is already held is skipped.
func (e *Engine) buyPass(tickers []string) {
	for _, ticker := range tickers {
		if e.store.Budget() <= 0 {
			e.logger.Info("Budget exhausted, stopping buy pass")
			return
		}

		price, err := e.broker.GetCurrentPrice(ticker)
		if err != nil || price <= 0 {
			e.logger.Warn("Price unavailable, stopping buy pass",
				zap.String("ticker", ticker), zap.Error(err))
			return
		}

		e.buy(ticker, price)
	}
}

func (e *Engine) buy(ticker string, price float64) {
	if e.store.Has(ticker) {
		e.logger.Info("Already holding position, skipping buy", zap.String("ticker", ticker))
		return
	}

	budget := e.store.Budget()
	maxSpend := budget * e.cfg.Trading.MaxPositionFraction
	quantity := int64(maxSpend / price)

	if quantity <= 0 {
		e.logger.Info("Spend cap too small for one share, skipping",
			zap.String("ticker", ticker),
			zap.Float64("price", price),
			zap.Float64("max_spend", maxSpend),
		)
		return
	}

	// Reserve the ticker before the order goes out, so a concurrent pass
	// cannot buy it twice.
	if !e.store.Claim(ticker) {
		e.logger.Info("Ticker already claimed, skipping buy", zap.String("ticker", ticker))
		return
	}

	e.logger.Info("Attempting to buy",
		zap.String("ticker", ticker),
		zap.Int64("quantity", quantity),
		zap.Float64("price", price),
		zap.Float64("budget", budget),
		zap.Float64("max_spend", maxSpend),
	)

	if err := e.broker.SubmitMarketOrder(ticker, quantity, models.TradeSideBuy); err != nil {
		e.store.Release(ticker)
		e.logger.Error("Buy order failed", zap.String("ticker", ticker), zap.Error(err))
		return
	}

	trade := e.store.CommitBuy(ticker, quantity, price, e.clock.Now())
	e.logger.Info("Bought shares",
		zap.String("ticker", ticker),
		zap.Int64("quantity", quantity),
		zap.Float64("price", price),
	)
	e.journal(trade)
}

// monitor polls held positions until all are sold or the run is stopped.
// When the market is closed the poll is skipped entirely: no price fetches,
// no mutations.
func (e *Engine) monitor(ctx context.Context, gainThreshold, dropThreshold float64) {
	interval := time.Duration(e.cfg.Trading.MonitorIntervalSeconds) * time.Second

	for e.store.Len() > 0 {
		if ctx.Err() != nil {
			return
		}
		e.logger.Info("Starting price monitoring poll")

		open, err := e.broker.IsMarketOpen()
		if err != nil {
			e.logger.Error("Failed to fetch market clock", zap.Error(err))
			open = false
		}

		if open {
			for _, ticker := range e.store.Tickers() {
				e.checkPosition(ticker, gainThreshold, dropThreshold)
			}
		} else {
			e.logger.Info("Market is closed, skipping price monitoring")
		}

		if !e.wait(ctx, interval) {
			return
		}
	}
}

// checkPosition fetches the price once and reuses it for the peak update,
// the sell trigger, and (if selling) the budget credit and trade record.
func (e *Engine) checkPosition(ticker string, gainThreshold, dropThreshold float64) {
	pos, ok := e.store.Position(ticker)
	if !ok {
		return
	}

	price, err := e.broker.GetCurrentPrice(ticker)
	if err != nil || price <= 0 {
		e.logger.Warn("Price fetch failed, skipping position this poll",
			zap.String("ticker", ticker), zap.Error(err))
		return
	}

	if e.store.UpdateHighest(ticker, price) {
		pos.HighestPrice = price
		e.logger.Info("Position reached a new high",
			zap.String("ticker", ticker), zap.Float64("price", price))
	}

	gain := (price - pos.BuyPrice) / pos.BuyPrice * 100
	if gain < gainThreshold {
		return
	}
	e.logger.Info("Position gain above threshold",
		zap.String("ticker", ticker), zap.Float64("gain_pct", gain))

	drop := (pos.HighestPrice - price) / pos.HighestPrice * 100
	if drop < dropThreshold {
		return
	}
	e.logger.Info("Position dropped from its peak",
		zap.String("ticker", ticker),
		zap.Float64("drop_pct", drop),
		zap.Float64("highest_price", pos.HighestPrice),
	)

	e.sell(ticker, price)
}

func (e *Engine) sell(ticker string, price float64) {
	pos, ok := e.store.Position(ticker)
	if !ok {
		return
	}

	if err := e.broker.SubmitMarketOrder(ticker, pos.Quantity, models.TradeSideSell); err != nil {
		// Position stays intact; the conditions persist, so the next poll
		// retries.
		e.logger.Error("Sell order failed", zap.String("ticker", ticker), zap.Error(err))
		return
	}

	trade, ok := e.store.CommitSell(ticker, price, e.clock.Now())
	if !ok {
		return
	}
	e.logger.Info("Sold shares",
		zap.String("ticker", ticker),
		zap.Int64("quantity", trade.Quantity),
		zap.Float64("price", price),
	)
	e.journal(trade)
}

// journal persists an executed trade to the database. The in-memory history
// is authoritative; a journal failure is logged and otherwise ignored.
func (e *Engine) journal(trade models.Trade) {
	if e.db == nil {
		return
	}
	if err := e.db.Create(&trade).Error; err != nil {
		e.logger.Error("Failed to save trade record to database",
			zap.String("ticker", trade.Ticker), zap.Error(err))
	}
}

// wait blocks for the duration or until the run is cancelled. Returns false
// on cancellation.
func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-e.clock.After(d):
		return true
	}
}
