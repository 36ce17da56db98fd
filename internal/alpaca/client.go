package alpaca

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"insider-trade-bot-go/internal/config"
	"insider-trade-bot-go/internal/models"
)

// requestTimeout bounds every brokerage call so a stalled request cannot
// wedge the trading worker.
const requestTimeout = 10 * time.Second

// ClientInterface defines the brokerage capability the trading engine needs:
// account cash, a quote, the market clock, and market order submission.
type ClientInterface interface {
	GetCashBalance() (float64, error)
	GetCurrentPrice(symbol string) (float64, error)
	IsMarketOpen() (bool, error)
	SubmitMarketOrder(symbol string, qty int64, side string) error
}

// Client is an Alpaca-backed implementation of ClientInterface.
type Client struct {
	trading *alpaca.Client
	md      *marketdata.Client
	logger  *zap.Logger
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new Alpaca brokerage client.
func NewClient(cfg *config.Alpaca, logger *zap.Logger) *Client {
	httpClient := &http.Client{Timeout: requestTimeout}

	trading := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     cfg.ApiKey,
		APISecret:  cfg.SecretKey,
		BaseURL:    cfg.BaseURL,
		HTTPClient: httpClient,
	})

	md := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:     cfg.ApiKey,
		APISecret:  cfg.SecretKey,
		BaseURL:    cfg.DataBaseURL,
		HTTPClient: httpClient,
	})

	return &Client{
		trading: trading,
		md:      md,
		logger:  logger,
	}
}

// GetCashBalance fetches the account's available cash.
func (c *Client) GetCashBalance() (float64, error) {
	account, err := c.trading.GetAccount()
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	cash := account.Cash.InexactFloat64()
	c.logger.Info("Fetched account cash balance", zap.Float64("cash", cash))
	return cash, nil
}

// GetCurrentPrice fetches the latest trade price for a symbol.
func (c *Client) GetCurrentPrice(symbol string) (float64, error) {
	trade, err := c.md.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return 0, fmt.Errorf("failed to get latest trade for %s: %w", symbol, err)
	}
	return trade.Price, nil
}

// IsMarketOpen reports whether the market clock is currently open.
func (c *Client) IsMarketOpen() (bool, error) {
	clock, err := c.trading.GetClock()
	if err != nil {
		return false, fmt.Errorf("failed to get market clock: %w", err)
	}
	return clock.IsOpen, nil
}

// SubmitMarketOrder places a good-till-cancelled market order for a whole
// number of shares.
func (c *Client) SubmitMarketOrder(symbol string, qty int64, side string) error {
	var orderSide alpaca.Side
	switch side {
	case models.TradeSideBuy:
		orderSide = alpaca.Buy
	case models.TradeSideSell:
		orderSide = alpaca.Sell
	default:
		return fmt.Errorf("unknown order side %q", side)
	}

	quantity := decimal.NewFromInt(qty)
	order, err := c.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      symbol,
		Qty:         &quantity,
		Side:        orderSide,
		Type:        alpaca.Market,
		TimeInForce: alpaca.GTC,
	})
	if err != nil {
		return fmt.Errorf("failed to submit %s order for %s: %w", side, symbol, err)
	}

	c.logger.Info("Submitted market order",
		zap.String("order_id", order.ID),
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.Int64("qty", qty),
	)
	return nil
}
