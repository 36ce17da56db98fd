package alpaca

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"insider-trade-bot-go/internal/models"
)

// newTestClient points both SDK clients at the given test server.
func newTestClient(server *httptest.Server) *Client {
	return &Client{
		trading: sdk.NewClient(sdk.ClientOpts{
			APIKey:    "test_key",
			APISecret: "test_secret",
			BaseURL:   server.URL,
		}),
		md: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    "test_key",
			APISecret: "test_secret",
			BaseURL:   server.URL,
		}),
		logger: zap.NewNop(),
	}
}

func TestGetCashBalance(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/account", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"a1","account_number":"PA123","status":"ACTIVE","currency":"USD","cash":"10000"}`))
		}))
		defer server.Close()

		cash, err := newTestClient(server).GetCashBalance()

		assert.NoError(t, err)
		assert.Equal(t, 10000.0, cash)
	})

	t.Run("APIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":40110000,"message":"access key verification failed"}`))
		}))
		defer server.Close()

		cash, err := newTestClient(server).GetCashBalance()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get account")
		assert.Equal(t, 0.0, cash)
	})
}

func TestIsMarketOpen(t *testing.T) {
	for _, open := range []bool{true, false} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/clock", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			resp := map[string]interface{}{
				"timestamp":  "2025-01-02T15:04:05Z",
				"is_open":    open,
				"next_open":  "2025-01-03T14:30:00Z",
				"next_close": "2025-01-02T21:00:00Z",
			}
			_ = json.NewEncoder(w).Encode(resp)
		}))

		got, err := newTestClient(server).IsMarketOpen()
		assert.NoError(t, err)
		assert.Equal(t, open, got)
		server.Close()
	}
}

func TestGetCurrentPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/stocks/AAPL/trades/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"AAPL","trade":{"t":"2025-01-02T15:04:05Z","x":"V","p":123.45,"s":100,"c":[],"i":1,"z":"C"}}`))
	}))
	defer server.Close()

	price, err := newTestClient(server).GetCurrentPrice("AAPL")

	assert.NoError(t, err)
	assert.Equal(t, 123.45, price)
}

func TestSubmitMarketOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var body map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v2/orders", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"o1","symbol":"AAPL","qty":"40","side":"buy","type":"market","time_in_force":"gtc","status":"accepted"}`))
		}))
		defer server.Close()

		err := newTestClient(server).SubmitMarketOrder("AAPL", 40, models.TradeSideBuy)

		assert.NoError(t, err)
		assert.Equal(t, "AAPL", body["symbol"])
		assert.Equal(t, "40", body["qty"])
		assert.Equal(t, "buy", body["side"])
		assert.Equal(t, "market", body["type"])
		assert.Equal(t, "gtc", body["time_in_force"])
	})

	t.Run("UnknownSide", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected for an invalid side")
		}))
		defer server.Close()

		err := newTestClient(server).SubmitMarketOrder("AAPL", 40, "SHORT")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown order side")
	})

	t.Run("Rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":40310000,"message":"insufficient buying power"}`))
		}))
		defer server.Close()

		err := newTestClient(server).SubmitMarketOrder("AAPL", 40, models.TradeSideSell)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to submit")
	})
}
