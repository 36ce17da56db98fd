package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"insider-trade-bot-go/internal/models"
	"insider-trade-bot-go/internal/openinsider"
)

// APIServer is the control surface for the trading engine: it starts and
// stops trading runs and serves status and trade history.
type APIServer struct {
	server  *http.Server
	engine  *Engine
	scraper openinsider.ScraperInterface
	db      *gorm.DB
	logger  *zap.Logger
}

// NewAPIServer creates a new APIServer.
func NewAPIServer(engine *Engine, scraper openinsider.ScraperInterface, db *gorm.DB, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine:  engine,
		scraper: scraper,
		db:      db,
		logger:  logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/start", s.startHandler)
	mux.HandleFunc("/stop", s.stopHandler)
	mux.HandleFunc("/api/status", s.statusHandler)
	mux.HandleFunc("/api/trades", s.tradesHandler)
	mux.HandleFunc("/health", s.healthHandler)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", engine.cfg.Server.Port),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

type controlResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// startHandler scrapes the submitted OpenInsider URL and launches a trading
// run with the submitted thresholds.
func (s *APIServer) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	pageURL := r.FormValue("url")
	if pageURL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	gainThreshold, err := s.formFloat(r, "gain_threshold", s.engine.cfg.Trading.GainThreshold)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dropThreshold, err := s.formFloat(r, "drop_threshold", s.engine.cfg.Trading.DropThreshold)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := s.scraper.Scrape(r.Context(), pageURL)
	if err != nil {
		// An unreachable or malformed page is not fatal; the run simply
		// starts with nothing to trade.
		s.logger.Error("Failed to scrape insider data", zap.String("url", pageURL), zap.Error(err))
		data = models.InsiderData{}
	}

	if err := s.engine.Start(data, gainThreshold, dropThreshold); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, controlResponse{Status: "success", Message: "Trading bot started in background"})
}

func (s *APIServer) stopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.engine.Stop()
	s.writeJSON(w, controlResponse{Status: "success", Message: "Trading bot stopped"})
}

// positionStatus is an open position enriched with a live price for display.
type positionStatus struct {
	Quantity     int64   `json:"quantity"`
	BuyPrice     float64 `json:"buy_price"`
	HighestPrice float64 `json:"highest_price"`
	CurrentPrice float64 `json:"current_price"`
	GainPercent  float64 `json:"gain_percent"`
}

type statusResponse struct {
	Running      bool                      `json:"running"`
	Budget       float64                   `json:"budget"`
	Positions    map[string]positionStatus `json:"positions"`
	TradeHistory []models.Trade            `json:"trade_history"`
}

// statusHandler returns the current budget, open positions with live gain,
// and the in-memory trade history. Live prices are fetched outside the
// store's lock.
func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	positions, budget, history := s.engine.Store().Snapshot()

	enriched := make(map[string]positionStatus, len(positions))
	for ticker, pos := range positions {
		current, err := s.engine.broker.GetCurrentPrice(ticker)
		if err != nil {
			s.logger.Warn("Failed to fetch live price for status",
				zap.String("ticker", ticker), zap.Error(err))
		}
		var gain float64
		if current > 0 {
			gain = math.Round((current-pos.BuyPrice)/pos.BuyPrice*100*100) / 100
		}
		enriched[ticker] = positionStatus{
			Quantity:     pos.Quantity,
			BuyPrice:     pos.BuyPrice,
			HighestPrice: pos.HighestPrice,
			CurrentPrice: current,
			GainPercent:  gain,
		}
	}

	s.writeJSON(w, statusResponse{
		Running:      s.engine.Running(),
		Budget:       budget,
		Positions:    enriched,
		TradeHistory: history,
	})
}

// tradesHandler returns the journaled trades, newest first.
func (s *APIServer) tradesHandler(w http.ResponseWriter, r *http.Request) {
	var trades []models.Trade
	if err := s.db.Order("timestamp desc").Find(&trades).Error; err != nil {
		s.logger.Error("Failed to get trades from database", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, trades)
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) formFloat(r *http.Request, field string, fallback float64) (float64, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", field, raw)
	}
	return v, nil
}

func (s *APIServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
