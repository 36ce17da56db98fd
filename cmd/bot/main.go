package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"insider-trade-bot-go/internal/alpaca"
	"insider-trade-bot-go/internal/config"
	"insider-trade-bot-go/internal/database"
	"insider-trade-bot-go/internal/logger"
	"insider-trade-bot-go/internal/openinsider"
	"insider-trade-bot-go/internal/trader"
)

func main() {
	// Credentials usually live in a local .env; absence is fine because
	// viper also reads the real environment.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Trade journal ready")

	broker := alpaca.NewClient(&cfg.Alpaca, log)
	if _, err := broker.GetCashBalance(); err != nil {
		log.Fatal("Failed to connect to Alpaca API", zap.Error(err))
	}
	log.Info("Successfully connected to Alpaca API")

	scraper := openinsider.NewScraper(&cfg.Scraper, log)
	engine := trader.NewEngine(log, &cfg, broker, db)

	api := trader.NewAPIServer(engine, scraper, db, log)
	api.Start()

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	engine.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := api.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}
