package main

import (
	"context"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"futures-engine/internal/api"
	"futures-engine/internal/engine"
	"futures-engine/internal/events"
	"futures-engine/internal/market"
	"futures-engine/internal/screener"
	"futures-engine/internal/signal"
	"futures-engine/internal/store"
	"futures-engine/pkg/config"
	"futures-engine/pkg/exchanges/binance/futures"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}
	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		log.Fatalf("❌ settings: %v", err)
	}
	log.Printf("✓ config loaded (port=%s testnet=%v strategy=%s)", cfg.Port, cfg.BinanceTestnet, settings.Strategy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()

	ledger, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("❌ ledger: %v", err)
	}
	defer ledger.Close()
	log.Printf("✓ ledger open at %s", cfg.DBPath)

	client := futures.NewClient(futures.Config{
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		Testnet:   cfg.BinanceTestnet,
	})
	client.StartClockSync(ctx)

	providers := map[string]signal.Provider{
		"momentum": signal.NewMomentum(signal.MomentumParams{}),
		"scalper":  signal.NewScalper(signal.ScalperParams{}),
	}

	eng, err := engine.New(engine.Options{
		Gateway:   client,
		Market:    market.NewFetcher(client),
		Discovery: screener.New(client),
		Ledger:    ledger,
		Bus:       bus,
		Providers: providers,
		Settings:  settings,
	})
	if err != nil {
		log.Fatalf("❌ engine: %v", err)
	}

	// Candle-close pushes let the engine react between polls; the poll loop
	// still covers symbols the stream misses.
	feed := &market.Feed{
		Stream:   futures.NewStreamClient(cfg.BinanceTestnet),
		Bus:      bus,
		Interval: settings.Interval,
	}
	feed.Track(ctx, settings.Symbols)
	defer feed.Stop()

	server, err := api.NewServer(eng, ledger, bus, cfg)
	if err != nil {
		log.Fatalf("❌ api: %v", err)
	}
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("❌ api server: %v", err)
		}
	}()
	log.Printf("✓ api listening on :%s", cfg.Port)

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
	eng.Stop()
}
