package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gridbot/api"
	"gridbot/config"
	"gridbot/exchange"
	"gridbot/grid"
	"gridbot/logger"
	"gridbot/manager"
	"gridbot/store"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("config: %v", err)
	}
	if err := logger.Init(&logger.Config{Level: cfg.LogLevel}); err != nil {
		logger.Log.Fatalf("logger: %v", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Log.Fatalf("store: %v", err)
	}
	defer st.Close()

	var port exchange.Port
	if cfg.DryRun {
		logger.Log.Info("dry-run mode: live market data, simulated fills")
		port = exchange.NewDryRun(
			exchange.NewBinanceSpot("", ""),
			cfg.BaseAsset, cfg.QuoteAsset, cfg.DryRunBalance)
	} else {
		logger.Log.Info("live mode: trading with real capital")
		port = exchange.NewBinanceSpot(cfg.APIKey, cfg.APISecret)
	}

	sink := func(ev grid.Event) {
		if err := st.RecordEvent(ev); err != nil {
			logger.Log.Errorf("[Store] record event: %v", err)
		}
	}
	mgr := manager.New(cfg, port, sink)

	server := api.NewServer(mgr, st, cfg.APIServerPort)
	go func() {
		if err := server.Start(); err != nil {
			logger.Log.Fatalf("api server: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// first grid opens immediately; the schedule covers the rest
	if _, err := mgr.Spawn(ctx); err != nil {
		logger.Log.Warnf("[Manager] initial spawn: %v", err)
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	statusTicker := time.NewTicker(time.Minute)
	defer statusTicker.Stop()

	logger.Log.Infof("polling %s every %s", cfg.Symbol, cfg.PollInterval)
	for {
		select {
		case sig := <-sigCh:
			logger.Log.Infof("received %s, flattening all grids", sig)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			mgr.StopAll(shutdownCtx)
			persist(mgr, st)
			shutdownCancel()
			logger.Log.Info("shutdown complete")
			return

		case <-statusTicker.C:
			logger.Log.Infof("[Status] %s", mgr.StatusLine())

		case <-ticker.C:
			price, err := port.GetPrice(ctx, cfg.Symbol)
			if err != nil {
				// transient feed failure, nothing mutates this tick
				logger.Log.Warnf("price unavailable, skipping tick: %v", err)
				continue
			}
			mgr.DispatchPrice(ctx, price)
			mgr.MaybeSpawn(ctx, time.Now())
			persist(mgr, st)
		}
	}
}

func persist(mgr *manager.Manager, st *store.Store) {
	for _, snap := range mgr.Snapshots() {
		if err := st.SaveSnapshot(snap); err != nil {
			logger.Log.Errorf("[Store] save snapshot %s: %v", snap.Label, err)
		}
	}
}
