package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"etfwatch/internal/config"
	"etfwatch/internal/httpx"
	"etfwatch/internal/logger"
	"etfwatch/internal/nse"
	"etfwatch/internal/quotecache"
	"etfwatch/internal/scheduler"
	"etfwatch/internal/server"
	"etfwatch/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	log := logger.New(logger.Config{Level: level, Pretty: cfg.Server.DevMode})
	log.Info().Msg("starting etfwatch")

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	users := store.NewUserRepo(db, log)
	etfs := store.NewETFRepo(db, log)

	upstreamTimeout := time.Duration(cfg.NSE.UpstreamTimeoutSec) * time.Second
	httpClient := httpx.NewBrowser(upstreamTimeout)

	sessions := nse.NewSessionManager(nse.SessionConfig{
		BaseURL:         cfg.NSE.BaseURL,
		BootstrapSymbol: cfg.NSE.BootstrapSymbol,
		Validity:        time.Duration(cfg.NSE.SessionValidityMin) * time.Minute,
	}, httpClient, log)

	client := nse.NewClient(nse.ClientConfig{
		BaseURL:   cfg.NSE.BaseURL,
		SearchURL: cfg.NSE.SearchURL,
	}, httpClient)

	quotes := quotecache.New(quotecache.Config{
		TTL:     time.Duration(cfg.NSE.QuoteCacheTTLSec) * time.Second,
		Stagger: time.Duration(cfg.NSE.BatchStaggerMs) * time.Millisecond,
	}, sessions, client, log)

	sched := scheduler.New(log)
	refreshJob := nse.RefreshJob{Manager: sessions, Timeout: upstreamTimeout}
	if err := sched.AddJob(cfg.NSE.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("register session refresh job")
	}
	sched.Start()
	defer sched.Stop()

	// Warm the session before traffic arrives; failure is not fatal since
	// EnsureValid retries lazily on first use.
	if err := sched.RunNow(refreshJob); err != nil {
		log.Warn().Err(err).Msg("initial session refresh failed")
	}

	srv := server.New(server.Config{
		Port: cfg.Server.Port,
		Log:  log,
		Auth: server.NewAuthHandler(users, log),
		ETFs: server.NewETFHandler(etfs, quotes, client, log),
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server")
		}
	}()
	log.Info().Str("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
