// exchanged is the exchange daemon: it listens for binary sessions, matches
// orders, persists the audit trail and exposes the market data dashboard.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boexchange/auth"
	"boexchange/boe"
	"boexchange/config"
	"boexchange/dashboard"
	"boexchange/feed"
	"boexchange/match"
	"boexchange/server"
	"boexchange/session"
	"boexchange/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)
	match.SetLogger(logger)
	session.SetLogger(logger)
	server.SetLogger(logger)
	feed.SetLogger(logger)
	dashboard.SetLogger(logger)

	// ---------------- Storage ----------------

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		logger.Error("open storage", "dir", cfg.Storage.DataDir, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// ---------------- Auth ----------------

	authSvc := auth.NewService(auth.NewBcryptHasher())
	for _, u := range cfg.Users {
		if err := authSvc.AddUser(u.Username, u.Password); err != nil {
			logger.Error("seed user", "username", u.Username, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("users seeded", "count", len(cfg.Users))

	// ---------------- Engine ----------------

	engine := match.NewEngine(store.Orders(), store.Trades())

	// ---------------- Session server ----------------

	var limiter server.RateLimiter
	if cfg.Server.RateLimit.Enabled {
		limiter = server.NewTokenBucketLimiter(cfg.Server.RateLimit.MaxBurst, cfg.Server.RateLimit.PerSecond)
	}

	srv := server.NewServer(server.Config{
		Addr:              cfg.Server.Addr,
		HeartbeatInterval: cfg.Server.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Server.HeartbeatTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ShutdownGrace:     cfg.Server.ShutdownGrace,
	}, boe.NewCodec(), authSvc, engine,
		limiter,
		server.NewThresholdClassifier(cfg.Server.ErrorThreshold))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---------------- Trade fan-out ----------------

	dash := dashboard.NewServer(engine)
	var publisher *feed.TradePublisher
	if cfg.Kafka.Enabled {
		publisher = feed.NewTradePublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case trade, ok := <-srv.Trades():
				if !ok {
					return
				}
				dash.Broadcast(trade)
				if publisher != nil {
					if err := publisher.Publish(ctx, trade); err != nil {
						logger.Error("publish trade", "trade_id", trade.ID, "error", err)
					}
				}
			}
		}
	}()

	// ---------------- Dashboard ----------------

	var dashSrv *http.Server
	if cfg.Dashboard.Enabled {
		dashSrv = &http.Server{Addr: cfg.Dashboard.Addr, Handler: dash.Routes()}
		go func() {
			logger.Info("dashboard listening", "addr", cfg.Dashboard.Addr)
			if err := dashSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("dashboard server exited", "error", err)
			}
		}()
	}

	// ---------------- Serve ----------------

	errCh := make(chan error, 1)
	go func() {
		logger.Info("exchange listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if dashSrv != nil {
		_ = dashSrv.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("goodbye")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
