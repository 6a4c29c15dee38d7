package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ocrlabel/internal/common"
	"ocrlabel/internal/progress"
	"ocrlabel/internal/server"
	"ocrlabel/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (optional)")
		dataDir    = flag.String("data", "", "directory of images and JSON sidecars")
		addr       = flag.String("addr", "", "listen address, e.g. :3000")
	)
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Store.DataDir = *dataDir
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	// the daemon always serves a directory
	cfg.Store.ServerURL = ""
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := common.NewLogger(os.Stdout, cfg.Log.Level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker, err := progress.Open(ctx, cfg.Progress, logger)
	if err != nil {
		logger.Error("failed to open progress tracker", "backend", cfg.Progress.Backend, "error", err)
		os.Exit(1)
	}
	defer tracker.Close()

	st := store.NewDir(cfg.Store.DataDir, tracker, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(st, int64(cfg.Server.MaxBodyBytes), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("ocrlabeld listening", "addr", cfg.Server.Addr, "data", cfg.Store.DataDir, "progress", cfg.Progress.Backend)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
