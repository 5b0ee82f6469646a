package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localdrop/localdrop/internal/config"
	"github.com/localdrop/localdrop/internal/logging"
	"github.com/localdrop/localdrop/internal/relay"
	"github.com/localdrop/localdrop/internal/server"
	"github.com/localdrop/localdrop/internal/store"
	"github.com/localdrop/localdrop/internal/version"
)

func main() {
	logger := logging.Init(slog.LevelInfo)
	cfg := config.LoadServer()
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []relay.Option{relay.WithLogger(logger)}

	if cfg.Redis.Enabled() {
		rdb, err := store.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.Error("redis unavailable", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()

		mirror := store.NewRedisMirror(rdb, logger)
		go mirror.Run(ctx)
		opts = append(opts, relay.WithObserver(mirror))
		logger.Info("mirroring room membership to redis", "addr", cfg.Redis.Addr)
	}

	hub := relay.NewHub(opts...)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: server.NewRouter(hub, server.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting signaling server", "addr", srv.Addr, "version", version.Version)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
