// Command coreserver is the studio back-office core's HTTP entry point:
// config → logging → store → cache → appctx wiring → router → graceful
// shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SweetModels/sweet-models-enterprise/internal/appctx"
	"github.com/SweetModels/sweet-models-enterprise/internal/cache"
	"github.com/SweetModels/sweet-models-enterprise/internal/config"
	"github.com/SweetModels/sweet-models-enterprise/internal/logging"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
	"github.com/SweetModels/sweet-models-enterprise/router"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("studio core starting")

	db, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	cacheClient, err := cache.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis client init failed")
	}
	if err := cacheClient.Ping(context.Background()); err != nil {
		log.Warn().Err(err).Msg("redis ping failed — continuing, gate/rate-limit checks will fail open")
	} else {
		log.Info().Msg("redis connected")
	}

	app := appctx.New(cfg, log, db, cacheClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.Start(ctx)

	r := router.NewRouter(app, log)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("studio core listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	cancel()
	app.Stop()
	_ = cacheClient.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("studio core stopped gracefully")
	}
}
