package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sales-coach-go/internal/app"
	"sales-coach-go/internal/config"
	"sales-coach-go/internal/server"
)

const serviceName = "sales-coach-go"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $COACH_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := app.NewLogger(cfg)
	log.WithField("service", serviceName).
		WithField("provider", cfg.Engine.Provider).
		WithField("model", cfg.Engine.Model).
		WithField("engine_timeout_sec", cfg.Engine.TimeoutSec).
		WithField("audio_container", cfg.Audio.Container).
		Info("starting service")
	if cfg.Engine.Provider == config.ProviderGemini && !cfg.HasAPIKey() {
		log.Warn("API_KEY is not set; every analysis will fail until it is")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log, app.Options{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Warn("recorder close failed")
		}
	}()

	api := server.New(server.Deps{
		Machine:  a.Machine,
		Recorder: a.Recorder,
		Log:      log,
		Metrics:  a.Metrics,
		Gatherer: prometheus.DefaultGatherer,
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server terminated")
		}
		return
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("service stopped")
}
