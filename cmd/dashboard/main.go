package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/floodwatch/flood-monitor-service/internal/client"
	"github.com/floodwatch/flood-monitor-service/internal/config"
	httphandler "github.com/floodwatch/flood-monitor-service/internal/http"
	"github.com/floodwatch/flood-monitor-service/internal/observability"
	"github.com/floodwatch/flood-monitor-service/internal/session"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	floodClient, err := client.NewHTTPFloodClientWithRetry(
		cfg.FloodAPIURL,
		cfg.FloodAPITimeout,
		cfg.PageLimit,
		cfg.MaxPages,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("flood client", zap.Error(err))
	}

	sess := session.NewWithWindow(floodClient, logger, cfg.CatalogTTL, cfg.ReadingsTTL, cfg.DefaultWindow, nil)

	if len(cfg.TrackedRivers) > 0 {
		observability.SetTrackedRivers(cfg.TrackedRivers)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(sess, floodClient, logger, cfg.CatalogTTL)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	stationRouter := router.PathPrefix("/stations").Subrouter()
	stationRouter.Use(httphandler.RateLimitMiddleware(limiter))
	stationRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	stationRouter.HandleFunc("", handler.GetStations).Methods("GET")
	stationRouter.HandleFunc("/refresh", handler.PostRefresh).Methods("POST")
	stationRouter.HandleFunc("/{id}/readings", handler.GetReadings).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", ":"+cfg.ServerPort),
			zap.String("upstream", cfg.FloodAPIURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
