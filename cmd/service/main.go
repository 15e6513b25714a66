package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/tahmo-weather-service/internal/client"
	"github.com/kjstillabower/tahmo-weather-service/internal/config"
	httphandler "github.com/kjstillabower/tahmo-weather-service/internal/http"
	"github.com/kjstillabower/tahmo-weather-service/internal/lifecycle"
	"github.com/kjstillabower/tahmo-weather-service/internal/observability"
	"github.com/kjstillabower/tahmo-weather-service/internal/refresh"
	"github.com/kjstillabower/tahmo-weather-service/internal/service"
	"github.com/kjstillabower/tahmo-weather-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	tahmoClient, err := client.NewTahmoClient(cfg.TahmoUsername, cfg.TahmoPassword, cfg.TahmoAPIURL, cfg.UpstreamTimeout)
	if err != nil {
		logger.Fatal("tahmo client", zap.Error(err))
	}
	forecastClient, err := client.NewMeteoblueClient(cfg.ForecastAPIKey, cfg.ForecastAPIURL, cfg.UpstreamTimeout)
	if err != nil {
		logger.Fatal("forecast client", zap.Error(err))
	}

	openCtx, openCancel := context.WithTimeout(context.Background(), 10*time.Second)
	stationStore, err := store.Open(openCtx, cfg.StoreBackend, store.Options{
		CSVPath:               cfg.StationsCSVPath,
		SQLitePath:            cfg.SQLitePath,
		MemcachedAddrs:        cfg.MemcachedAddrs,
		MemcachedTimeout:      cfg.MemcachedTimeout,
		MemcachedMaxIdleConns: cfg.MemcachedMaxIdleConns,
	})
	openCancel()
	if err != nil {
		logger.Fatal("station store", zap.Error(err))
	}
	logger.Info("store backend: "+stationStore.Backend,
		zap.String("csv_path", cfg.StationsCSVPath),
		zap.String("sqlite_path", cfg.SQLitePath),
		zap.String("memcached_addrs", cfg.MemcachedAddrs))

	stationService := service.NewStationService(stationStore, tahmoClient, forecastClient)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	job := refresh.NewJob(tahmoClient, stationStore, logger)
	if cfg.RefreshOnStart {
		// A failed startup refresh leaves the previous list in the store.
		if err := job.Initialize(runCtx); err != nil {
			logger.Warn("startup refresh failed; serving stored stations", zap.Error(err))
		}
	}
	scheduler, err := refresh.NewScheduler(job, cfg.RefreshSchedule, cfg.RefreshMisfireGrace, logger)
	if err != nil {
		logger.Fatal("refresh scheduler", zap.Error(err))
	}
	scheduler.Start(runCtx)

	healthConfig := &httphandler.HealthConfig{
		StoreBackend: stationStore.Backend,
		StorePing:    stationStore.Ping,
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(stationService, healthConfig, logger)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(httphandler.RateLimitMiddleware(limiter))
	apiRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	apiRouter.HandleFunc("/data", handler.GetData).Methods("GET")
	apiRouter.HandleFunc("/get-stations", handler.GetStations).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httphandler.CORS()(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("refresh scheduler stop", zap.Error(err))
	}
	runCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := stationStore.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
