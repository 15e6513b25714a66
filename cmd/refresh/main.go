// Command refresh runs one station list refresh against the configured store and exits.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kjstillabower/tahmo-weather-service/internal/client"
	"github.com/kjstillabower/tahmo-weather-service/internal/config"
	"github.com/kjstillabower/tahmo-weather-service/internal/observability"
	"github.com/kjstillabower/tahmo-weather-service/internal/refresh"
	"github.com/kjstillabower/tahmo-weather-service/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	logger, err := observability.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	tahmoClient, err := client.NewTahmoClient(cfg.TahmoUsername, cfg.TahmoPassword, cfg.TahmoAPIURL, cfg.UpstreamTimeout)
	if err != nil {
		logger.Error("tahmo client", zap.Error(err))
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.UpstreamTimeout)
	defer cancel()

	stationStore, err := store.Open(ctx, cfg.StoreBackend, store.Options{
		CSVPath:               cfg.StationsCSVPath,
		SQLitePath:            cfg.SQLitePath,
		MemcachedAddrs:        cfg.MemcachedAddrs,
		MemcachedTimeout:      cfg.MemcachedTimeout,
		MemcachedMaxIdleConns: cfg.MemcachedMaxIdleConns,
	})
	if err != nil {
		logger.Error("station store", zap.Error(err))
		return 1
	}
	defer func() { _ = stationStore.Close() }()

	if err := refresh.NewJob(tahmoClient, stationStore, logger).Run(ctx); err != nil {
		return 1
	}
	return 0
}
