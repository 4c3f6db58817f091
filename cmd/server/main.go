// Package main provides the report server entry point for the chain ledger service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chain-ledger/internal/adapter"
	"github.com/chain-ledger/internal/api"
	"github.com/chain-ledger/internal/config"
	"github.com/chain-ledger/internal/logging"
	"github.com/chain-ledger/internal/price"
	"github.com/chain-ledger/internal/ratelimit"
	"github.com/chain-ledger/internal/service"
	"github.com/chain-ledger/internal/storage"
)

func main() {
	fmt.Println("Chain Ledger Report Server")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	defer logger.Sync()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Upstream clients share one token bucket per provider
	limiter := ratelimit.NewRegistry(cfg.RateLimit)
	clients := adapter.NewClients(cfg, limiter)

	cacheOpts := []price.CacheOption{price.WithCurrentTTL(cfg.Cache.CurrentPriceTTL)}
	if cfg.Cache.UseRedis {
		redisClient, err := storage.NewRedisClient(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisClient.Close()
		cacheOpts = append(cacheOpts, price.WithStore(storage.NewRedisPriceStore(redisClient)))
		logger.Info("Redis price store enabled")
	}
	prices := price.NewCache(adapter.NewPriceRouter(clients), cacheOpts...)

	registry := adapter.NewDefaultRegistry(clients, prices)
	logger.WithField("categories", len(registry.HistoryCategories())).Info("Chain adapters initialized")

	// Address book
	var (
		book          storage.AddressBookLoader
		rewardWallets api.RewardWalletLister
	)
	switch cfg.AddressBook.Source {
	case "postgres":
		postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()
		repo := storage.NewAddressBookRepository(postgres)
		book, rewardWallets = repo, repo
	case "file":
		book = storage.NewFileAddressBook(cfg.AddressBook.Path)
	default:
		logger.WithField("source", cfg.AddressBook.Source).Fatal("Unknown address book source")
	}

	// Copper is optional; without credentials copper categories fail the report
	var copper service.CopperSource
	if cfg.Copper.APIKey != "" && cfg.Copper.APISecret != "" {
		copper = adapter.NewCopperClient(clients.Copper, cfg.Copper.APIKey, cfg.Copper.APISecret)
	} else {
		logger.Warn("Copper credentials not set, custodial wallets disabled")
	}

	cardano := adapter.NewCardanoAdapter(clients.Blockfrost, prices)

	deps := api.Dependencies{
		Ledger:        service.NewLedgerService(registry),
		Portfolio:     service.NewPortfolioService(registry, prices, copper),
		Rewards:       cardano,
		RewardWallets: rewardWallets,
		Daily: func(ctx context.Context, account string) (service.DailySource, error) {
			src, err := cardano.DailySource(ctx, account)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
		AddressBook: book,
		Copper:      copper,
	}

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		ClientRPS:       cfg.Server.ClientRPS,
		ClientBurst:     cfg.Server.ClientBurst,
	}

	server := api.NewServer(serverConfig, deps, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	stats := prices.Stats()
	logger.WithFields(map[string]interface{}{
		"price_hits":   stats.Hits,
		"price_misses": stats.Misses,
	}).Info("Server exited")
}
