// Package main prints the running-balance ledger of one account as TSV.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chain-ledger/internal/adapter"
	"github.com/chain-ledger/internal/config"
	"github.com/chain-ledger/internal/logging"
	"github.com/chain-ledger/internal/price"
	"github.com/chain-ledger/internal/ratelimit"
	"github.com/chain-ledger/internal/service"
	"github.com/chain-ledger/internal/types"
)

func main() {
	category := flag.String("category", "", "Address book category, e.g. BTC, ETH, USDC-SOL")
	account := flag.String("account", "", "Address, or stake key for ADA")
	order := flag.String("order", "asc", "Row order: asc or desc")
	flag.Parse()

	if *category == "" || *account == "" {
		fmt.Fprintln(os.Stderr, "usage: ledger -category BTC -account <address> [-order asc|desc]")
		os.Exit(2)
	}
	if *order != "asc" && *order != "desc" {
		fmt.Fprintf(os.Stderr, "invalid order %q\n", *order)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout stays a clean TSV
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.SetOutput(os.Stderr)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	clients := adapter.NewClients(cfg, ratelimit.NewRegistry(cfg.RateLimit))
	prices := price.NewCache(adapter.NewPriceRouter(clients), price.WithCurrentTTL(cfg.Cache.CurrentPriceTTL))
	ledger := service.NewLedgerService(adapter.NewDefaultRegistry(clients, prices))

	start := time.Now()
	rows, err := ledger.BuildLedger(ctx, types.Category(*category), *account, *order == "desc")
	if err != nil {
		logger.WithError(err).Error("Failed to build ledger")
		os.Exit(1)
	}

	if err := writeTSV(os.Stdout, rows); err != nil {
		logger.WithError(err).Error("Failed to write ledger")
		os.Exit(1)
	}

	stats := prices.Stats()
	logger.WithFields(map[string]interface{}{
		"rows":         len(rows),
		"price_misses": stats.Misses,
		"duration_ms":  time.Since(start).Milliseconds(),
	}).Info("Ledger written")
}

func writeTSV(w io.Writer, rows []types.LedgerRow) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "timestamp\tid\tamount\tfee\tprice_usd\tamount_usd\tfee_usd\tbalance\tbalance_usd")
	for _, r := range rows {
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.UTC().Format(time.RFC3339),
			r.ExternalID,
			r.NativeAmount.String(),
			r.Fee.String(),
			r.PriceUSD.String(),
			r.AmountUSD.StringFixed(2),
			r.FeeUSD.StringFixed(2),
			r.Balance.String(),
			r.BalanceUSD.StringFixed(2),
		)
	}
	return bw.Flush()
}
