// Command housekeep runs one reconciliation pass over the auction store and
// exits. Board reads already drive status transitions and settlement; this
// exists for cron so quiet periods still converge.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/hyemembers/vipauction/internal/auction"
	"github.com/hyemembers/vipauction/internal/config"
	"github.com/hyemembers/vipauction/internal/logger"
	"github.com/hyemembers/vipauction/internal/store"
	"github.com/hyemembers/vipauction/internal/timeutil"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	timeout := flag.Duration("timeout", time.Minute, "pass deadline")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.SetDefault(slog.New(logger.NewHandler("Housekeep", cfg.Log.Level)))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stores, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer stores.Close()

	settings := auction.NewSettingsProvider(stores.Settings,
		time.Duration(cfg.Auction.SettingsTTLSeconds)*time.Second, timeutil.UTC())

	var dispatcher auction.Dispatcher = auction.LogDispatcher{}
	if cfg.Auction.WinnerWebhookURL != "" || cfg.Auction.AdminWebhookURL != "" {
		dispatcher = auction.NewWebhookDispatcher(cfg.Auction.WinnerWebhookURL, cfg.Auction.AdminWebhookURL)
	}

	manager := auction.NewManager(stores.Auctions, stores.Bids, settings, dispatcher, timeutil.UTC())
	if err := manager.Housekeep(ctx); err != nil {
		slog.Error("Housekeeping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
