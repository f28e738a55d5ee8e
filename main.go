package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyemembers/vipauction/internal/auction"
	"github.com/hyemembers/vipauction/internal/config"
	"github.com/hyemembers/vipauction/internal/logger"
	"github.com/hyemembers/vipauction/internal/store"
	"github.com/hyemembers/vipauction/internal/timeutil"
	"github.com/hyemembers/vipauction/internal/web"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	prefix := cfg.Log.Prefix
	if prefix == "" {
		prefix = "VIPAuction"
	}
	slog.SetDefault(slog.New(logger.NewHandler(prefix, cfg.Log.Level)))

	slog.Info("Starting VIP auction server",
		slog.String("type", "sys"),
		slog.String("version", version),
		slog.String("commit", commit),
		slog.String("store", cfg.Store.Driver))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	stores, err := store.Open(ctx, cfg)
	cancel()
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
	server := web.NewServer(cfg.HTTP, manager)

	go func() {
		slog.Info("Listening",
			slog.String("type", "sys"),
			slog.String("addr", cfg.HTTP.Addr))
		if err := server.Listen(); err != nil {
			slog.Error("Server stopped", slog.String("error", err.Error()))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	slog.Info("Shutting down", slog.String("type", "sys"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", slog.String("error", err.Error()))
	}
	slog.Info("Shutdown complete", slog.String("type", "sys"))
}
