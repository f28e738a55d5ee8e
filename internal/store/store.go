// Package store wires the configured persistence driver into the repository
// interfaces the engine consumes.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyemembers/vipauction/internal/config"
	"github.com/hyemembers/vipauction/internal/database"
	"github.com/hyemembers/vipauction/internal/database/memory"
	"github.com/hyemembers/vipauction/internal/database/mongodb"
	"github.com/hyemembers/vipauction/internal/database/repositories"
)

// Stores bundles the three repositories of the auction engine together with
// whatever connection owns them.
type Stores struct {
	Auctions repositories.AuctionRepository
	Bids     repositories.BidRepository
	Settings repositories.SettingsRepository

	closeFn func()
}

// Open connects the driver named in the config and returns ready
// repositories. The caller owns the result and must Close it.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := database.New(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		if err := db.InitializeSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &Stores{
			Auctions: repositories.NewAuctionRepository(db.BunDB()),
			Bids:     repositories.NewBidRepository(db.BunDB()),
			Settings: repositories.NewSettingsRepository(db.BunDB()),
			closeFn:  db.Close,
		}, nil

	case "mongodb":
		db, err := mongodb.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("failed to open mongodb store: %w", err)
		}
		return &Stores{
			Auctions: mongodb.NewAuctionRepository(db),
			Bids:     mongodb.NewBidRepository(db),
			Settings: mongodb.NewSettingsRepository(db),
			closeFn: func() {
				if err := db.Client().Disconnect(context.Background()); err != nil {
					slog.Error("Failed to disconnect mongodb", slog.String("error", err.Error()))
				}
			},
		}, nil

	case "memory":
		slog.Warn("Using the in-memory store, nothing will be persisted")
		s := memory.NewStore()
		return &Stores{
			Auctions: s.Auctions(),
			Bids:     s.Bids(),
			Settings: s.Settings(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (s *Stores) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}
