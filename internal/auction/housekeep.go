package auction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyemembers/vipauction/internal/database/models"
)

// Housekeep runs one full reconciliation pass: status synchronization,
// settlement of freshly ended auctions, and a retry sweep over settlement
// notifications that never got their confirmed-sent timestamp. Board reads
// already drive all of this incidentally; housekeeping only matters during
// quiet periods when nobody is reading.
func (m *Manager) Housekeep(ctx context.Context) error {
	statuses := []models.AuctionStatus{
		models.AuctionStatusScheduled,
		models.AuctionStatusLive,
		models.AuctionStatusEnded,
	}
	auctions, err := m.auctions.ListByStatus(ctx, statuses, 0)
	if err != nil {
		return fmt.Errorf("failed to list auctions for housekeeping: %w", err)
	}

	auctions = m.SynchronizeStatuses(ctx, auctions)
	m.SettleEnded(ctx, auctions)

	if err := m.RetryNotifications(ctx); err != nil {
		return err
	}

	slog.Info("Housekeeping pass complete",
		slog.String("type", "engine"),
		slog.Int("auctions_checked", len(auctions)))
	return nil
}
