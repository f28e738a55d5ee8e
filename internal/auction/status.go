package auction

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/hyemembers/vipauction/internal/database/repositories"
)

// DeriveStatus maps a time-governed status onto what the wall clock says it
// should be. DRAFT, CANCELLED and SETTLED are terminal or manual and pass
// through unchanged.
func DeriveStatus(persisted models.AuctionStatus, biddingStartsAt, biddingEndsAt, now time.Time) models.AuctionStatus {
	if !persisted.TimeGoverned() {
		return persisted
	}
	if now.Before(biddingStartsAt) {
		return models.AuctionStatusScheduled
	}
	if !now.Before(biddingEndsAt) {
		return models.AuctionStatusEnded
	}
	return models.AuctionStatusLive
}

// SynchronizeStatuses reconciles a batch of auctions against the clock. Each
// correction is a conditional update matched on the stale status; a miss
// means another process already corrected it and is discarded as a harmless
// race. The returned slice carries the effective statuses either way, so
// callers render what the clock says regardless of who persisted it.
func (m *Manager) SynchronizeStatuses(ctx context.Context, auctions []*models.Auction) []*models.Auction {
	now := m.clock()

	for _, a := range auctions {
		derived := DeriveStatus(a.Status, a.BiddingStartsAt, a.BiddingEndsAt, now)
		if derived == a.Status {
			continue
		}

		stale := a.Status
		matched, err := m.auctions.ConditionalUpdate(ctx, a.ID,
			repositories.AuctionMatch{Status: &stale},
			repositories.AuctionPatch{Status: &derived})
		if err != nil {
			slog.Error("Failed to persist status correction",
				slog.String("auction_id", a.ID),
				slog.String("from", string(stale)),
				slog.String("to", string(derived)),
				slog.String("error", err.Error()))
		} else if matched {
			slog.Debug("Auction status corrected",
				slog.String("auction_id", a.ID),
				slog.String("from", string(stale)),
				slog.String("to", string(derived)))
			a.Revision++
		}

		a.Status = derived
	}
	return auctions
}
