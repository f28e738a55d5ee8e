package auction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/hyemembers/vipauction/internal/database/repositories"
)

// SettleEnded walks a batch and finalizes every ENDED auction that has a
// leading bid. Settlement is exactly-once by construction: the transition is
// one conditional update matched on (ENDED, leader set), so of N racing
// processes only one ever observes a match. ENDED auctions without bids are
// left alone for an administrator to resolve.
func (m *Manager) SettleEnded(ctx context.Context, auctions []*models.Auction) {
	for _, a := range auctions {
		if a.Status != models.AuctionStatusEnded || !a.HasLeadingBid() {
			continue
		}
		m.settleOne(ctx, a)
	}
}

// settleOne attempts the ENDED -> SETTLED transition for a single auction
// and, when it wins the transition, dispatches the settlement notifications.
// A match miss means another process settled it first; that is success, not
// an error, and notification retries belong to later housekeeping passes.
func (m *Manager) settleOne(ctx context.Context, a *models.Auction) {
	if a.LeadingBidUserID == nil {
		return
	}

	now := m.clock()
	ended := models.AuctionStatusEnded
	settled := models.AuctionStatusSettled
	hasLead := true

	patch := repositories.AuctionPatch{
		Status:             &settled,
		SettledAt:          &now,
		BookingConfirmedAt: &now,
		WinnerUserID:       a.LeadingBidUserID,
		WinnerBidID:        a.LeadingBidID,
	}
	if joinURL := m.meetingJoinURL(ctx, a.ID); joinURL != "" {
		patch.MeetingJoinURL = &joinURL
	}

	matched, err := m.auctions.ConditionalUpdate(ctx, a.ID,
		repositories.AuctionMatch{Status: &ended, HasLeadingBid: &hasLead},
		patch)
	if err != nil {
		slog.Error("Failed to settle auction",
			slog.String("auction_id", a.ID),
			slog.String("error", err.Error()))
		return
	}
	if !matched {
		return
	}

	slog.Info("Auction settled",
		slog.String("type", "engine"),
		slog.String("auction_id", a.ID),
		slog.String("winner_id", *a.LeadingBidUserID),
		slog.Int64("final_amount", derefAmount(a.CurrentBidAmount)))

	fresh, err := m.auctions.GetByID(ctx, a.ID)
	if err != nil {
		slog.Error("Failed to reload settled auction for notification",
			slog.String("auction_id", a.ID),
			slog.String("error", err.Error()))
		return
	}
	m.dispatchNotifications(ctx, fresh)
}

// dispatchNotifications sends whichever settlement notifications are still
// missing their confirmed-sent timestamp. Dispatch failures are logged and
// swallowed; the unset flag keeps them eligible for the next pass.
func (m *Manager) dispatchNotifications(ctx context.Context, a *models.Auction) {
	if a.Status != models.AuctionStatusSettled || a.WinnerUserID == nil {
		return
	}
	settled := models.AuctionStatusSettled

	if a.WinnerNotifiedAt == nil {
		if err := m.dispatcher.NotifyWinner(ctx, a, *a.WinnerUserID); err != nil {
			slog.Error("Winner notification dispatch failed",
				slog.String("auction_id", a.ID),
				slog.String("winner_id", *a.WinnerUserID),
				slog.String("error", err.Error()))
		} else {
			now := m.clock()
			if _, err := m.auctions.ConditionalUpdate(ctx, a.ID,
				repositories.AuctionMatch{Status: &settled},
				repositories.AuctionPatch{WinnerNotifiedAt: &now}); err != nil {
				slog.Error("Failed to record winner notification",
					slog.String("auction_id", a.ID),
					slog.String("error", err.Error()))
			} else {
				a.WinnerNotifiedAt = &now
			}
		}
	}

	if a.AdminNotifiedAt == nil {
		if err := m.dispatcher.NotifyAdmin(ctx, a); err != nil {
			slog.Error("Admin notification dispatch failed",
				slog.String("auction_id", a.ID),
				slog.String("error", err.Error()))
		} else {
			now := m.clock()
			if _, err := m.auctions.ConditionalUpdate(ctx, a.ID,
				repositories.AuctionMatch{Status: &settled},
				repositories.AuctionPatch{AdminNotifiedAt: &now}); err != nil {
				slog.Error("Failed to record admin notification",
					slog.String("auction_id", a.ID),
					slog.String("error", err.Error()))
			} else {
				a.AdminNotifiedAt = &now
			}
		}
	}
}

// RetryNotifications re-dispatches notifications for settled auctions whose
// confirmed-sent timestamps are still missing.
func (m *Manager) RetryNotifications(ctx context.Context) error {
	settled, err := m.auctions.ListByStatus(ctx, []models.AuctionStatus{models.AuctionStatusSettled}, 0)
	if err != nil {
		return fmt.Errorf("failed to list settled auctions: %w", err)
	}

	for _, a := range settled {
		if a.WinnerNotifiedAt != nil && a.AdminNotifiedAt != nil {
			continue
		}
		m.dispatchNotifications(ctx, a)
	}
	return nil
}

func (m *Manager) meetingJoinURL(ctx context.Context, auctionID string) string {
	template := m.settings.Current(ctx).MeetingJoinURLTemplate
	if template == "" {
		return ""
	}
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, auctionID)
	}
	return template
}
