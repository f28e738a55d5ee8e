package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/hyemembers/vipauction/internal/database/repositories"
)

// MaxDurationMinutes caps the call slot length and doubles as the look-back
// window when scanning for schedule conflicts.
const MaxDurationMinutes = 60

// AuctionDefinition carries the administrator-editable fields of an auction.
type AuctionDefinition struct {
	Title       string
	Description string

	CallStartsAt    time.Time
	DurationMinutes int
	BiddingStartsAt time.Time
	BiddingEndsAt   time.Time

	StartingBidAmount int64
	MinIncrement      int64

	AntiSnipeEnabled       bool
	AntiSnipeWindowSeconds int
	AntiSnipeExtendSeconds int
	AntiSnipeMaxExtensions int

	Status models.AuctionStatus
}

func (d *AuctionDefinition) validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if d.DurationMinutes < 1 || d.DurationMinutes > MaxDurationMinutes {
		return fmt.Errorf("%w: duration must be between 1 and %d minutes", ErrValidation, MaxDurationMinutes)
	}
	if d.CallStartsAt.IsZero() || d.BiddingStartsAt.IsZero() || d.BiddingEndsAt.IsZero() {
		return fmt.Errorf("%w: call and bidding window times are required", ErrValidation)
	}
	if !d.BiddingStartsAt.Before(d.BiddingEndsAt) {
		return fmt.Errorf("%w: bidding must start before it ends", ErrValidation)
	}
	callEnd := d.CallStartsAt.Add(time.Duration(d.DurationMinutes) * time.Minute)
	if d.BiddingEndsAt.After(callEnd) {
		return fmt.Errorf("%w: bidding must close by the end of the call slot", ErrValidation)
	}
	if d.StartingBidAmount < 1 {
		return fmt.Errorf("%w: starting bid must be at least 1", ErrValidation)
	}
	if d.MinIncrement < 1 {
		return fmt.Errorf("%w: minimum increment must be at least 1", ErrValidation)
	}
	if d.AntiSnipeEnabled {
		if d.AntiSnipeWindowSeconds < 1 || d.AntiSnipeExtendSeconds < 1 || d.AntiSnipeMaxExtensions < 1 {
			return fmt.Errorf("%w: anti-snipe window, extension and max extensions must be positive", ErrValidation)
		}
	}
	switch d.Status {
	case models.AuctionStatusDraft, models.AuctionStatusScheduled:
	default:
		return fmt.Errorf("%w: status must be %s or %s", ErrValidation,
			models.AuctionStatusDraft, models.AuctionStatusScheduled)
	}
	return nil
}

func (d *AuctionDefinition) applyTo(a *models.Auction) {
	a.Title = d.Title
	a.Description = d.Description
	a.CallStartsAt = d.CallStartsAt
	a.DurationMinutes = d.DurationMinutes
	a.BiddingStartsAt = d.BiddingStartsAt
	a.BiddingEndsAt = d.BiddingEndsAt
	a.StartingBidAmount = d.StartingBidAmount
	a.MinIncrement = d.MinIncrement
	a.AntiSnipeEnabled = d.AntiSnipeEnabled
	a.AntiSnipeWindowSeconds = d.AntiSnipeWindowSeconds
	a.AntiSnipeExtendSeconds = d.AntiSnipeExtendSeconds
	a.AntiSnipeMaxExtensions = d.AntiSnipeMaxExtensions
	a.Status = d.Status
}

// changesLockedTerms reports whether the definition touches the commercial
// terms that freeze once the first bid lands.
func (d *AuctionDefinition) changesLockedTerms(a *models.Auction) bool {
	return d.DurationMinutes != a.DurationMinutes ||
		!d.BiddingStartsAt.Equal(a.BiddingStartsAt) ||
		!d.BiddingEndsAt.Equal(a.BiddingEndsAt) ||
		d.StartingBidAmount != a.StartingBidAmount ||
		d.MinIncrement != a.MinIncrement
}

// GetAuction loads one auction with its status reconciled against the clock.
func (m *Manager) GetAuction(ctx context.Context, id string) (*models.Auction, error) {
	a, err := m.auctions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.SynchronizeStatuses(ctx, []*models.Auction{a})
	return a, nil
}

// ListAuctions lists auctions in the given statuses, reconciled against the
// clock the same way the board is.
func (m *Manager) ListAuctions(ctx context.Context, statuses []models.AuctionStatus) ([]*models.Auction, error) {
	auctions, err := m.auctions.ListByStatus(ctx, statuses, 0)
	if err != nil {
		return nil, err
	}
	return m.SynchronizeStatuses(ctx, auctions), nil
}

// CreateAuction validates the definition, guards the call slot against
// double booking and inserts the new auction.
func (m *Manager) CreateAuction(ctx context.Context, def AuctionDefinition) (*models.Auction, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}

	id, err := NewAuctionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate auction id: %w", err)
	}

	auction := &models.Auction{ID: id}
	def.applyTo(auction)

	if auction.Status.Active() {
		if err := m.checkOverlap(ctx, auction); err != nil {
			return nil, err
		}
	}

	if err := m.auctions.Insert(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	slog.Info("Auction created",
		slog.String("type", "engine"),
		slog.String("auction_id", auction.ID),
		slog.String("title", auction.Title),
		slog.Time("call_starts_at", auction.CallStartsAt))

	return auction, nil
}

// UpdateAuction rewrites an auction under a revision guard. Commercial terms
// are immutable once bids exist, and a settled auction never returns to an
// active state.
func (m *Manager) UpdateAuction(ctx context.Context, id string, def AuctionDefinition, expectedRevision int64) (*models.Auction, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}

	current, err := m.auctions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Status == models.AuctionStatusSettled && def.Status.Active() {
		return nil, fmt.Errorf("%w: a settled auction cannot return to an active state", ErrValidation)
	}
	if current.BidCount > 0 && def.changesLockedTerms(current) {
		return nil, ErrTermsLocked
	}

	updated := *current
	def.applyTo(&updated)

	if updated.Status.Active() {
		if err := m.checkOverlap(ctx, &updated); err != nil {
			return nil, err
		}
	}

	matched, err := m.auctions.Replace(ctx, &updated, expectedRevision)
	if err != nil {
		return nil, fmt.Errorf("failed to update auction: %w", err)
	}
	if !matched {
		return nil, ErrConflict
	}

	slog.Info("Auction updated",
		slog.String("type", "engine"),
		slog.String("auction_id", updated.ID),
		slog.Int64("revision", updated.Revision))

	return &updated, nil
}

// CancelAuction moves an auction to CANCELLED, recording the reason. Settled
// auctions are final and cannot be cancelled.
func (m *Manager) CancelAuction(ctx context.Context, id, reason string) (*models.Auction, error) {
	current, err := m.auctions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.AuctionStatusSettled {
		return nil, fmt.Errorf("%w: a settled auction cannot be cancelled", ErrValidation)
	}
	if current.Status == models.AuctionStatusCancelled {
		return current, nil
	}

	cancelled := models.AuctionStatusCancelled
	patch := repositories.AuctionPatch{Status: &cancelled}
	if reason != "" {
		patch.CancelledReason = &reason
	}

	matched, err := m.auctions.ConditionalUpdate(ctx, id,
		repositories.AuctionMatch{Status: &current.Status},
		patch)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel auction: %w", err)
	}
	if !matched {
		return nil, ErrConflict
	}

	slog.Info("Auction cancelled",
		slog.String("type", "engine"),
		slog.String("auction_id", id),
		slog.String("reason", reason))

	return m.auctions.GetByID(ctx, id)
}

// SettleManually lets an administrator force settlement of an auction whose
// bidding has ended with at least one bid. It reuses the same exactly-once
// transition as auto-settlement, so racing an in-flight board read is safe.
func (m *Manager) SettleManually(ctx context.Context, id string) (*models.Auction, error) {
	current, err := m.auctions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.AuctionStatusSettled {
		return current, nil
	}

	now := m.clock()
	if !current.HasLeadingBid() {
		return nil, fmt.Errorf("%w: no bids were placed", ErrNotSettleable)
	}
	if now.Before(current.BiddingEndsAt) {
		return nil, fmt.Errorf("%w: bidding is still open until %s",
			ErrNotSettleable, current.BiddingEndsAt.Format(time.RFC3339))
	}

	m.SynchronizeStatuses(ctx, []*models.Auction{current})
	m.settleOne(ctx, current)

	settled, err := m.auctions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if settled.Status != models.AuctionStatusSettled {
		return nil, fmt.Errorf("%w: status is %s", ErrNotSettleable, settled.Status)
	}
	return settled, nil
}

// checkOverlap scans active-status auctions for a call slot collision with
// the candidate. The scan is bounded to slots starting within one maximum
// duration before the candidate's slot, since nothing older can still reach
// into it.
func (m *Manager) checkOverlap(ctx context.Context, candidate *models.Auction) error {
	statuses := []models.AuctionStatus{
		models.AuctionStatusScheduled,
		models.AuctionStatusLive,
		models.AuctionStatusEnded,
		models.AuctionStatusSettled,
	}
	others, err := m.auctions.ListByStatus(ctx, statuses, 0)
	if err != nil {
		return fmt.Errorf("failed to scan for schedule conflicts: %w", err)
	}

	lookBack := candidate.CallStartsAt.Add(-MaxDurationMinutes * time.Minute)
	for _, other := range others {
		if other.ID == candidate.ID {
			continue
		}
		if other.CallStartsAt.Before(lookBack) || !other.CallStartsAt.Before(candidate.CallEndsAt()) {
			continue
		}
		if candidate.OverlapsCall(other) {
			return fmt.Errorf("%w: %q is scheduled at %s",
				ErrScheduleOverlap, other.Title, other.CallStartsAt.Format(time.RFC3339))
		}
	}
	return nil
}

// IsAdminError reports whether err is a guard rejection rather than a store
// failure.
func IsAdminError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrScheduleOverlap) ||
		errors.Is(err, ErrTermsLocked) ||
		errors.Is(err, ErrNotSettleable) ||
		errors.Is(err, ErrConflict)
}
