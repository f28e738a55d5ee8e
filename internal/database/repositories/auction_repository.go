package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/uptrace/bun"
)

var ErrAuctionNotFound = errors.New("auction not found")

// AuctionMatch is the predicate side of a conditional update. Nil fields are
// not checked. The whole match is evaluated atomically with the patch by the
// underlying store; a miss means some other process got there first.
type AuctionMatch struct {
	Revision      *int64
	Status        *models.AuctionStatus
	HasLeadingBid *bool
	// BiddingOpenAt requires biddingStartsAt <= t < biddingEndsAt.
	BiddingOpenAt *time.Time
}

// AuctionPatch is the mutation side of a conditional update. Nil fields are
// left untouched. Every applied patch increments the revision and refreshes
// updatedAt; callers never set those directly.
type AuctionPatch struct {
	Status *models.AuctionStatus

	CurrentBidAmount *int64
	LeadingBidUserID *string
	LeadingBidID     *string
	LastBidAt        *time.Time
	BiddingEndsAt    *time.Time

	IncrementBidCount       bool
	IncrementExtensionCount bool

	SettledAt          *time.Time
	BookingConfirmedAt *time.Time
	WinnerUserID       *string
	WinnerBidID        *string
	WinnerNotifiedAt   *time.Time
	AdminNotifiedAt    *time.Time
	MeetingJoinURL     *string
	CancelledReason    *string
}

// AuctionRepository is the auction document store. Implementations must give
// ConditionalUpdate single-document compare-and-set semantics: the match and
// the patch happen atomically or not at all.
type AuctionRepository interface {
	Insert(ctx context.Context, auction *models.Auction) error
	GetByID(ctx context.Context, id string) (*models.Auction, error)
	ListByStatus(ctx context.Context, statuses []models.AuctionStatus, limit int) ([]*models.Auction, error)
	// ConditionalUpdate applies patch iff the document still satisfies match.
	// Returns false with a nil error when the match found nothing.
	ConditionalUpdate(ctx context.Context, id string, match AuctionMatch, patch AuctionPatch) (bool, error)
	// Replace overwrites the whole document iff its revision still equals
	// expectedRevision, bumping auction.Revision on success.
	Replace(ctx context.Context, auction *models.Auction, expectedRevision int64) (bool, error)
}

type auctionRepository struct {
	db *bun.DB
}

func NewAuctionRepository(db *bun.DB) AuctionRepository {
	return &auctionRepository{db: db}
}

func (r *auctionRepository) Insert(ctx context.Context, auction *models.Auction) error {
	now := time.Now().UTC()
	auction.CreatedAt = now
	auction.UpdatedAt = now

	_, err := r.db.NewInsert().Model(auction).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

func (r *auctionRepository) GetByID(ctx context.Context, id string) (*models.Auction, error) {
	auction := new(models.Auction)
	err := r.db.NewSelect().
		Model(auction).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

func (r *auctionRepository) ListByStatus(ctx context.Context, statuses []models.AuctionStatus, limit int) ([]*models.Auction, error) {
	var auctions []*models.Auction

	q := r.db.NewSelect().
		Model(&auctions).
		Where("status IN (?)", bun.In(statuses)).
		Order("bidding_ends_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list auctions by status: %w", err)
	}
	return auctions, nil
}

func (r *auctionRepository) ConditionalUpdate(ctx context.Context, id string, match AuctionMatch, patch AuctionPatch) (bool, error) {
	q := r.db.NewUpdate().
		Model((*models.Auction)(nil)).
		Where("id = ?", id)

	if match.Revision != nil {
		q = q.Where("revision = ?", *match.Revision)
	}
	if match.Status != nil {
		q = q.Where("status = ?", *match.Status)
	}
	if match.HasLeadingBid != nil {
		if *match.HasLeadingBid {
			q = q.Where("leading_bid_user_id IS NOT NULL")
		} else {
			q = q.Where("leading_bid_user_id IS NULL")
		}
	}
	if match.BiddingOpenAt != nil {
		q = q.Where("bidding_starts_at <= ?", *match.BiddingOpenAt).
			Where("bidding_ends_at > ?", *match.BiddingOpenAt)
	}

	if patch.Status != nil {
		q = q.Set("status = ?", *patch.Status)
	}
	if patch.CurrentBidAmount != nil {
		q = q.Set("current_bid_amount = ?", *patch.CurrentBidAmount)
	}
	if patch.LeadingBidUserID != nil {
		q = q.Set("leading_bid_user_id = ?", *patch.LeadingBidUserID)
	}
	if patch.LeadingBidID != nil {
		q = q.Set("leading_bid_id = ?", *patch.LeadingBidID)
	}
	if patch.LastBidAt != nil {
		q = q.Set("last_bid_at = ?", *patch.LastBidAt)
	}
	if patch.BiddingEndsAt != nil {
		q = q.Set("bidding_ends_at = ?", *patch.BiddingEndsAt)
	}
	if patch.IncrementBidCount {
		q = q.Set("bid_count = bid_count + 1")
	}
	if patch.IncrementExtensionCount {
		q = q.Set("extension_count = extension_count + 1")
	}
	if patch.SettledAt != nil {
		q = q.Set("settled_at = ?", *patch.SettledAt)
	}
	if patch.BookingConfirmedAt != nil {
		q = q.Set("booking_confirmed_at = ?", *patch.BookingConfirmedAt)
	}
	if patch.WinnerUserID != nil {
		q = q.Set("winner_user_id = ?", *patch.WinnerUserID)
	}
	if patch.WinnerBidID != nil {
		q = q.Set("winner_bid_id = ?", *patch.WinnerBidID)
	}
	if patch.WinnerNotifiedAt != nil {
		q = q.Set("winner_notified_at = ?", *patch.WinnerNotifiedAt)
	}
	if patch.AdminNotifiedAt != nil {
		q = q.Set("admin_notified_at = ?", *patch.AdminNotifiedAt)
	}
	if patch.MeetingJoinURL != nil {
		q = q.Set("meeting_join_url = ?", *patch.MeetingJoinURL)
	}
	if patch.CancelledReason != nil {
		q = q.Set("cancelled_reason = ?", *patch.CancelledReason)
	}

	q = q.Set("revision = revision + 1").
		Set("updated_at = ?", time.Now().UTC())

	result, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to conditionally update auction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}

func (r *auctionRepository) Replace(ctx context.Context, auction *models.Auction, expectedRevision int64) (bool, error) {
	auction.Revision = expectedRevision + 1
	auction.UpdatedAt = time.Now().UTC()

	result, err := r.db.NewUpdate().
		Model(auction).
		WherePK().
		Where("revision = ?", expectedRevision).
		Exec(ctx)

	if err != nil {
		auction.Revision = expectedRevision
		return false, fmt.Errorf("failed to replace auction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		auction.Revision = expectedRevision
		return false, nil
	}
	return true, nil
}
