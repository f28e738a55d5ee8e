package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrDuplicateBid signals a unique-constraint violation on
// (auction_id, user_id, idempotency_key): the original insert already won.
var ErrDuplicateBid = errors.New("duplicate bid for idempotency key")

// BidRepository is the append-only bid ledger with the aggregation helpers
// the board needs. Rows are inserted once and never touched again.
type BidRepository interface {
	Insert(ctx context.Context, bid *models.Bid) error
	// GetByIdempotencyKey returns (nil, nil) when no such bid exists.
	GetByIdempotencyKey(ctx context.Context, auctionID, userID, key string) (*models.Bid, error)
	RecentByAuction(ctx context.Context, auctionIDs []string, limit int) (map[string][]*models.Bid, error)
	TopBiddersByAuction(ctx context.Context, auctionIDs []string, topN int) (map[string][]models.TopBidder, error)
	MaxBidByMember(ctx context.Context, auctionIDs []string, userID string) (map[string]int64, error)
}

type bidRepository struct {
	db *bun.DB
}

func NewBidRepository(db *bun.DB) BidRepository {
	return &bidRepository{db: db}
}

func (r *bidRepository) Insert(ctx context.Context, bid *models.Bid) error {
	bid.CreatedAt = time.Now().UTC()
	if bid.Currency == "" {
		bid.Currency = models.DefaultCurrency
	}

	_, err := r.db.NewInsert().Model(bid).Exec(ctx)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return ErrDuplicateBid
		}
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func (r *bidRepository) GetByIdempotencyKey(ctx context.Context, auctionID, userID, key string) (*models.Bid, error) {
	bid := new(models.Bid)
	err := r.db.NewSelect().
		Model(bid).
		Where("auction_id = ? AND user_id = ? AND idempotency_key = ?", auctionID, userID, key).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bid by idempotency key: %w", err)
	}
	return bid, nil
}

func (r *bidRepository) RecentByAuction(ctx context.Context, auctionIDs []string, limit int) (map[string][]*models.Bid, error) {
	out := make(map[string][]*models.Bid, len(auctionIDs))
	for _, id := range auctionIDs {
		var bids []*models.Bid
		err := r.db.NewSelect().
			Model(&bids).
			Where("auction_id = ?", id).
			Order("placed_at DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent bids: %w", err)
		}
		out[id] = bids
	}
	return out, nil
}

func (r *bidRepository) TopBiddersByAuction(ctx context.Context, auctionIDs []string, topN int) (map[string][]models.TopBidder, error) {
	out := make(map[string][]models.TopBidder, len(auctionIDs))
	for _, id := range auctionIDs {
		var top []models.TopBidder
		err := r.db.NewSelect().
			Model((*models.Bid)(nil)).
			ColumnExpr("user_id").
			ColumnExpr("MAX(amount) AS max_bid").
			ColumnExpr("COUNT(*) AS bid_count").
			Where("auction_id = ?", id).
			Group("user_id").
			OrderExpr("max_bid DESC").
			Limit(topN).
			Scan(ctx, &top)
		if err != nil {
			return nil, fmt.Errorf("failed to get top bidders: %w", err)
		}
		out[id] = top
	}
	return out, nil
}

func (r *bidRepository) MaxBidByMember(ctx context.Context, auctionIDs []string, userID string) (map[string]int64, error) {
	if len(auctionIDs) == 0 {
		return map[string]int64{}, nil
	}

	var rows []struct {
		AuctionID string `bun:"auction_id"`
		MaxBid    int64  `bun:"max_bid"`
	}
	err := r.db.NewSelect().
		Model((*models.Bid)(nil)).
		ColumnExpr("auction_id").
		ColumnExpr("MAX(amount) AS max_bid").
		Where("auction_id IN (?)", bun.In(auctionIDs)).
		Where("user_id = ?", userID).
		Group("auction_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get member max bids: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.AuctionID] = row.MaxBid
	}
	return out, nil
}
