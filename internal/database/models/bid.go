package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DefaultCurrency is the only currency the ledger records today. It is still
// stored per row so historical entries stay correct if that ever changes.
const DefaultCurrency = "INR"

// Bid is one append-only ledger entry. Rows are never mutated or deleted;
// the ledger is the audit trail, not the source of truth for who is leading.
type Bid struct {
	bun.BaseModel `bun:"table:bids,alias:b"`

	ID        string `bun:"id,pk" bson:"_id" json:"id"`
	AuctionID string `bun:"auction_id,notnull" bson:"auctionId" json:"auctionId"`
	UserID    string `bun:"user_id,notnull" bson:"userId" json:"userId"`

	Amount   int64  `bun:"amount,notnull" bson:"amount" json:"amount"`
	Currency string `bun:"currency,notnull" bson:"currency" json:"currency"`

	PlacedAt time.Time `bun:"placed_at,notnull" bson:"placedAt" json:"placedAt"`

	// IdempotencyKey is caller-supplied and unique per (auction, user, key).
	IdempotencyKey *string `bun:"idempotency_key" bson:"idempotencyKey,omitempty" json:"idempotencyKey,omitempty"`

	WasAutoExtended bool `bun:"was_auto_extended,notnull,default:false" bson:"wasAutoExtended" json:"wasAutoExtended"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" bson:"createdAt" json:"createdAt"`
}

// TopBidder is one row of the per-auction leaderboard aggregation: a member's
// highest offer and how many bids they placed.
type TopBidder struct {
	UserID   string `bun:"user_id" bson:"_id" json:"userId"`
	MaxBid   int64  `bun:"max_bid" bson:"maxBid" json:"maxBid"`
	BidCount int    `bun:"bid_count" bson:"bidCount" json:"bidCount"`
}
