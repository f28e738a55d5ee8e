package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionStatus string

const (
	AuctionStatusDraft     AuctionStatus = "DRAFT"
	AuctionStatusScheduled AuctionStatus = "SCHEDULED"
	AuctionStatusLive      AuctionStatus = "LIVE"
	AuctionStatusEnded     AuctionStatus = "ENDED"
	AuctionStatusCancelled AuctionStatus = "CANCELLED"
	AuctionStatusSettled   AuctionStatus = "SETTLED"
)

// TimeGoverned reports whether the status is derived from the bidding window
// rather than set manually. DRAFT, CANCELLED and SETTLED pass through the
// synchronizer unchanged.
func (s AuctionStatus) TimeGoverned() bool {
	switch s {
	case AuctionStatusScheduled, AuctionStatusLive, AuctionStatusEnded:
		return true
	}
	return false
}

// Active statuses occupy a call slot and participate in overlap checks.
func (s AuctionStatus) Active() bool {
	switch s {
	case AuctionStatusScheduled, AuctionStatusLive, AuctionStatusEnded, AuctionStatusSettled:
		return true
	}
	return false
}

// Auction is one VIP call slot open for competitive bidding. Revision is the
// optimistic-concurrency token: every accepted mutation must match the
// revision it read and increments it by one.
type Auction struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID          string `bun:"id,pk" bson:"_id" json:"id"`
	Title       string `bun:"title,notnull" bson:"title" json:"title"`
	Description string `bun:"description" bson:"description,omitempty" json:"description,omitempty"`

	CallStartsAt    time.Time `bun:"call_starts_at,notnull" bson:"callStartsAt" json:"callStartsAt"`
	DurationMinutes int       `bun:"duration_minutes,notnull" bson:"durationMinutes" json:"durationMinutes"`
	BiddingStartsAt time.Time `bun:"bidding_starts_at,notnull" bson:"biddingStartsAt" json:"biddingStartsAt"`
	BiddingEndsAt   time.Time `bun:"bidding_ends_at,notnull" bson:"biddingEndsAt" json:"biddingEndsAt"`

	StartingBidAmount int64 `bun:"starting_bid_amount,notnull" bson:"startingBidAmount" json:"startingBidAmount"`
	MinIncrement      int64 `bun:"min_increment,notnull" bson:"minIncrement" json:"minIncrement"`

	CurrentBidAmount *int64     `bun:"current_bid_amount" bson:"currentBidAmount,omitempty" json:"currentBidAmount,omitempty"`
	LeadingBidUserID *string    `bun:"leading_bid_user_id" bson:"leadingBidUserId,omitempty" json:"leadingBidUserId,omitempty"`
	LeadingBidID     *string    `bun:"leading_bid_id" bson:"leadingBidId,omitempty" json:"leadingBidId,omitempty"`
	LastBidAt        *time.Time `bun:"last_bid_at" bson:"lastBidAt,omitempty" json:"lastBidAt,omitempty"`
	BidCount         int        `bun:"bid_count,notnull,default:0" bson:"bidCount" json:"bidCount"`
	ExtensionCount   int        `bun:"extension_count,notnull,default:0" bson:"extensionCount" json:"extensionCount"`

	AntiSnipeEnabled       bool `bun:"anti_snipe_enabled,notnull,default:false" bson:"antiSnipeEnabled" json:"antiSnipeEnabled"`
	AntiSnipeWindowSeconds int  `bun:"anti_snipe_window_seconds,notnull,default:0" bson:"antiSnipeWindowSeconds" json:"antiSnipeWindowSeconds"`
	AntiSnipeExtendSeconds int  `bun:"anti_snipe_extend_seconds,notnull,default:0" bson:"antiSnipeExtendSeconds" json:"antiSnipeExtendSeconds"`
	AntiSnipeMaxExtensions int  `bun:"anti_snipe_max_extensions,notnull,default:0" bson:"antiSnipeMaxExtensions" json:"antiSnipeMaxExtensions"`

	Revision int64         `bun:"revision,notnull,default:0" bson:"revision" json:"revision"`
	Status   AuctionStatus `bun:"status,notnull" bson:"status" json:"status"`

	SettledAt          *time.Time `bun:"settled_at" bson:"settledAt,omitempty" json:"settledAt,omitempty"`
	BookingConfirmedAt *time.Time `bun:"booking_confirmed_at" bson:"bookingConfirmedAt,omitempty" json:"bookingConfirmedAt,omitempty"`
	WinnerUserID       *string    `bun:"winner_user_id" bson:"winnerUserId,omitempty" json:"winnerUserId,omitempty"`
	WinnerBidID        *string    `bun:"winner_bid_id" bson:"winnerBidId,omitempty" json:"winnerBidId,omitempty"`
	WinnerNotifiedAt   *time.Time `bun:"winner_notified_at" bson:"winnerNotifiedAt,omitempty" json:"winnerNotifiedAt,omitempty"`
	AdminNotifiedAt    *time.Time `bun:"admin_notified_at" bson:"adminNotifiedAt,omitempty" json:"adminNotifiedAt,omitempty"`
	MeetingJoinURL     *string    `bun:"meeting_join_url" bson:"meetingJoinUrl,omitempty" json:"meetingJoinUrl,omitempty"`
	CancelledReason    *string    `bun:"cancelled_reason" bson:"cancelledReason,omitempty" json:"cancelledReason,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" bson:"updatedAt" json:"updatedAt"`
}

// HasLeadingBid reports whether at least one bid has been accepted.
// Invariant: CurrentBidAmount, LeadingBidUserID and BidCount>0 are set
// together or not at all.
func (a *Auction) HasLeadingBid() bool {
	return a.LeadingBidUserID != nil && a.CurrentBidAmount != nil && a.BidCount > 0
}

// MinimumNextBid returns the smallest amount the next bid may carry.
func (a *Auction) MinimumNextBid() int64 {
	if !a.HasLeadingBid() {
		return max64(1, a.StartingBidAmount)
	}
	return *a.CurrentBidAmount + max64(1, a.MinIncrement)
}

// CallEndsAt is the exclusive end of the call slot interval.
func (a *Auction) CallEndsAt() time.Time {
	return a.CallStartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// OverlapsCall reports whether the two call slot intervals intersect.
func (a *Auction) OverlapsCall(other *Auction) bool {
	return a.CallStartsAt.Before(other.CallEndsAt()) && other.CallStartsAt.Before(a.CallEndsAt())
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
