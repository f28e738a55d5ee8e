package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SettingsID is the key of the single operator-tunable settings document.
const SettingsID = "default"

// AuctionSettings are the operator-tunable knobs read through a TTL cache.
// Unset values fall back to compiled defaults, so a missing document is fine.
type AuctionSettings struct {
	bun.BaseModel `bun:"table:auction_settings,alias:s"`

	ID string `bun:"id,pk" bson:"_id" json:"id"`

	// MaxBidAmount is the sanity ceiling on a single bid, in integer rupees.
	MaxBidAmount int64 `bun:"max_bid_amount" bson:"maxBidAmount" json:"maxBidAmount"`

	DefaultAntiSnipeEnabled       bool `bun:"default_anti_snipe_enabled" bson:"defaultAntiSnipeEnabled" json:"defaultAntiSnipeEnabled"`
	DefaultAntiSnipeWindowSeconds int  `bun:"default_anti_snipe_window_seconds" bson:"defaultAntiSnipeWindowSeconds" json:"defaultAntiSnipeWindowSeconds"`
	DefaultAntiSnipeExtendSeconds int  `bun:"default_anti_snipe_extend_seconds" bson:"defaultAntiSnipeExtendSeconds" json:"defaultAntiSnipeExtendSeconds"`
	DefaultAntiSnipeMaxExtensions int  `bun:"default_anti_snipe_max_extensions" bson:"defaultAntiSnipeMaxExtensions" json:"defaultAntiSnipeMaxExtensions"`

	BoardRecentBids int `bun:"board_recent_bids" bson:"boardRecentBids" json:"boardRecentBids"`
	BoardTopBidders int `bun:"board_top_bidders" bson:"boardTopBidders" json:"boardTopBidders"`

	// MeetingJoinURLTemplate, when set, stamps the settled auction's join
	// link; %s is replaced with the auction id.
	MeetingJoinURLTemplate string `bun:"meeting_join_url_template" bson:"meetingJoinUrlTemplate,omitempty" json:"meetingJoinUrlTemplate,omitempty"`

	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" bson:"updatedAt" json:"updatedAt"`
}
