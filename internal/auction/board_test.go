package auction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyemembers/vipauction/internal/database/models"
)

func TestMaskUserID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9177700012", "member-***0012"},
		{"abc", "member-abc"},
		{"abcd", "member-abcd"},
		{"abcde", "member-***bcde"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskUserID(tt.in))
	}
}

func TestAssembleBoardPartitionsByStatus(t *testing.T) {
	fx := newEngine(t)

	live := fx.addAuction(t, nil)
	upcoming := fx.addAuction(t, func(a *models.Auction) {
		a.BiddingStartsAt = fx.now.Add(time.Hour)
		a.BiddingEndsAt = fx.now.Add(2 * time.Hour)
		a.CallStartsAt = fx.now.Add(26 * time.Hour)
		a.Status = models.AuctionStatusScheduled
	})
	_ = fx.addAuction(t, func(a *models.Auction) {
		a.BiddingEndsAt = fx.now.Add(-time.Hour)
		a.Status = models.AuctionStatusSettled
		a.CurrentBidAmount = int64Ptr(7000)
		a.LeadingBidUserID = strPtr("member-7")
		a.WinnerUserID = strPtr("member-7")
		a.BidCount = 2
	})
	// Persisted LIVE, already over, with a leader: the board read itself
	// must end and settle it before rendering.
	selfDriving := fx.addAuction(t, func(a *models.Auction) {
		a.BiddingEndsAt = fx.now.Add(-time.Minute)
		a.CurrentBidAmount = int64Ptr(4000)
		a.LeadingBidUserID = strPtr("member-4")
		a.LeadingBidID = strPtr("bid-4")
		a.BidCount = 1
	})

	board, err := fx.manager.AssembleBoard(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, fx.now, board.ServerTime)

	require.Len(t, board.Live, 1)
	assert.Equal(t, live.ID, board.Live[0].ID)

	require.Len(t, board.Upcoming, 1)
	assert.Equal(t, upcoming.ID, board.Upcoming[0].ID)

	require.Len(t, board.Past, 2)
	for _, card := range board.Past {
		assert.Equal(t, models.AuctionStatusSettled, card.Status)
	}

	persisted := fx.reload(t, selfDriving.ID)
	assert.Equal(t, models.AuctionStatusSettled, persisted.Status)
}

func TestAssembleBoardCardNumbers(t *testing.T) {
	fx := newEngine(t)
	a := fx.addAuction(t, func(a *models.Auction) {
		a.StartingBidAmount = 1000
		a.MinIncrement = 250
	})

	_, err := fx.manager.PlaceBid(context.Background(), a.ID, "9177700012", 1000, "")
	require.NoError(t, err)
	fx.now = fx.now.Add(time.Second)
	_, err = fx.manager.PlaceBid(context.Background(), a.ID, "9177700034", 1250, "")
	require.NoError(t, err)

	board, err := fx.manager.AssembleBoard(context.Background(), "9177700012")
	require.NoError(t, err)
	require.Len(t, board.Live, 1)

	card := board.Live[0]
	require.NotNil(t, card.CurrentBidAmount)
	assert.Equal(t, int64(1250), *card.CurrentBidAmount)
	assert.Equal(t, int64(1500), card.MinimumNextBid)
	assert.Equal(t, 2, card.BidCount)
	assert.Equal(t, int64(3599), card.SecondsLeft)

	require.NotNil(t, card.LeadingBidderLabel)
	assert.Equal(t, "member-***0034", *card.LeadingBidderLabel)

	require.Len(t, card.RecentBids, 2)
	assert.Equal(t, int64(1250), card.RecentBids[0].Amount, "recent bids are newest first")
	for _, bid := range card.RecentBids {
		assert.NotContains(t, bid.Label, "9177700", "full ids never reach the board")
	}

	require.Len(t, card.TopBidders, 2)
	assert.Equal(t, int64(1250), card.TopBidders[0].MaxBid)

	require.NotNil(t, card.YourMaxBid)
	assert.Equal(t, int64(1000), *card.YourMaxBid)
}

func TestAssembleBoardAnonymousViewer(t *testing.T) {
	fx := newEngine(t)
	a := fx.addAuction(t, nil)

	_, err := fx.manager.PlaceBid(context.Background(), a.ID, "member-1", 1000, "")
	require.NoError(t, err)

	board, err := fx.manager.AssembleBoard(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, board.Live, 1)
	assert.Nil(t, board.Live[0].YourMaxBid)
}

func TestAssembleBoardOrdersLiveByClosingTime(t *testing.T) {
	fx := newEngine(t)

	later := fx.addAuction(t, func(a *models.Auction) {
		a.BiddingEndsAt = fx.now.Add(2 * time.Hour)
		a.CallStartsAt = fx.now.Add(30 * time.Hour)
	})
	sooner := fx.addAuction(t, func(a *models.Auction) {
		a.BiddingEndsAt = fx.now.Add(30 * time.Minute)
	})

	board, err := fx.manager.AssembleBoard(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, board.Live, 2)
	assert.Equal(t, sooner.ID, board.Live[0].ID)
	assert.Equal(t, later.ID, board.Live[1].ID)
}
