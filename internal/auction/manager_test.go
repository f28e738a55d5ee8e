package auction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyemembers/vipauction/internal/database/models"
)

func TestPlaceBidFirstBidTakesLead(t *testing.T) {
	fx := newEngine(t)
	a := fx.addAuction(t, nil)

	result, err := fx.manager.PlaceBid(context.Background(), a.ID, "member-1", 1000, "")
	require.NoError(t, err)
	assert.False(t, result.AutoExtended)
	assert.False(t, result.AlreadyProcessed)
	require.NotNil(t, result.Board)

	persisted := fx.reload(t, a.ID)
	require.NotNil(t, persisted.CurrentBidAmount)
	assert.Equal(t, int64(1000), *persisted.CurrentBidAmount)
	require.NotNil(t, persisted.LeadingBidUserID)
	assert.Equal(t, "member-1", *persisted.LeadingBidUserID)
	assert.Equal(t, 1, persisted.BidCount)
	assert.Equal(t, a.Revision+1, persisted.Revision)
}

func TestPlaceBidValidation(t *testing.T) {
	fx := newEngine(t)
	a := fx.addAuction(t, nil)

	tests := []struct {
		name      string
		auctionID string
		bidderID  string
		amount    int64
		wantCode  ErrorCode
	}{
		{"missing auction id", "", "member-1", 1000, CodeInvalidAuctionID},
		{"missing bidder id", a.ID, "", 1000, CodeInvalidAuctionID},
		{"zero amount", a.ID, "member-1", 0, CodeInvalidAmount},
		{"negative amount", a.ID, "member-1", -5, CodeInvalidAmount},
		{"above global ceiling", a.ID, "member-1", DefaultMaxBidAmount + 1, CodeInvalidAmount},
		{"unknown auction", "AUMISSING", "member-1", 1000, CodeAuctionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.manager.PlaceBid(context.Background(), tt.auctionID, tt.bidderID, tt.amount, "")
			bidErr, ok := AsBidError(err)
			require.True(t, ok, "expected a bid error, got %v", err)
			assert.Equal(t, tt.wantCode, bidErr.Code)
		})
	}
}

func TestPlaceBidTooLowCarriesMinimum(t *testing.T) {
	fx := newEngine(t)
	a := fx.addAuction(t, func(a *models.Auction) {
		a.StartingBidAmount = 1000
		a.MinIncrement = 99
	})

	_, err := fx.manager.PlaceBid(context.Background(), a.ID, "member-1", 999, "")
	bidErr, ok := AsBidError(err)
	require.True(t, ok)
	assert.Equal(t, CodeBidTooLow, bidErr.Code)
	require.NotNil(t, bidErr.MinRequired)
	assert.Equal(t, int64(1000), *bidErr.MinRequired)
	assert.Nil(t, bidErr.CurrentBidAmount)

	_, err = fx.manager.PlaceBid(context.Background(), a.ID, "member-1", 1000, "")
	require.NoError(t, err)

	_, err = fx.manager.PlaceBid(context.Background(), a.ID, "member-2", 1050, "")
	bidErr, ok = AsBidError(err)
	require.True(t, ok)
	assert.Equal(t, CodeBidTooLow, bidErr.Code)
	require.NotNil(t, bidErr.MinRequired)
	assert.Equal(t, int64(1099), *bidErr.MinRequired)
	require.NotNil(t, bidErr.CurrentBidAmount)
	assert.Equal(t, int64(1000), *bidErr.CurrentBidAmount)
}

func TestPlaceBidIdempotentReplay(t *testing.T) {
	fx := newEngine(t)
	a := fx.addAuction(t, nil)

	first, err := fx.manager.PlaceBid(context.Background(), a.ID, "member-1", 1500, "key-1")
	require.NoError(t, err)
	require.False(t, first.AlreadyProcessed)

	replay, err := fx.manager.PlaceBid(context.Background(), a.ID, "member-1", 1500, "key-1")
	require.NoError(t, err)
	assert.True(t, replay.AlreadyProcessed)
	assert.Equal(t, first.Bid.ID, replay.Bid.ID)

	persisted := fx.reload(t, a.ID)
	assert.Equal(t, 1, persisted.BidCount, "replay must not double-apply")
	require.NotNil(t, persisted.CurrentBidAmount)
	assert.Equal(t, int64(1500), *persisted.CurrentBidAmount)

	// Same key, different member: a fresh bid, not a replay.
	other, err := fx.manager.PlaceBid(context.Background(), a.ID, "member-2", 1600, "key-1")
	require.NoError(t, err)
	assert.False(t, other.AlreadyProcessed)
}

func TestPlaceBidNotLive(t *testing.T) {
	fx := newEngine(t)

	upcoming := fx.addAuction(t, func(a *models.Auction) {
		a.BiddingStartsAt = fx.now.Add(30 * time.Minute)
		a.BiddingEndsAt = fx.now.Add(90 * time.Minute)
		a.Status = models.AuctionStatusScheduled
	})
	cancelled := fx.addAuction(t, func(a *models.Auction) {
		a.Status = models.AuctionStatusCancelled
	})

	_, err := fx.manager.PlaceBid(context.Background(), upcoming.ID, "member-1", 1000, "")
	bidErr, ok := AsBidError(err)
	require.True(t, ok)
	assert.Equal(t, CodeAuctionNotLive, bidErr.Code)
	assert.Contains(t, bidErr.Message, "not started")

	_, err = fx.manager.PlaceBid(context.Background(), cancelled.ID, "member-1", 1000, "")
	bidErr, ok = AsBidError(err)
	require.True(t, ok)
	assert.Equal(t, CodeAuctionNotLive, bidErr.Code)
	assert.Contains(t, bidErr.Message, "cancelled")
}

func TestPlaceBidAfterEndSettlesCourtesy(t *testing.T) {
	fx := newEngine(t)
	a := fx.addAuction(t, func(a *models.Auction) {
		a.BiddingEndsAt = fx.now.Add(-time.Minute)
		a.CurrentBidAmount = int64Ptr(2000)
		a.LeadingBidUserID = strPtr("member-1")
		a.LeadingBidID = strPtr("bid-1")
		a.BidCount = 3
	})

	_, err := fx.manager.PlaceBid(context.Background(), a.ID, "member-2", 5000, "")
	bidErr, ok := AsBidError(err)
	require.True(t, ok)
	assert.Equal(t, CodeAuctionNotLive, bidErr.Code)
	assert.Contains(t, bidErr.Message, "ended")

	persisted := fx.reload(t, a.ID)
	assert.Equal(t, models.AuctionStatusSettled, persisted.Status,
		"the rejected bid should still have driven settlement")
	require.NotNil(t, persisted.WinnerUserID)
	assert.Equal(t, "member-1", *persisted.WinnerUserID)
}

func TestPlaceBidAntiSnipeExtends(t *testing.T) {
	fx := newEngine(t)
	end := fx.now.Add(60 * time.Second)
	a := fx.addAuction(t, func(a *models.Auction) {
		a.BiddingEndsAt = end
		a.AntiSnipeEnabled = true
		a.AntiSnipeWindowSeconds = 120
		a.AntiSnipeExtendSeconds = 120
		a.AntiSnipeMaxExtensions = 2
	})

	result, err := fx.manager.PlaceBid(context.Background(), a.ID, "member-1", 1000, "")
	require.NoError(t, err)
	assert.True(t, result.AutoExtended)

	persisted := fx.reload(t, a.ID)
	assert.Equal(t, end.Add(120*time.Second), persisted.BiddingEndsAt)
	assert.Equal(t, 1, persisted.ExtensionCount)

	// Remaining time is now beyond the window, so no extension.
	result, err = fx.manager.PlaceBid(context.Background(), a.ID, "member-2", 1100, "")
	require.NoError(t, err)
	assert.False(t, result.AutoExtended)

	// Move inside the window again and use up the last extension.
	fx.now = persisted.BiddingEndsAt.Add(-30 * time.Second)
	result, err = fx.manager.PlaceBid(context.Background(), a.ID, "member-1", 1200, "")
	require.NoError(t, err)
	assert.True(t, result.AutoExtended)

	persisted = fx.reload(t, a.ID)
	assert.Equal(t, 2, persisted.ExtensionCount)

	// Cap reached: still accepts the bid, never extends again.
	fx.now = persisted.BiddingEndsAt.Add(-30 * time.Second)
	result, err = fx.manager.PlaceBid(context.Background(), a.ID, "member-2", 1300, "")
	require.NoError(t, err)
	assert.False(t, result.AutoExtended)
	assert.Equal(t, 2, fx.reload(t, a.ID).ExtensionCount)
}

func TestPlaceBidConcurrentBiddersSingleWinner(t *testing.T) {
	fx := newEngine(t)
	a := fx.addAuction(t, nil)

	const bidders = 8
	amounts := make([]int64, bidders)
	for i := range amounts {
		amounts[i] = 1000 + int64(i)*500
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []int64
		winners  = map[int64]string{}
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			memberID := "member-" + string(rune('A'+i))
			_, err := fx.manager.PlaceBid(context.Background(), a.ID, memberID, amounts[i], "")
			if err != nil {
				bidErr, ok := AsBidError(err)
				if !assert.True(t, ok, "unexpected store error: %v", err) {
					return
				}
				assert.Contains(t,
					[]ErrorCode{CodeBidTooLow, CodeConflictRetry}, bidErr.Code)
				return
			}
			mu.Lock()
			accepted = append(accepted, amounts[i])
			winners[amounts[i]] = memberID
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.NotEmpty(t, accepted, "at least one bid must win its race")

	var highest int64
	for _, amount := range accepted {
		if amount > highest {
			highest = amount
		}
	}

	persisted := fx.reload(t, a.ID)
	require.NotNil(t, persisted.CurrentBidAmount)
	assert.Equal(t, highest, *persisted.CurrentBidAmount,
		"the final price must be the highest accepted bid, never a stale overwrite")
	require.NotNil(t, persisted.LeadingBidUserID)
	assert.Equal(t, winners[highest], *persisted.LeadingBidUserID)
	assert.Equal(t, len(accepted), persisted.BidCount)

	recent, err := fx.store.Bids().RecentByAuction(context.Background(), []string{a.ID}, 0)
	require.NoError(t, err)
	assert.Len(t, recent[a.ID], len(accepted), "one ledger row per accepted bid")
}
