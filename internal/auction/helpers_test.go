package auction

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hyemembers/vipauction/internal/database/memory"
	"github.com/hyemembers/vipauction/internal/database/models"
)

// engineFixture wires a Manager over the in-memory store with a controllable
// clock. Tests move time by assigning fx.now.
type engineFixture struct {
	store      *memory.Store
	manager    *Manager
	dispatcher *recordingDispatcher
	now        time.Time
}

func newEngine(t *testing.T) *engineFixture {
	t.Helper()

	fx := &engineFixture{
		store:      memory.NewStore(),
		dispatcher: &recordingDispatcher{},
		now:        time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return fx.now }
	settings := NewSettingsProvider(fx.store.Settings(), time.Minute, clock)
	fx.manager = NewManager(fx.store.Auctions(), fx.store.Bids(), settings, fx.dispatcher, clock)
	return fx
}

var auctionSeq int

// addAuction inserts a LIVE auction with a one hour bidding window around
// fx.now and sane commercial terms; mutate adjusts the defaults.
func (fx *engineFixture) addAuction(t *testing.T, mutate func(*models.Auction)) *models.Auction {
	t.Helper()

	auctionSeq++
	a := &models.Auction{
		ID:                fmt.Sprintf("AUTEST%03d", auctionSeq),
		Title:             fmt.Sprintf("VIP call %d", auctionSeq),
		CallStartsAt:      fx.now.Add(2 * time.Hour),
		DurationMinutes:   30,
		BiddingStartsAt:   fx.now.Add(-time.Hour),
		BiddingEndsAt:     fx.now.Add(time.Hour),
		StartingBidAmount: 1000,
		MinIncrement:      100,
		Status:            models.AuctionStatusLive,
	}
	if mutate != nil {
		mutate(a)
	}
	if err := fx.store.Auctions().Insert(context.Background(), a); err != nil {
		t.Fatalf("insert auction: %v", err)
	}
	return a
}

func (fx *engineFixture) reload(t *testing.T, id string) *models.Auction {
	t.Helper()

	a, err := fx.store.Auctions().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload auction %s: %v", id, err)
	}
	return a
}

// recordingDispatcher counts notification deliveries and can be told to
// fail either channel.
type recordingDispatcher struct {
	mu          sync.Mutex
	winnerCalls int
	adminCalls  int
	failWinner  bool
	failAdmin   bool
}

func (d *recordingDispatcher) NotifyWinner(_ context.Context, _ *models.Auction, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.winnerCalls++
	if d.failWinner {
		return fmt.Errorf("winner channel unavailable")
	}
	return nil
}

func (d *recordingDispatcher) NotifyAdmin(_ context.Context, _ *models.Auction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adminCalls++
	if d.failAdmin {
		return fmt.Errorf("admin channel unavailable")
	}
	return nil
}

func (d *recordingDispatcher) calls() (winner, admin int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.winnerCalls, d.adminCalls
}

func (d *recordingDispatcher) setFailures(winner, admin bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWinner = winner
	d.failAdmin = admin
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
