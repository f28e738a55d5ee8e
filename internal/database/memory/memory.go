// Package memory holds an in-process implementation of the store interfaces.
// It backs the dev store driver and the engine's concurrency tests; the
// conditional update is atomic under a single mutex, giving the same
// compare-and-set semantics as the real backends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/hyemembers/vipauction/internal/database/repositories"
)

type Store struct {
	mu       sync.Mutex
	auctions map[string]*models.Auction
	bids     []*models.Bid
	settings *models.AuctionSettings
}

func NewStore() *Store {
	return &Store{auctions: make(map[string]*models.Auction)}
}

func (s *Store) Auctions() repositories.AuctionRepository { return (*auctionRepo)(s) }
func (s *Store) Bids() repositories.BidRepository         { return (*bidRepo)(s) }
func (s *Store) Settings() repositories.SettingsRepository {
	return (*settingsRepo)(s)
}

type auctionRepo Store

func (r *auctionRepo) Insert(_ context.Context, auction *models.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	auction.CreatedAt = now
	auction.UpdatedAt = now
	r.auctions[auction.ID] = cloneAuction(auction)
	return nil
}

func (r *auctionRepo) GetByID(_ context.Context, id string) (*models.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[id]
	if !ok {
		return nil, repositories.ErrAuctionNotFound
	}
	return cloneAuction(auction), nil
}

func (r *auctionRepo) ListByStatus(_ context.Context, statuses []models.AuctionStatus, limit int) ([]*models.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[models.AuctionStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var out []*models.Auction
	for _, auction := range r.auctions {
		if wanted[auction.Status] {
			out = append(out, cloneAuction(auction))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BiddingEndsAt.Before(out[j].BiddingEndsAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *auctionRepo) ConditionalUpdate(_ context.Context, id string, match repositories.AuctionMatch, patch repositories.AuctionPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[id]
	if !ok {
		return false, nil
	}

	if match.Revision != nil && auction.Revision != *match.Revision {
		return false, nil
	}
	if match.Status != nil && auction.Status != *match.Status {
		return false, nil
	}
	if match.HasLeadingBid != nil && auction.HasLeadingBid() != *match.HasLeadingBid {
		return false, nil
	}
	if match.BiddingOpenAt != nil {
		t := *match.BiddingOpenAt
		if auction.BiddingStartsAt.After(t) || !auction.BiddingEndsAt.After(t) {
			return false, nil
		}
	}

	if patch.Status != nil {
		auction.Status = *patch.Status
	}
	if patch.CurrentBidAmount != nil {
		auction.CurrentBidAmount = ptr(*patch.CurrentBidAmount)
	}
	if patch.LeadingBidUserID != nil {
		auction.LeadingBidUserID = ptr(*patch.LeadingBidUserID)
	}
	if patch.LeadingBidID != nil {
		auction.LeadingBidID = ptr(*patch.LeadingBidID)
	}
	if patch.LastBidAt != nil {
		auction.LastBidAt = ptr(*patch.LastBidAt)
	}
	if patch.BiddingEndsAt != nil {
		auction.BiddingEndsAt = *patch.BiddingEndsAt
	}
	if patch.IncrementBidCount {
		auction.BidCount++
	}
	if patch.IncrementExtensionCount {
		auction.ExtensionCount++
	}
	if patch.SettledAt != nil {
		auction.SettledAt = ptr(*patch.SettledAt)
	}
	if patch.BookingConfirmedAt != nil {
		auction.BookingConfirmedAt = ptr(*patch.BookingConfirmedAt)
	}
	if patch.WinnerUserID != nil {
		auction.WinnerUserID = ptr(*patch.WinnerUserID)
	}
	if patch.WinnerBidID != nil {
		auction.WinnerBidID = ptr(*patch.WinnerBidID)
	}
	if patch.WinnerNotifiedAt != nil {
		auction.WinnerNotifiedAt = ptr(*patch.WinnerNotifiedAt)
	}
	if patch.AdminNotifiedAt != nil {
		auction.AdminNotifiedAt = ptr(*patch.AdminNotifiedAt)
	}
	if patch.MeetingJoinURL != nil {
		auction.MeetingJoinURL = ptr(*patch.MeetingJoinURL)
	}
	if patch.CancelledReason != nil {
		auction.CancelledReason = ptr(*patch.CancelledReason)
	}

	auction.Revision++
	auction.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *auctionRepo) Replace(_ context.Context, auction *models.Auction, expectedRevision int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[auction.ID]
	if !ok || stored.Revision != expectedRevision {
		return false, nil
	}

	auction.Revision = expectedRevision + 1
	auction.UpdatedAt = time.Now().UTC()
	r.auctions[auction.ID] = cloneAuction(auction)
	return true, nil
}

type bidRepo Store

func (r *bidRepo) Insert(_ context.Context, bid *models.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bid.IdempotencyKey != nil {
		for _, existing := range r.bids {
			if existing.AuctionID == bid.AuctionID &&
				existing.UserID == bid.UserID &&
				existing.IdempotencyKey != nil &&
				*existing.IdempotencyKey == *bid.IdempotencyKey {
				return repositories.ErrDuplicateBid
			}
		}
	}

	bid.CreatedAt = time.Now().UTC()
	if bid.Currency == "" {
		bid.Currency = models.DefaultCurrency
	}
	r.bids = append(r.bids, cloneBid(bid))
	return nil
}

func (r *bidRepo) GetByIdempotencyKey(_ context.Context, auctionID, userID, key string) (*models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, bid := range r.bids {
		if bid.AuctionID == auctionID && bid.UserID == userID &&
			bid.IdempotencyKey != nil && *bid.IdempotencyKey == key {
			return cloneBid(bid), nil
		}
	}
	return nil, nil
}

func (r *bidRepo) RecentByAuction(_ context.Context, auctionIDs []string, limit int) (map[string][]*models.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]*models.Bid, len(auctionIDs))
	for _, id := range auctionIDs {
		var bids []*models.Bid
		for _, bid := range r.bids {
			if bid.AuctionID == id {
				bids = append(bids, cloneBid(bid))
			}
		}
		sort.Slice(bids, func(i, j int) bool {
			return bids[i].PlacedAt.After(bids[j].PlacedAt)
		})
		if limit > 0 && len(bids) > limit {
			bids = bids[:limit]
		}
		out[id] = bids
	}
	return out, nil
}

func (r *bidRepo) TopBiddersByAuction(_ context.Context, auctionIDs []string, topN int) (map[string][]models.TopBidder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]models.TopBidder, len(auctionIDs))
	for _, id := range auctionIDs {
		byUser := make(map[string]*models.TopBidder)
		for _, bid := range r.bids {
			if bid.AuctionID != id {
				continue
			}
			entry, ok := byUser[bid.UserID]
			if !ok {
				entry = &models.TopBidder{UserID: bid.UserID}
				byUser[bid.UserID] = entry
			}
			entry.BidCount++
			if bid.Amount > entry.MaxBid {
				entry.MaxBid = bid.Amount
			}
		}

		top := make([]models.TopBidder, 0, len(byUser))
		for _, entry := range byUser {
			top = append(top, *entry)
		}
		sort.Slice(top, func(i, j int) bool { return top[i].MaxBid > top[j].MaxBid })
		if topN > 0 && len(top) > topN {
			top = top[:topN]
		}
		out[id] = top
	}
	return out, nil
}

func (r *bidRepo) MaxBidByMember(_ context.Context, auctionIDs []string, userID string) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[string]bool, len(auctionIDs))
	for _, id := range auctionIDs {
		wanted[id] = true
	}

	out := make(map[string]int64)
	for _, bid := range r.bids {
		if bid.UserID != userID || !wanted[bid.AuctionID] {
			continue
		}
		if bid.Amount > out[bid.AuctionID] {
			out[bid.AuctionID] = bid.Amount
		}
	}
	return out, nil
}

type settingsRepo Store

func (r *settingsRepo) Get(_ context.Context) (*models.AuctionSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings == nil {
		return nil, nil
	}
	copied := *r.settings
	return &copied, nil
}

func (r *settingsRepo) Upsert(_ context.Context, settings *models.AuctionSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings.ID = models.SettingsID
	settings.UpdatedAt = time.Now().UTC()
	copied := *settings
	r.settings = &copied
	return nil
}

func cloneAuction(a *models.Auction) *models.Auction {
	copied := *a
	copied.CurrentBidAmount = clonePtr(a.CurrentBidAmount)
	copied.LeadingBidUserID = clonePtr(a.LeadingBidUserID)
	copied.LeadingBidID = clonePtr(a.LeadingBidID)
	copied.LastBidAt = clonePtr(a.LastBidAt)
	copied.SettledAt = clonePtr(a.SettledAt)
	copied.BookingConfirmedAt = clonePtr(a.BookingConfirmedAt)
	copied.WinnerUserID = clonePtr(a.WinnerUserID)
	copied.WinnerBidID = clonePtr(a.WinnerBidID)
	copied.WinnerNotifiedAt = clonePtr(a.WinnerNotifiedAt)
	copied.AdminNotifiedAt = clonePtr(a.AdminNotifiedAt)
	copied.MeetingJoinURL = clonePtr(a.MeetingJoinURL)
	copied.CancelledReason = clonePtr(a.CancelledReason)
	return &copied
}

func cloneBid(b *models.Bid) *models.Bid {
	copied := *b
	copied.IdempotencyKey = clonePtr(b.IdempotencyKey)
	return &copied
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	copied := *p
	return &copied
}

func ptr[T any](v T) *T { return &v }
