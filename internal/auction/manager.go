package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/hyemembers/vipauction/internal/database/repositories"
	"github.com/hyemembers/vipauction/internal/timeutil"
)

// maxPlaceAttempts bounds the optimistic-concurrency retry loop. Losing a
// race costs one store round trip, so the budget is generous but finite.
const maxPlaceAttempts = 6

// Manager is the auction engine hub: bid placement, status synchronization,
// auto-settlement, board assembly and the admin scheduling guard all hang
// off it. It holds no auction state of its own; the store is the only thing
// shared between processes.
type Manager struct {
	auctions   repositories.AuctionRepository
	bids       repositories.BidRepository
	settings   *SettingsProvider
	dispatcher Dispatcher
	clock      timeutil.Clock
}

func NewManager(
	auctions repositories.AuctionRepository,
	bids repositories.BidRepository,
	settings *SettingsProvider,
	dispatcher Dispatcher,
	clock timeutil.Clock,
) *Manager {
	if auctions == nil || bids == nil {
		panic("auction and bid repositories cannot be nil")
	}
	if dispatcher == nil {
		dispatcher = LogDispatcher{}
	}
	if clock == nil {
		clock = timeutil.UTC()
	}
	return &Manager{
		auctions:   auctions,
		bids:       bids,
		settings:   settings,
		dispatcher: dispatcher,
		clock:      clock,
	}
}

// Settings exposes the settings provider for the admin surface.
func (m *Manager) Settings() *SettingsProvider {
	return m.settings
}

// PlaceBidResult reports an accepted (or replayed) bid together with a fresh
// board snapshot so the caller can render immediately.
type PlaceBidResult struct {
	Bid              *models.Bid
	AutoExtended     bool
	AlreadyProcessed bool
	Board            *Board
}

// PlaceBid validates and applies one bid under optimistic concurrency.
// The single conditional update in the loop body is the correctness core:
// it matches on the observed revision, LIVE status and the open bidding
// window all at once, so two concurrent "highest bidder" writes can never
// both land on stale state. Everything around it exists to make that update
// safe to repeat.
func (m *Manager) PlaceBid(ctx context.Context, auctionID, bidderID string, amount int64, idempotencyKey string) (*PlaceBidResult, error) {
	if auctionID == "" {
		return nil, newBidError(CodeInvalidAuctionID, "auction id is required")
	}
	if bidderID == "" {
		return nil, newBidError(CodeInvalidAuctionID, "bidder id is required")
	}

	settings := m.settings.Current(ctx)
	if amount <= 0 {
		return nil, newBidError(CodeInvalidAmount, "bid amount must be a positive integer")
	}
	if amount > settings.MaxBidAmount {
		return nil, newBidError(CodeInvalidAmount, "bid amount exceeds the maximum of %d", settings.MaxBidAmount)
	}

	for attempt := 0; attempt < maxPlaceAttempts; attempt++ {
		// Client retries and concurrent duplicates short-circuit here; the
		// re-check on every pass also catches the twin request that lost
		// the conditional update race below.
		if idempotencyKey != "" {
			existing, err := m.bids.GetByIdempotencyKey(ctx, auctionID, bidderID, idempotencyKey)
			if err != nil {
				return nil, fmt.Errorf("failed to check idempotency key: %w", err)
			}
			if existing != nil {
				return &PlaceBidResult{
					Bid:              existing,
					AutoExtended:     existing.WasAutoExtended,
					AlreadyProcessed: true,
					Board:            m.boardOrNil(ctx, bidderID),
				}, nil
			}
		}

		auction, err := m.auctions.GetByID(ctx, auctionID)
		if err != nil {
			if errors.Is(err, repositories.ErrAuctionNotFound) {
				return nil, newBidError(CodeAuctionNotFound, "auction %s does not exist", auctionID)
			}
			return nil, fmt.Errorf("failed to load auction: %w", err)
		}

		now := m.clock()
		effective := DeriveStatus(auction.Status, auction.BiddingStartsAt, auction.BiddingEndsAt, now)
		if effective != auction.Status {
			// Best-effort correction; the bid's own conditional update does
			// not depend on it landing.
			stale := auction.Status
			if _, err := m.auctions.ConditionalUpdate(ctx, auction.ID,
				repositories.AuctionMatch{Status: &stale},
				repositories.AuctionPatch{Status: &effective}); err != nil {
				slog.Error("Failed to persist status correction during bid",
					slog.String("auction_id", auction.ID),
					slog.String("error", err.Error()))
			}
			// The correction bumped the revision, so re-read before the CAS.
			continue
		}

		if effective != models.AuctionStatusLive {
			if effective == models.AuctionStatusEnded && auction.HasLeadingBid() {
				// Courtesy settlement: this request observed the end first.
				m.settleOne(ctx, auction)
			}
			return nil, notLiveError(auction, effective, now)
		}

		minRequired := auction.MinimumNextBid()
		if amount < minRequired {
			bidErr := newBidError(CodeBidTooLow, "bid of %d is below the minimum of %d", amount, minRequired)
			bidErr.MinRequired = &minRequired
			bidErr.CurrentBidAmount = auction.CurrentBidAmount
			return nil, bidErr
		}

		// Anti-snipe decision, from the same read the conditional update
		// will match against.
		extend := false
		newEndsAt := auction.BiddingEndsAt
		if auction.AntiSnipeEnabled && auction.ExtensionCount < auction.AntiSnipeMaxExtensions {
			remaining := auction.BiddingEndsAt.Sub(now)
			if remaining > 0 && remaining <= time.Duration(auction.AntiSnipeWindowSeconds)*time.Second {
				extend = true
				newEndsAt = auction.BiddingEndsAt.Add(time.Duration(auction.AntiSnipeExtendSeconds) * time.Second)
			}
		}

		bidID := NewBidID()
		live := models.AuctionStatusLive
		patch := repositories.AuctionPatch{
			CurrentBidAmount:  &amount,
			LeadingBidUserID:  &bidderID,
			LeadingBidID:      &bidID,
			LastBidAt:         &now,
			IncrementBidCount: true,
		}
		if extend {
			patch.BiddingEndsAt = &newEndsAt
			patch.IncrementExtensionCount = true
		}

		matched, err := m.auctions.ConditionalUpdate(ctx, auction.ID,
			repositories.AuctionMatch{
				Revision:      &auction.Revision,
				Status:        &live,
				BiddingOpenAt: &now,
			}, patch)
		if err != nil {
			return nil, fmt.Errorf("failed to apply bid: %w", err)
		}
		if !matched {
			// Lost the race to a concurrent bid or the window moved; no
			// side effects happened, so go around.
			continue
		}

		bid := &models.Bid{
			ID:              bidID,
			AuctionID:       auction.ID,
			UserID:          bidderID,
			Amount:          amount,
			Currency:        models.DefaultCurrency,
			PlacedAt:        now,
			WasAutoExtended: extend,
		}
		if idempotencyKey != "" {
			key := idempotencyKey
			bid.IdempotencyKey = &key
		}

		if err := m.bids.Insert(ctx, bid); err != nil {
			if errors.Is(err, repositories.ErrDuplicateBid) {
				// Two near-simultaneous identical retries raced the ledger;
				// the original insert already won and the auction side was
				// updated exactly once above.
				slog.Debug("Duplicate ledger insert absorbed",
					slog.String("auction_id", auction.ID),
					slog.String("bidder_id", bidderID))
			} else {
				// The auction document is already correct; a missing ledger
				// row is an audit gap, not a lost bid.
				slog.Error("Failed to append bid ledger entry",
					slog.String("auction_id", auction.ID),
					slog.String("bid_id", bidID),
					slog.String("error", err.Error()))
			}
		}

		slog.Info("Bid accepted",
			slog.String("type", "engine"),
			slog.String("auction_id", auction.ID),
			slog.String("bidder_id", bidderID),
			slog.Int64("amount", amount),
			slog.Bool("auto_extended", extend),
			slog.Int("attempt", attempt+1))

		return &PlaceBidResult{
			Bid:          bid,
			AutoExtended: extend,
			Board:        m.boardOrNil(ctx, bidderID),
		}, nil
	}

	return nil, newBidError(CodeConflictRetry,
		"auction is receiving heavy bidding, please retry")
}

func notLiveError(auction *models.Auction, effective models.AuctionStatus, now time.Time) *BidError {
	switch effective {
	case models.AuctionStatusScheduled:
		wait := timeutil.Remaining(now, auction.BiddingStartsAt)
		return newBidError(CodeAuctionNotLive, "bidding has not started yet, opens in %s", wait.Round(time.Second))
	case models.AuctionStatusEnded, models.AuctionStatusSettled:
		return newBidError(CodeAuctionNotLive, "bidding has already ended")
	case models.AuctionStatusCancelled:
		return newBidError(CodeAuctionNotLive, "auction was cancelled")
	default:
		return newBidError(CodeAuctionNotLive, "auction is not open for bidding")
	}
}

func (m *Manager) boardOrNil(ctx context.Context, viewerID string) *Board {
	board, err := m.AssembleBoard(ctx, viewerID)
	if err != nil {
		slog.Error("Failed to assemble board snapshot after bid",
			slog.String("error", err.Error()))
		return nil
	}
	return board
}
