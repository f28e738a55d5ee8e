package auction

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/hyemembers/vipauction/internal/timeutil"
)

// boardScanLimit caps how many auctions one board read pulls in.
const boardScanLimit = 100

// Board is the member-facing snapshot. Amounts are integer rupees and
// timestamps serialize as ISO-8601 UTC.
type Board struct {
	ServerTime time.Time   `json:"serverTime"`
	Live       []BoardCard `json:"live"`
	Upcoming   []BoardCard `json:"upcoming"`
	Past       []BoardCard `json:"past"`
}

type BoardCard struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Status      models.AuctionStatus `json:"status"`

	CallStartsAt    time.Time `json:"callStartsAt"`
	DurationMinutes int       `json:"durationMinutes"`
	BiddingStartsAt time.Time `json:"biddingStartsAt"`
	BiddingEndsAt   time.Time `json:"biddingEndsAt"`
	SecondsLeft     int64     `json:"secondsLeft"`

	CurrentBidAmount   *int64  `json:"currentBidAmount"`
	MinimumNextBid     int64   `json:"minimumNextBid"`
	LeadingBidderLabel *string `json:"leadingBidderLabel"`
	BidCount           int     `json:"bidCount"`
	ExtensionCount     int     `json:"extensionCount"`

	TopBidders []BoardBidder `json:"topBidders"`
	RecentBids []BoardBid    `json:"recentBids"`

	// YourMaxBid is only populated for the requesting member.
	YourMaxBid *int64 `json:"yourMaxBid,omitempty"`

	WinnerLabel *string    `json:"winnerLabel,omitempty"`
	SettledAt   *time.Time `json:"settledAt,omitempty"`
}

type BoardBidder struct {
	Label    string `json:"label"`
	MaxBid   int64  `json:"maxBid"`
	BidCount int    `json:"bidCount"`
}

type BoardBid struct {
	Label    string    `json:"label"`
	Amount   int64     `json:"amount"`
	PlacedAt time.Time `json:"placedAt"`
}

// AssembleBoard builds the read view and, as a side effect, drives the state
// machine: statuses are synchronized and ended auctions settled before
// anything is rendered. There is no scheduler process; board reads are what
// keep time moving.
func (m *Manager) AssembleBoard(ctx context.Context, viewerID string) (*Board, error) {
	statuses := []models.AuctionStatus{
		models.AuctionStatusScheduled,
		models.AuctionStatusLive,
		models.AuctionStatusEnded,
		models.AuctionStatusSettled,
	}
	auctions, err := m.auctions.ListByStatus(ctx, statuses, boardScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions for board: %w", err)
	}

	auctions = m.SynchronizeStatuses(ctx, auctions)
	m.SettleEnded(ctx, auctions)

	// Settlement may have just flipped statuses; render what it produced.
	for _, a := range auctions {
		if a.Status == models.AuctionStatusEnded && a.HasLeadingBid() {
			if fresh, err := m.auctions.GetByID(ctx, a.ID); err == nil {
				*a = *fresh
			}
		}
	}

	ids := make([]string, len(auctions))
	for i, a := range auctions {
		ids[i] = a.ID
	}

	settings := m.settings.Current(ctx)

	var (
		recent map[string][]*models.Bid
		top    map[string][]models.TopBidder
		mine   map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = m.bids.RecentByAuction(gctx, ids, settings.BoardRecentBids)
		return err
	})
	g.Go(func() error {
		var err error
		top, err = m.bids.TopBiddersByAuction(gctx, ids, settings.BoardTopBidders)
		return err
	})
	if viewerID != "" {
		g.Go(func() error {
			var err error
			mine, err = m.bids.MaxBidByMember(gctx, ids, viewerID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate board bids: %w", err)
	}

	now := m.clock()
	board := &Board{
		ServerTime: now,
		Live:       []BoardCard{},
		Upcoming:   []BoardCard{},
		Past:       []BoardCard{},
	}

	for _, a := range auctions {
		card := m.buildCard(a, now, recent[a.ID], top[a.ID])
		if mine != nil {
			if amount, ok := mine[a.ID]; ok {
				card.YourMaxBid = &amount
			}
		}

		switch a.Status {
		case models.AuctionStatusLive:
			board.Live = append(board.Live, card)
		case models.AuctionStatusScheduled:
			board.Upcoming = append(board.Upcoming, card)
		default:
			board.Past = append(board.Past, card)
		}
	}

	sort.Slice(board.Live, func(i, j int) bool {
		return board.Live[i].BiddingEndsAt.Before(board.Live[j].BiddingEndsAt)
	})
	sort.Slice(board.Upcoming, func(i, j int) bool {
		return board.Upcoming[i].BiddingStartsAt.Before(board.Upcoming[j].BiddingStartsAt)
	})
	sort.Slice(board.Past, func(i, j int) bool {
		return board.Past[i].BiddingEndsAt.After(board.Past[j].BiddingEndsAt)
	})

	return board, nil
}

func (m *Manager) buildCard(a *models.Auction, now time.Time, recent []*models.Bid, top []models.TopBidder) BoardCard {
	card := BoardCard{
		ID:               a.ID,
		Title:            a.Title,
		Description:      a.Description,
		Status:           a.Status,
		CallStartsAt:     a.CallStartsAt,
		DurationMinutes:  a.DurationMinutes,
		BiddingStartsAt:  a.BiddingStartsAt,
		BiddingEndsAt:    a.BiddingEndsAt,
		SecondsLeft:      int64(timeutil.Remaining(now, a.BiddingEndsAt) / time.Second),
		CurrentBidAmount: a.CurrentBidAmount,
		MinimumNextBid:   a.MinimumNextBid(),
		BidCount:         a.BidCount,
		ExtensionCount:   a.ExtensionCount,
		TopBidders:       []BoardBidder{},
		RecentBids:       []BoardBid{},
		SettledAt:        a.SettledAt,
	}

	if a.LeadingBidUserID != nil {
		label := MaskUserID(*a.LeadingBidUserID)
		card.LeadingBidderLabel = &label
	}
	if a.WinnerUserID != nil {
		label := MaskUserID(*a.WinnerUserID)
		card.WinnerLabel = &label
	}

	for _, bidder := range top {
		card.TopBidders = append(card.TopBidders, BoardBidder{
			Label:    MaskUserID(bidder.UserID),
			MaxBid:   bidder.MaxBid,
			BidCount: bidder.BidCount,
		})
	}
	for _, bid := range recent {
		card.RecentBids = append(card.RecentBids, BoardBid{
			Label:    MaskUserID(bid.UserID),
			Amount:   bid.Amount,
			PlacedAt: bid.PlacedAt,
		})
	}

	return card
}

// MaskUserID keeps the tail of a member id so bidders recognize themselves
// on the board without exposing anyone's full identity.
func MaskUserID(userID string) string {
	const visible = 4
	if len(userID) <= visible {
		return "member-" + userID
	}
	return "member-***" + userID[len(userID)-visible:]
}
