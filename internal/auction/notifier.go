package auction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hyemembers/vipauction/internal/database/models"
)

// Dispatcher delivers settlement notifications. A nil return means the
// notification is confirmed sent; any error is a distinguishable dispatch
// failure the engine will retry on a later pass.
type Dispatcher interface {
	NotifyWinner(ctx context.Context, auction *models.Auction, winnerUserID string) error
	NotifyAdmin(ctx context.Context, auction *models.Auction) error
}

// LogDispatcher is the development dispatcher: it records the notification
// on the operator console and reports it as sent.
type LogDispatcher struct{}

func (LogDispatcher) NotifyWinner(_ context.Context, auction *models.Auction, winnerUserID string) error {
	slog.Info("[WINNER] VIP call slot won",
		slog.String("auction_id", auction.ID),
		slog.String("winner_id", winnerUserID),
		slog.Int64("final_amount", derefAmount(auction.CurrentBidAmount)))
	return nil
}

func (LogDispatcher) NotifyAdmin(_ context.Context, auction *models.Auction) error {
	slog.Info("[ADMIN] Auction settled",
		slog.String("auction_id", auction.ID),
		slog.String("title", auction.Title),
		slog.Int64("final_amount", derefAmount(auction.CurrentBidAmount)))
	return nil
}

// WebhookDispatcher posts settlement events as JSON to the configured URLs.
type WebhookDispatcher struct {
	client    *http.Client
	winnerURL string
	adminURL  string
}

func NewWebhookDispatcher(winnerURL, adminURL string) *WebhookDispatcher {
	return &WebhookDispatcher{
		client:    &http.Client{Timeout: 10 * time.Second},
		winnerURL: winnerURL,
		adminURL:  adminURL,
	}
}

type webhookEvent struct {
	Event        string     `json:"event"`
	AuctionID    string     `json:"auctionId"`
	Title        string     `json:"title"`
	WinnerID     string     `json:"winnerId,omitempty"`
	FinalAmount  int64      `json:"finalAmount"`
	CallStartsAt time.Time  `json:"callStartsAt"`
	SettledAt    *time.Time `json:"settledAt,omitempty"`
	JoinURL      string     `json:"joinUrl,omitempty"`
}

func (d *WebhookDispatcher) NotifyWinner(ctx context.Context, auction *models.Auction, winnerUserID string) error {
	event := webhookEvent{
		Event:        "auction.won",
		AuctionID:    auction.ID,
		Title:        auction.Title,
		WinnerID:     winnerUserID,
		FinalAmount:  derefAmount(auction.CurrentBidAmount),
		CallStartsAt: auction.CallStartsAt,
		SettledAt:    auction.SettledAt,
	}
	if auction.MeetingJoinURL != nil {
		event.JoinURL = *auction.MeetingJoinURL
	}
	return d.post(ctx, d.winnerURL, event)
}

func (d *WebhookDispatcher) NotifyAdmin(ctx context.Context, auction *models.Auction) error {
	event := webhookEvent{
		Event:        "auction.settled",
		AuctionID:    auction.ID,
		Title:        auction.Title,
		FinalAmount:  derefAmount(auction.CurrentBidAmount),
		CallStartsAt: auction.CallStartsAt,
		SettledAt:    auction.SettledAt,
	}
	if auction.WinnerUserID != nil {
		event.WinnerID = *auction.WinnerUserID
	}
	return d.post(ctx, d.adminURL, event)
}

func (d *WebhookDispatcher) post(ctx context.Context, url string, event webhookEvent) error {
	if url == "" {
		return fmt.Errorf("webhook url not configured")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook dispatch returned %d", resp.StatusCode)
	}
	return nil
}

func derefAmount(amount *int64) int64 {
	if amount == nil {
		return 0
	}
	return *amount
}
