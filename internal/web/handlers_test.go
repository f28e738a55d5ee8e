package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyemembers/vipauction/internal/auction"
	"github.com/hyemembers/vipauction/internal/config"
	"github.com/hyemembers/vipauction/internal/database/memory"
	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/hyemembers/vipauction/internal/timeutil"
)

const testAdminToken = "test-admin-token"

type serverFixture struct {
	server *Server
	store  *memory.Store
	now    time.Time
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	fx := &serverFixture{
		store: memory.NewStore(),
		now:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	clock := timeutil.Clock(func() time.Time { return fx.now })
	settings := auction.NewSettingsProvider(fx.store.Settings(), time.Minute, clock)
	manager := auction.NewManager(fx.store.Auctions(), fx.store.Bids(), settings, auction.LogDispatcher{}, clock)
	fx.server = NewServer(config.HTTPConfig{Addr: ":0", AdminToken: testAdminToken}, manager)
	return fx
}

func (fx *serverFixture) addLiveAuction(t *testing.T, id string) *models.Auction {
	t.Helper()

	a := &models.Auction{
		ID:                id,
		Title:             "Evening VIP call",
		CallStartsAt:      fx.now.Add(2 * time.Hour),
		DurationMinutes:   30,
		BiddingStartsAt:   fx.now.Add(-time.Hour),
		BiddingEndsAt:     fx.now.Add(time.Hour),
		StartingBidAmount: 1000,
		MinIncrement:      100,
		Status:            models.AuctionStatusLive,
	}
	require.NoError(t, fx.store.Auctions().Insert(context.Background(), a))
	return a
}

func (fx *serverFixture) request(t *testing.T, method, target string, body any, header map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := fx.server.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func adminHeader() map[string]string {
	return map[string]string{fiberAuthHeader: "Bearer " + testAdminToken}
}

const fiberAuthHeader = "Authorization"

func TestHealthEndpoint(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.request(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBoardEndpoint(t *testing.T) {
	fx := newServerFixture(t)
	fx.addLiveAuction(t, "AUBOARD01")

	resp := fx.request(t, http.MethodGet, "/api/board", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var board auction.Board
	decodeBody(t, resp, &board)
	require.Len(t, board.Live, 1)
	assert.Equal(t, "AUBOARD01", board.Live[0].ID)
	assert.Equal(t, int64(1000), board.Live[0].MinimumNextBid)
}

func TestPlaceBidEndpoint(t *testing.T) {
	fx := newServerFixture(t)
	fx.addLiveAuction(t, "AUBID0001")

	memberHeader := map[string]string{"X-Member-ID": "9177700012"}

	resp := fx.request(t, http.MethodPost, "/api/auctions/AUBID0001/bids",
		placeBidRequest{Amount: 1000, IdempotencyKey: "k1"}, memberHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ok placeBidResponse
	decodeBody(t, resp, &ok)
	assert.Equal(t, "bid accepted", ok.Message)
	assert.False(t, ok.AlreadyProcessed)
	require.NotNil(t, ok.Board)
	require.Len(t, ok.Board.Live, 1)

	// Identical retry replays instead of double-applying.
	resp = fx.request(t, http.MethodPost, "/api/auctions/AUBID0001/bids",
		placeBidRequest{Amount: 1000, IdempotencyKey: "k1"}, memberHeader)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &ok)
	assert.True(t, ok.AlreadyProcessed)
}

func TestPlaceBidEndpointErrors(t *testing.T) {
	fx := newServerFixture(t)
	fx.addLiveAuction(t, "AUBID0002")
	memberHeader := map[string]string{"X-Member-ID": "9177700012"}

	t.Run("no member identity", func(t *testing.T) {
		resp := fx.request(t, http.MethodPost, "/api/auctions/AUBID0002/bids",
			placeBidRequest{Amount: 1000}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("too low carries minimum", func(t *testing.T) {
		resp := fx.request(t, http.MethodPost, "/api/auctions/AUBID0002/bids",
			placeBidRequest{Amount: 999}, memberHeader)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var body bidErrorResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, auction.CodeBidTooLow, body.Code)
		require.NotNil(t, body.MinRequired)
		assert.Equal(t, int64(1000), *body.MinRequired)
	})

	t.Run("unknown auction", func(t *testing.T) {
		resp := fx.request(t, http.MethodPost, "/api/auctions/AUMISSING/bids",
			placeBidRequest{Amount: 1000}, memberHeader)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAdminAuth(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.request(t, http.MethodGet, "/api/admin/auctions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.request(t, http.MethodGet, "/api/admin/auctions", nil,
		map[string]string{fiberAuthHeader: "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = fx.request(t, http.MethodGet, "/api/admin/auctions", nil, adminHeader())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminCreateAndConflict(t *testing.T) {
	fx := newServerFixture(t)

	callStart := fx.now.Add(24 * time.Hour)
	body := auctionRequest{
		Title:             "Morning VIP call",
		CallStartsAt:      callStart,
		DurationMinutes:   30,
		BiddingStartsAt:   fx.now,
		BiddingEndsAt:     callStart,
		StartingBidAmount: 1000,
		MinIncrement:      100,
	}

	resp := fx.request(t, http.MethodPost, "/api/admin/auctions", body, adminHeader())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Auction
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.AuctionStatusScheduled, created.Status)

	overlap := body
	overlap.Title = "Competing call"
	overlap.CallStartsAt = callStart.Add(10 * time.Minute)
	overlap.BiddingEndsAt = overlap.CallStartsAt

	resp = fx.request(t, http.MethodPost, "/api/admin/auctions", overlap, adminHeader())
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	assert.Equal(t, "SCHEDULE_OVERLAP", errBody["code"])
	assert.Contains(t, errBody["message"], "Morning VIP call")
}

func TestAdminValidationError(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.request(t, http.MethodPost, "/api/admin/auctions",
		auctionRequest{Title: ""}, adminHeader())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
}

func TestAdminCancelAndSettle(t *testing.T) {
	fx := newServerFixture(t)
	a := fx.addLiveAuction(t, "AUADMIN01")

	resp := fx.request(t, http.MethodPost,
		fmt.Sprintf("/api/auctions/%s/bids", a.ID),
		placeBidRequest{Amount: 1500}, map[string]string{"X-Member-ID": "9177700012"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Bidding still open: manual settle is refused.
	resp = fx.request(t, http.MethodPost, "/api/admin/auctions/AUADMIN01/settle", nil, adminHeader())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	fx.now = a.BiddingEndsAt.Add(time.Minute)
	resp = fx.request(t, http.MethodPost, "/api/admin/auctions/AUADMIN01/settle", nil, adminHeader())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var settled models.Auction
	decodeBody(t, resp, &settled)
	assert.Equal(t, models.AuctionStatusSettled, settled.Status)

	// Settled auctions cannot be cancelled afterwards.
	resp = fx.request(t, http.MethodPost, "/api/admin/auctions/AUADMIN01/cancel",
		cancelRequest{Reason: "too late"}, adminHeader())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	fx := newServerFixture(t)

	resp := fx.request(t, http.MethodGet, "/api/admin/settings", nil, adminHeader())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var defaults auction.Settings
	decodeBody(t, resp, &defaults)
	assert.Equal(t, int64(auction.DefaultMaxBidAmount), defaults.MaxBidAmount)

	resp = fx.request(t, http.MethodPut, "/api/admin/settings",
		models.AuctionSettings{MaxBidAmount: 42_000}, adminHeader())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated auction.Settings
	decodeBody(t, resp, &updated)
	assert.Equal(t, int64(42_000), updated.MaxBidAmount)
}
