package auction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyemembers/vipauction/internal/database/models"
)

func TestDeriveStatus(t *testing.T) {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name      string
		persisted models.AuctionStatus
		now       time.Time
		want      models.AuctionStatus
	}{
		{"before window", models.AuctionStatusScheduled, start.Add(-time.Minute), models.AuctionStatusScheduled},
		{"exactly at start", models.AuctionStatusScheduled, start, models.AuctionStatusLive},
		{"inside window", models.AuctionStatusLive, start.Add(30 * time.Minute), models.AuctionStatusLive},
		{"exactly at end", models.AuctionStatusLive, end, models.AuctionStatusEnded},
		{"after window", models.AuctionStatusLive, end.Add(time.Minute), models.AuctionStatusEnded},
		{"stale scheduled inside window", models.AuctionStatusScheduled, start.Add(time.Minute), models.AuctionStatusLive},
		{"stale live before window", models.AuctionStatusLive, start.Add(-time.Minute), models.AuctionStatusScheduled},
		{"draft passes through", models.AuctionStatusDraft, start.Add(time.Minute), models.AuctionStatusDraft},
		{"cancelled passes through", models.AuctionStatusCancelled, start.Add(time.Minute), models.AuctionStatusCancelled},
		{"settled passes through", models.AuctionStatusSettled, end.Add(time.Hour), models.AuctionStatusSettled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.persisted, start, end, tt.now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSynchronizeStatusesPersistsCorrections(t *testing.T) {
	fx := newEngine(t)

	stale := fx.addAuction(t, func(a *models.Auction) {
		a.Status = models.AuctionStatusScheduled
	})
	current := fx.addAuction(t, nil)

	auctions, err := fx.store.Auctions().ListByStatus(context.Background(),
		[]models.AuctionStatus{models.AuctionStatusScheduled, models.AuctionStatusLive}, 0)
	require.NoError(t, err)
	require.Len(t, auctions, 2)

	synced := fx.manager.SynchronizeStatuses(context.Background(), auctions)
	for _, a := range synced {
		assert.Equal(t, models.AuctionStatusLive, a.Status, "auction %s", a.ID)
	}

	persisted := fx.reload(t, stale.ID)
	assert.Equal(t, models.AuctionStatusLive, persisted.Status)
	assert.Equal(t, stale.Revision+1, persisted.Revision)

	untouched := fx.reload(t, current.ID)
	assert.Equal(t, current.Revision, untouched.Revision, "no write when status already matches")
}

func TestSynchronizeStatusesDuplicateRunsAreHarmless(t *testing.T) {
	fx := newEngine(t)
	a := fx.addAuction(t, func(a *models.Auction) {
		a.Status = models.AuctionStatusScheduled
	})

	for i := 0; i < 3; i++ {
		loaded := fx.reload(t, a.ID)
		fx.manager.SynchronizeStatuses(context.Background(), []*models.Auction{loaded})
	}

	persisted := fx.reload(t, a.ID)
	assert.Equal(t, models.AuctionStatusLive, persisted.Status)
	assert.Equal(t, a.Revision+1, persisted.Revision, "only the first pass writes")
}
