package auction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyemembers/vipauction/internal/database/models"
)

type countingSettingsRepo struct {
	stored *models.AuctionSettings
	gets   int
	fail   bool
}

func (r *countingSettingsRepo) Get(context.Context) (*models.AuctionSettings, error) {
	r.gets++
	if r.fail {
		return nil, fmt.Errorf("settings store unavailable")
	}
	return r.stored, nil
}

func (r *countingSettingsRepo) Upsert(_ context.Context, settings *models.AuctionSettings) error {
	if r.fail {
		return fmt.Errorf("settings store unavailable")
	}
	r.stored = settings
	return nil
}

func TestSettingsProviderCachesWithinTTL(t *testing.T) {
	repo := &countingSettingsRepo{stored: &models.AuctionSettings{
		ID:           models.SettingsID,
		MaxBidAmount: 50_000,
	}}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	provider := NewSettingsProvider(repo, time.Minute, func() time.Time { return now })

	first := provider.Current(context.Background())
	assert.Equal(t, int64(50_000), first.MaxBidAmount)
	assert.Equal(t, 1, repo.gets)

	now = now.Add(30 * time.Second)
	provider.Current(context.Background())
	assert.Equal(t, 1, repo.gets, "second read inside the TTL hits the cache")

	now = now.Add(31 * time.Second)
	provider.Current(context.Background())
	assert.Equal(t, 2, repo.gets, "expired entry forces a reload")
}

func TestSettingsProviderFallsBackOnStoreFailure(t *testing.T) {
	repo := &countingSettingsRepo{stored: &models.AuctionSettings{
		ID:           models.SettingsID,
		MaxBidAmount: 50_000,
	}}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	provider := NewSettingsProvider(repo, time.Minute, func() time.Time { return now })

	provider.Current(context.Background())

	repo.fail = true
	now = now.Add(2 * time.Minute)
	stale := provider.Current(context.Background())
	assert.Equal(t, int64(50_000), stale.MaxBidAmount, "stale cache beats no data")
}

func TestSettingsProviderDefaultsWhenNothingStored(t *testing.T) {
	repo := &countingSettingsRepo{}
	provider := NewSettingsProvider(repo, time.Minute,
		func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) })

	s := provider.Current(context.Background())
	assert.Equal(t, int64(DefaultMaxBidAmount), s.MaxBidAmount)
	assert.Equal(t, DefaultBoardRecentBids, s.BoardRecentBids)
	assert.Equal(t, DefaultBoardTopBidders, s.BoardTopBidders)
}

func TestSettingsProviderUpdateInvalidatesCache(t *testing.T) {
	repo := &countingSettingsRepo{stored: &models.AuctionSettings{
		ID:           models.SettingsID,
		MaxBidAmount: 50_000,
	}}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	provider := NewSettingsProvider(repo, time.Hour, func() time.Time { return now })

	provider.Current(context.Background())

	updated, err := provider.Update(context.Background(), &models.AuctionSettings{
		MaxBidAmount: 75_000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(75_000), updated.MaxBidAmount)

	current := provider.Current(context.Background())
	assert.Equal(t, int64(75_000), current.MaxBidAmount,
		"cache must not serve the pre-update value")
}
