package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/hyemembers/vipauction/internal/database/repositories"
	"github.com/hyemembers/vipauction/internal/timeutil"
)

// Hard defaults used when the operator settings document is missing or a
// field is unset.
const (
	DefaultMaxBidAmount      = 10_000_000 // ₹1 crore sanity ceiling
	DefaultAntiSnipeWindow   = 120
	DefaultAntiSnipeExtend   = 120
	DefaultAntiSnipeMaxTimes = 3
	DefaultBoardRecentBids   = 5
	DefaultBoardTopBidders   = 3
)

// Settings is the resolved, always-complete view of the operator knobs.
type Settings struct {
	MaxBidAmount int64

	DefaultAntiSnipeEnabled       bool
	DefaultAntiSnipeWindowSeconds int
	DefaultAntiSnipeExtendSeconds int
	DefaultAntiSnipeMaxExtensions int

	BoardRecentBids int
	BoardTopBidders int

	MeetingJoinURLTemplate string
}

type cachedSettings struct {
	settings Settings
	loadedAt time.Time
}

// SettingsProvider resolves Settings through a TTL cache over the store.
// It is injected state, not a package global, so tests can pin both the
// repository and the clock.
type SettingsProvider struct {
	repo  repositories.SettingsRepository
	cache *lru.Cache
	ttl   time.Duration
	clock timeutil.Clock
}

func NewSettingsProvider(repo repositories.SettingsRepository, ttl time.Duration, clock timeutil.Clock) *SettingsProvider {
	cache, _ := lru.New(4)
	return &SettingsProvider{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		clock: clock,
	}
}

// Current returns the effective settings, reloading from the store when the
// cached copy is older than the TTL. A store failure falls back to the last
// cached value, or the compiled defaults when nothing was ever loaded.
func (p *SettingsProvider) Current(ctx context.Context) Settings {
	now := p.clock()

	if v, ok := p.cache.Get(models.SettingsID); ok {
		entry := v.(cachedSettings)
		if now.Sub(entry.loadedAt) < p.ttl {
			return entry.settings
		}
	}

	stored, err := p.repo.Get(ctx)
	if err != nil {
		slog.Warn("Failed to load auction settings, using cached/default values",
			slog.String("error", err.Error()))
		if v, ok := p.cache.Get(models.SettingsID); ok {
			return v.(cachedSettings).settings
		}
		return resolveSettings(nil)
	}

	settings := resolveSettings(stored)
	p.cache.Add(models.SettingsID, cachedSettings{settings: settings, loadedAt: now})
	return settings
}

// Update persists new operator settings and drops the cached copy so the
// next read sees them immediately instead of after a TTL expiry.
func (p *SettingsProvider) Update(ctx context.Context, settings *models.AuctionSettings) (Settings, error) {
	settings.ID = models.SettingsID
	if err := p.repo.Upsert(ctx, settings); err != nil {
		return Settings{}, fmt.Errorf("failed to store auction settings: %w", err)
	}
	p.cache.Remove(models.SettingsID)
	return p.Current(ctx), nil
}

func resolveSettings(stored *models.AuctionSettings) Settings {
	s := Settings{
		MaxBidAmount:                  DefaultMaxBidAmount,
		DefaultAntiSnipeWindowSeconds: DefaultAntiSnipeWindow,
		DefaultAntiSnipeExtendSeconds: DefaultAntiSnipeExtend,
		DefaultAntiSnipeMaxExtensions: DefaultAntiSnipeMaxTimes,
		BoardRecentBids:               DefaultBoardRecentBids,
		BoardTopBidders:               DefaultBoardTopBidders,
	}
	if stored == nil {
		return s
	}

	if stored.MaxBidAmount > 0 {
		s.MaxBidAmount = stored.MaxBidAmount
	}
	s.DefaultAntiSnipeEnabled = stored.DefaultAntiSnipeEnabled
	if stored.DefaultAntiSnipeWindowSeconds > 0 {
		s.DefaultAntiSnipeWindowSeconds = stored.DefaultAntiSnipeWindowSeconds
	}
	if stored.DefaultAntiSnipeExtendSeconds > 0 {
		s.DefaultAntiSnipeExtendSeconds = stored.DefaultAntiSnipeExtendSeconds
	}
	if stored.DefaultAntiSnipeMaxExtensions > 0 {
		s.DefaultAntiSnipeMaxExtensions = stored.DefaultAntiSnipeMaxExtensions
	}
	if stored.BoardRecentBids > 0 {
		s.BoardRecentBids = stored.BoardRecentBids
	}
	if stored.BoardTopBidders > 0 {
		s.BoardTopBidders = stored.BoardTopBidders
	}
	s.MeetingJoinURLTemplate = stored.MeetingJoinURLTemplate
	return s
}
