package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/uptrace/bun"
)

// SettingsRepository reads and writes the single operator settings document.
type SettingsRepository interface {
	// Get returns (nil, nil) when no settings document has been written yet.
	Get(ctx context.Context) (*models.AuctionSettings, error)
	Upsert(ctx context.Context, settings *models.AuctionSettings) error
}

type settingsRepository struct {
	db *bun.DB
}

func NewSettingsRepository(db *bun.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context) (*models.AuctionSettings, error) {
	settings := new(models.AuctionSettings)
	err := r.db.NewSelect().
		Model(settings).
		Where("id = ?", models.SettingsID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auction settings: %w", err)
	}
	return settings, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, settings *models.AuctionSettings) error {
	settings.ID = models.SettingsID
	settings.UpdatedAt = time.Now().UTC()

	_, err := r.db.NewInsert().
		Model(settings).
		On("CONFLICT (id) DO UPDATE").
		Set("max_bid_amount = EXCLUDED.max_bid_amount").
		Set("default_anti_snipe_enabled = EXCLUDED.default_anti_snipe_enabled").
		Set("default_anti_snipe_window_seconds = EXCLUDED.default_anti_snipe_window_seconds").
		Set("default_anti_snipe_extend_seconds = EXCLUDED.default_anti_snipe_extend_seconds").
		Set("default_anti_snipe_max_extensions = EXCLUDED.default_anti_snipe_max_extensions").
		Set("board_recent_bids = EXCLUDED.board_recent_bids").
		Set("board_top_bidders = EXCLUDED.board_top_bidders").
		Set("meeting_join_url_template = EXCLUDED.meeting_join_url_template").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to upsert auction settings: %w", err)
	}
	return nil
}
