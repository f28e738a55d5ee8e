package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/hyemembers/vipauction/internal/database/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type settingsRepository struct {
	coll *mongo.Collection
}

func NewSettingsRepository(db *mongo.Database) repositories.SettingsRepository {
	return &settingsRepository{coll: db.Collection(settingsCollection)}
}

func (r *settingsRepository) Get(ctx context.Context) (*models.AuctionSettings, error) {
	settings := new(models.AuctionSettings)
	err := r.coll.FindOne(ctx, bson.M{"_id": models.SettingsID}).Decode(settings)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auction settings: %w", err)
	}
	return settings, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, settings *models.AuctionSettings) error {
	settings.ID = models.SettingsID
	settings.UpdatedAt = time.Now().UTC()

	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"_id": models.SettingsID},
		settings,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert auction settings: %w", err)
	}
	return nil
}
