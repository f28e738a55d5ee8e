package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Config struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

const (
	auctionsCollection = "auctions"
	bidsCollection     = "bids"
	settingsCollection = "auction_settings"
)

// Connect opens the Mongo client, pings it, and ensures the indexes the
// engine relies on exist.
func Connect(ctx context.Context, cfg Config) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("mongodb unreachable: %w", err)
	}

	db := client.Database(cfg.Database)
	if err := ensureIndexes(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(auctionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "biddingEndsAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create auction status index: %w", err)
	}

	partial := options.Index().
		SetUnique(true).
		SetPartialFilterExpression(bson.M{"idempotencyKey": bson.M{"$exists": true}})
	_, err = db.Collection(bidsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "auctionId", Value: 1}, {Key: "userId", Value: 1}, {Key: "idempotencyKey", Value: 1}},
		Options: partial,
	})
	if err != nil {
		return fmt.Errorf("failed to create bid idempotency index: %w", err)
	}

	_, err = db.Collection(bidsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "auctionId", Value: 1}, {Key: "placedAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create bid lookup index: %w", err)
	}

	return nil
}
