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

type bidRepository struct {
	coll *mongo.Collection
}

func NewBidRepository(db *mongo.Database) repositories.BidRepository {
	return &bidRepository{coll: db.Collection(bidsCollection)}
}

func (r *bidRepository) Insert(ctx context.Context, bid *models.Bid) error {
	bid.CreatedAt = time.Now().UTC()
	if bid.Currency == "" {
		bid.Currency = models.DefaultCurrency
	}

	if _, err := r.coll.InsertOne(ctx, bid); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repositories.ErrDuplicateBid
		}
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func (r *bidRepository) GetByIdempotencyKey(ctx context.Context, auctionID, userID, key string) (*models.Bid, error) {
	bid := new(models.Bid)
	err := r.coll.FindOne(ctx, bson.M{
		"auctionId":      auctionID,
		"userId":         userID,
		"idempotencyKey": key,
	}).Decode(bid)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bid by idempotency key: %w", err)
	}
	return bid, nil
}

func (r *bidRepository) RecentByAuction(ctx context.Context, auctionIDs []string, limit int) (map[string][]*models.Bid, error) {
	out := make(map[string][]*models.Bid, len(auctionIDs))
	opts := options.Find().
		SetSort(bson.D{{Key: "placedAt", Value: -1}}).
		SetLimit(int64(limit))

	for _, id := range auctionIDs {
		cursor, err := r.coll.Find(ctx, bson.M{"auctionId": id}, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent bids: %w", err)
		}

		var bids []*models.Bid
		if err := cursor.All(ctx, &bids); err != nil {
			return nil, fmt.Errorf("failed to decode recent bids: %w", err)
		}
		out[id] = bids
	}
	return out, nil
}

func (r *bidRepository) TopBiddersByAuction(ctx context.Context, auctionIDs []string, topN int) (map[string][]models.TopBidder, error) {
	out := make(map[string][]models.TopBidder, len(auctionIDs))
	for _, id := range auctionIDs {
		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"auctionId": id}}},
			{{Key: "$group", Value: bson.M{
				"_id":      "$userId",
				"maxBid":   bson.M{"$max": "$amount"},
				"bidCount": bson.M{"$sum": 1},
			}}},
			{{Key: "$sort", Value: bson.M{"maxBid": -1}}},
			{{Key: "$limit", Value: topN}},
		}

		cursor, err := r.coll.Aggregate(ctx, pipeline)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate top bidders: %w", err)
		}

		var top []models.TopBidder
		if err := cursor.All(ctx, &top); err != nil {
			return nil, fmt.Errorf("failed to decode top bidders: %w", err)
		}
		out[id] = top
	}
	return out, nil
}

func (r *bidRepository) MaxBidByMember(ctx context.Context, auctionIDs []string, userID string) (map[string]int64, error) {
	if len(auctionIDs) == 0 {
		return map[string]int64{}, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"auctionId": bson.M{"$in": auctionIDs},
			"userId":    userID,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$auctionId",
			"maxBid": bson.M{"$max": "$amount"},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate member max bids: %w", err)
	}

	var rows []struct {
		AuctionID string `bson:"_id"`
		MaxBid    int64  `bson:"maxBid"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode member max bids: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.AuctionID] = row.MaxBid
	}
	return out, nil
}
