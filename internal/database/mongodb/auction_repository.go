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

// auctionRepository is the document-store implementation of the auction
// store. The conditional update maps straight onto a single UpdateOne with
// the match baked into the filter, which is what gives it compare-and-set
// semantics without any locking.
type auctionRepository struct {
	coll *mongo.Collection
}

func NewAuctionRepository(db *mongo.Database) repositories.AuctionRepository {
	return &auctionRepository{coll: db.Collection(auctionsCollection)}
}

func (r *auctionRepository) Insert(ctx context.Context, auction *models.Auction) error {
	now := time.Now().UTC()
	auction.CreatedAt = now
	auction.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, auction); err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

func (r *auctionRepository) GetByID(ctx context.Context, id string) (*models.Auction, error) {
	auction := new(models.Auction)
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(auction)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

func (r *auctionRepository) ListByStatus(ctx context.Context, statuses []models.AuctionStatus, limit int) ([]*models.Auction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "biddingEndsAt", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll.Find(ctx, bson.M{"status": bson.M{"$in": statuses}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions by status: %w", err)
	}
	defer cursor.Close(ctx)

	var auctions []*models.Auction
	if err := cursor.All(ctx, &auctions); err != nil {
		return nil, fmt.Errorf("failed to decode auctions: %w", err)
	}
	return auctions, nil
}

func (r *auctionRepository) ConditionalUpdate(ctx context.Context, id string, match repositories.AuctionMatch, patch repositories.AuctionPatch) (bool, error) {
	filter := bson.M{"_id": id}
	if match.Revision != nil {
		filter["revision"] = *match.Revision
	}
	if match.Status != nil {
		filter["status"] = *match.Status
	}
	if match.HasLeadingBid != nil {
		if *match.HasLeadingBid {
			filter["leadingBidUserId"] = bson.M{"$type": "string"}
		} else {
			filter["leadingBidUserId"] = bson.M{"$not": bson.M{"$type": "string"}}
		}
	}
	if match.BiddingOpenAt != nil {
		filter["biddingStartsAt"] = bson.M{"$lte": *match.BiddingOpenAt}
		filter["biddingEndsAt"] = bson.M{"$gt": *match.BiddingOpenAt}
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	inc := bson.M{"revision": int64(1)}

	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.CurrentBidAmount != nil {
		set["currentBidAmount"] = *patch.CurrentBidAmount
	}
	if patch.LeadingBidUserID != nil {
		set["leadingBidUserId"] = *patch.LeadingBidUserID
	}
	if patch.LeadingBidID != nil {
		set["leadingBidId"] = *patch.LeadingBidID
	}
	if patch.LastBidAt != nil {
		set["lastBidAt"] = *patch.LastBidAt
	}
	if patch.BiddingEndsAt != nil {
		set["biddingEndsAt"] = *patch.BiddingEndsAt
	}
	if patch.IncrementBidCount {
		inc["bidCount"] = 1
	}
	if patch.IncrementExtensionCount {
		inc["extensionCount"] = 1
	}
	if patch.SettledAt != nil {
		set["settledAt"] = *patch.SettledAt
	}
	if patch.BookingConfirmedAt != nil {
		set["bookingConfirmedAt"] = *patch.BookingConfirmedAt
	}
	if patch.WinnerUserID != nil {
		set["winnerUserId"] = *patch.WinnerUserID
	}
	if patch.WinnerBidID != nil {
		set["winnerBidId"] = *patch.WinnerBidID
	}
	if patch.WinnerNotifiedAt != nil {
		set["winnerNotifiedAt"] = *patch.WinnerNotifiedAt
	}
	if patch.AdminNotifiedAt != nil {
		set["adminNotifiedAt"] = *patch.AdminNotifiedAt
	}
	if patch.MeetingJoinURL != nil {
		set["meetingJoinUrl"] = *patch.MeetingJoinURL
	}
	if patch.CancelledReason != nil {
		set["cancelledReason"] = *patch.CancelledReason
	}

	result, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set, "$inc": inc})
	if err != nil {
		return false, fmt.Errorf("failed to conditionally update auction: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *auctionRepository) Replace(ctx context.Context, auction *models.Auction, expectedRevision int64) (bool, error) {
	auction.Revision = expectedRevision + 1
	auction.UpdatedAt = time.Now().UTC()

	result, err := r.coll.ReplaceOne(ctx,
		bson.M{"_id": auction.ID, "revision": expectedRevision},
		auction)
	if err != nil {
		auction.Revision = expectedRevision
		return false, fmt.Errorf("failed to replace auction: %w", err)
	}
	if result.ModifiedCount == 0 {
		auction.Revision = expectedRevision
		return false, nil
	}
	return true, nil
}
