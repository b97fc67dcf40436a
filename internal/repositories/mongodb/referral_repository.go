package mongodb

import (
	"context"
	"fmt"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type referralRepository struct {
	collection *mongo.Collection
}

func NewReferralRepository(db *mongo.Database) interfaces.ReferralRepository {
	return &referralRepository{
		collection: db.Collection("referrals"),
	}
}

// Basic CRUD operations
func (r *referralRepository) Create(ctx context.Context, referral *models.Referral) error {
	referral.ID = primitive.NewObjectID()
	if referral.CreatedAt.IsZero() {
		referral.CreatedAt = time.Now()
	}
	referral.UpdatedAt = time.Now()

	if referral.Status == "" {
		referral.Status = models.ReferralStatusPending
	}

	_, err := r.collection.InsertOne(ctx, referral)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: referral pair", interfaces.ErrDuplicate)
		}
		return fmt.Errorf("failed to create referral: %w", err)
	}

	return nil
}

func (r *referralRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Referral, error) {
	var referral models.Referral
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&referral)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}

	return &referral, nil
}

func (r *referralRepository) GetByPair(ctx context.Context, affiliateID, referredID primitive.ObjectID) (*models.Referral, error) {
	filter := bson.M{
		"affiliate_id": affiliateID,
		"referred_id":  referredID,
	}

	var referral models.Referral
	err := r.collection.FindOne(ctx, filter).Decode(&referral)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get referral by pair: %w", err)
	}

	return &referral, nil
}

// Status transitions. The status filter makes every transition a conditional
// update: a write that lost its race matches nothing and reports false.
func (r *referralRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, fromStatuses []models.ReferralStatus, to models.ReferralStatus, extra map[string]interface{}) (bool, error) {
	updates := bson.M{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":    id,
			"status": bson.M{"$in": fromStatuses},
		},
		bson.M{"$set": updates},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update referral status: %w", err)
	}

	return result.MatchedCount > 0, nil
}

func (r *referralRepository) ApplyEarning(ctx context.Context, id primitive.ObjectID, fromStatuses []models.ReferralStatus, to models.ReferralStatus, eventID string, grossAmount, commission float64) (bool, error) {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id":           id,
			"status":        bson.M{"$in": fromStatuses},
			"last_event_id": bson.M{"$ne": eventID},
		},
		bson.M{
			"$inc": bson.M{
				"total_referred_earning": grossAmount,
				"total_commission":       commission,
			},
			"$set": bson.M{
				"status":                to,
				"last_event_id":         eventID,
				"last_event_commission": commission,
				"updated_at":            time.Now(),
			},
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to apply earning: %w", err)
	}

	return result.MatchedCount > 0, nil
}

func (r *referralRepository) MarkSignupBonusPaid(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return r.markFlag(ctx, id, "signup_bonus_paid")
}

func (r *referralRepository) MarkTierRewardPaid(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return r.markFlag(ctx, id, "tier_reward_paid")
}

func (r *referralRepository) markFlag(ctx context.Context, id primitive.ObjectID, field string) (bool, error) {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"_id": id,
			field: bson.M{"$ne": true},
		},
		bson.M{"$set": bson.M{
			field:        true,
			"updated_at": time.Now(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to set %s: %w", field, err)
	}

	return result.MatchedCount > 0, nil
}

// Counting
func (r *referralRepository) CountByAffiliateAndStatus(ctx context.Context, affiliateID primitive.ObjectID, statuses []models.ReferralStatus) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"affiliate_id": affiliateID,
		"status":       bson.M{"$in": statuses},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}

	return count, nil
}

// Listings
func (r *referralRepository) ListByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Referral, int64, error) {
	filter := bson.M{"affiliate_id": affiliateID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count referrals: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find referrals: %w", err)
	}
	defer cursor.Close(ctx)

	var referrals []*models.Referral
	for cursor.Next(ctx) {
		var referral models.Referral
		if err := cursor.Decode(&referral); err != nil {
			return nil, 0, fmt.Errorf("failed to decode referral: %w", err)
		}
		referrals = append(referrals, &referral)
	}

	return referrals, total, nil
}
