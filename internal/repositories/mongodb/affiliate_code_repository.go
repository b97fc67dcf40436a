package mongodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type affiliateCodeRepository struct {
	collection *mongo.Collection
}

func NewAffiliateCodeRepository(db *mongo.Database) interfaces.AffiliateCodeRepository {
	return &affiliateCodeRepository{
		collection: db.Collection("affiliate_codes"),
	}
}

// Basic CRUD operations
func (r *affiliateCodeRepository) Create(ctx context.Context, code *models.AffiliateCode) error {
	code.ID = primitive.NewObjectID()
	code.CreatedAt = time.Now()
	code.UpdatedAt = time.Now()

	// Codes are stored uppercase; lookups normalize the same way.
	code.Code = strings.ToUpper(code.Code)

	if code.Status == "" {
		code.Status = models.CodeStatusActive
	}

	_, err := r.collection.InsertOne(ctx, code)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: code %s", interfaces.ErrDuplicate, code.Code)
		}
		return fmt.Errorf("failed to create affiliate code: %w", err)
	}

	return nil
}

func (r *affiliateCodeRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AffiliateCode, error) {
	var code models.AffiliateCode
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&code)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get affiliate code: %w", err)
	}

	return &code, nil
}

func (r *affiliateCodeRepository) GetByCode(ctx context.Context, code string) (*models.AffiliateCode, error) {
	var result models.AffiliateCode
	err := r.collection.FindOne(ctx, bson.M{"code": strings.ToUpper(code)}).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get affiliate code by code: %w", err)
	}

	return &result, nil
}

func (r *affiliateCodeRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update affiliate code: %w", err)
	}

	return nil
}

// Ownership queries
func (r *affiliateCodeRepository) GetByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.AffiliateCode, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to find codes for user: %w", err)
	}
	defer cursor.Close(ctx)

	var codes []*models.AffiliateCode
	for cursor.Next(ctx) {
		var code models.AffiliateCode
		if err := cursor.Decode(&code); err != nil {
			return nil, fmt.Errorf("failed to decode affiliate code: %w", err)
		}
		codes = append(codes, &code)
	}

	return codes, nil
}

func (r *affiliateCodeRepository) GetPrimaryByUser(ctx context.Context, userID primitive.ObjectID) (*models.AffiliateCode, error) {
	filter := bson.M{
		"user_id": userID,
		"$or": []bson.M{
			{"campaign_name": ""},
			{"campaign_name": bson.M{"$exists": false}},
		},
	}

	var code models.AffiliateCode
	err := r.collection.FindOne(ctx, filter).Decode(&code)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get primary code: %w", err)
	}

	return &code, nil
}

// Counter maintenance
func (r *affiliateCodeRepository) IncrementCounters(ctx context.Context, id primitive.ObjectID, counters map[string]interface{}) error {
	if id.IsZero() || len(counters) == 0 {
		return nil
	}

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": counters,
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to increment code counters: %w", err)
	}

	return nil
}

// Status operations
func (r *affiliateCodeRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.CodeStatus) error {
	return r.Update(ctx, id, map[string]interface{}{"status": status})
}

// Listings
func (r *affiliateCodeRepository) List(ctx context.Context, params *utils.PaginationParams) ([]*models.AffiliateCode, int64, error) {
	filter := bson.M{}
	if params.Search != "" {
		filter = params.GetSearchFilter([]string{"code", "campaign_name"})
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count affiliate codes: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find affiliate codes: %w", err)
	}
	defer cursor.Close(ctx)

	var codes []*models.AffiliateCode
	for cursor.Next(ctx) {
		var code models.AffiliateCode
		if err := cursor.Decode(&code); err != nil {
			return nil, 0, fmt.Errorf("failed to decode affiliate code: %w", err)
		}
		codes = append(codes, &code)
	}

	return codes, total, nil
}
