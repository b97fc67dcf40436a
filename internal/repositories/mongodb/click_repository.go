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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type clickRepository struct {
	collection *mongo.Collection
}

func NewClickRepository(db *mongo.Database) interfaces.ClickRepository {
	return &clickRepository{
		collection: db.Collection("clicks"),
	}
}

func (r *clickRepository) Create(ctx context.Context, click *models.Click) error {
	click.ID = primitive.NewObjectID()
	click.CreatedAt = time.Now()
	if click.ClickedAt.IsZero() {
		click.ClickedAt = click.CreatedAt
	}

	_, err := r.collection.InsertOne(ctx, click)
	if err != nil {
		return fmt.Errorf("failed to create click: %w", err)
	}

	return nil
}

func (r *clickRepository) GetLatestByCode(ctx context.Context, code string, before time.Time) (*models.Click, error) {
	filter := bson.M{
		"code":       code,
		"clicked_at": bson.M{"$lt": before},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "clicked_at", Value: -1}})

	var click models.Click
	err := r.collection.FindOne(ctx, filter, opts).Decode(&click)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest click: %w", err)
	}

	return &click, nil
}

func (r *clickRepository) CountByCode(ctx context.Context, code string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"code": code})
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}

	return count, nil
}

func (r *clickRepository) ListByCode(ctx context.Context, code string, params *utils.PaginationParams) ([]*models.Click, int64, error) {
	filter := bson.M{"code": code}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count clicks: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find clicks: %w", err)
	}
	defer cursor.Close(ctx)

	var clicks []*models.Click
	for cursor.Next(ctx) {
		var click models.Click
		if err := cursor.Decode(&click); err != nil {
			return nil, 0, fmt.Errorf("failed to decode click: %w", err)
		}
		clicks = append(clicks, &click)
	}

	return clicks, total, nil
}
