package mongodb

import (
	"context"
	"fmt"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) interfaces.UserRepository {
	return &userRepository{
		collection: db.Collection("users"),
	}
}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) EnsureExists(ctx context.Context, id primitive.ObjectID, username string) (*models.User, error) {
	now := time.Now()

	setOnInsert := bson.M{
		"user_type":  models.UserTypeUser,
		"created_at": now,
	}
	if username != "" {
		setOnInsert["username"] = username
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user models.User
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{
			"$setOnInsert": setOnInsert,
			"$set":         bson.M{"updated_at": now},
		},
		opts,
	).Decode(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) SetMultiplierOverride(ctx context.Context, id primitive.ObjectID, ggg, rp *float64) error {
	set := bson.M{"updated_at": time.Now()}
	unset := bson.M{}

	if ggg != nil {
		set["ggg_multiplier_override"] = *ggg
	} else {
		unset["ggg_multiplier_override"] = ""
	}
	if rp != nil {
		set["rp_multiplier_override"] = *rp
	} else {
		unset["rp_multiplier_override"] = ""
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to set multiplier override: %w", err)
	}

	return nil
}
