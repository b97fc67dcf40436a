package interfaces

import (
	"context"

	"gorefer/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)

	// EnsureExists upserts the trimmed profile slice the engine owns.
	EnsureExists(ctx context.Context, id primitive.ObjectID, username string) (*models.User, error)

	// Multiplier overrides (admin surface). A nil value clears the override.
	SetMultiplierOverride(ctx context.Context, id primitive.ObjectID, ggg, rp *float64) error
}
