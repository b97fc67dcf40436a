package interfaces

import (
	"context"

	"gorefer/internal/models"
	"gorefer/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AffiliateCodeRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, code *models.AffiliateCode) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.AffiliateCode, error)
	GetByCode(ctx context.Context, code string) (*models.AffiliateCode, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// Ownership queries
	GetByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.AffiliateCode, error)
	GetPrimaryByUser(ctx context.Context, userID primitive.ObjectID) (*models.AffiliateCode, error)

	// Counter maintenance (engine-owned, atomic increments)
	IncrementCounters(ctx context.Context, id primitive.ObjectID, counters map[string]interface{}) error

	// Status operations
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.CodeStatus) error

	// Listings
	List(ctx context.Context, params *utils.PaginationParams) ([]*models.AffiliateCode, int64, error)
}
