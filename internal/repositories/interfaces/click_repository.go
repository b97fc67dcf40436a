package interfaces

import (
	"context"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/utils"
)

type ClickRepository interface {
	Create(ctx context.Context, click *models.Click) error

	// GetLatestByCode returns the most recent click for the code strictly
	// before the given time, or nil when the code has never been clicked.
	GetLatestByCode(ctx context.Context, code string, before time.Time) (*models.Click, error)

	CountByCode(ctx context.Context, code string) (int64, error)
	ListByCode(ctx context.Context, code string, params *utils.PaginationParams) ([]*models.Click, int64, error)
}
