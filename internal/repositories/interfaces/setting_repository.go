package interfaces

import (
	"context"

	"gorefer/internal/models"
)

type SettingRepository interface {
	// Get returns the singleton rule document, or (nil, nil) when none has
	// been written yet.
	Get(ctx context.Context) (*models.AffiliateSetting, error)

	// Upsert writes the singleton rule document (admin surface only).
	Upsert(ctx context.Context, setting *models.AffiliateSetting) error
}
