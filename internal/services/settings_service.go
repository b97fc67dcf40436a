package services

import (
	"context"
	"fmt"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/internal/utils"
	"gorefer/pkg/logger"
)

// SettingsService provides the rule snapshot every resolver call works
// against. Reads are cache-backed with a short TTL; a write invalidates the
// cache so the next operation sees the fresh rules. A single logical operation
// must call Get once and thread the snapshot through, never mixing snapshots.
type SettingsService interface {
	Get(ctx context.Context) (*models.AffiliateSetting, error)
	Update(ctx context.Context, setting *models.AffiliateSetting) (*models.AffiliateSetting, error)
}

type settingsService struct {
	settingRepo interfaces.SettingRepository
	cache       CacheService
	logger      *logger.Logger
}

func NewSettingsService(settingRepo interfaces.SettingRepository, cache CacheService, log *logger.Logger) SettingsService {
	return &settingsService{
		settingRepo: settingRepo,
		cache:       cache,
		logger:      log,
	}
}

func (s *settingsService) Get(ctx context.Context) (*models.AffiliateSetting, error) {
	if s.cache != nil {
		var cached models.AffiliateSetting
		if err := s.cache.Get(ctx, utils.CacheSettingsKey, &cached); err == nil {
			return &cached, nil
		}
	}

	setting, err := s.settingRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load affiliate settings: %w", err)
	}

	// A missing document means the defaults apply; the engine never fails on
	// an unconfigured deployment.
	if setting == nil {
		setting = models.DefaultAffiliateSetting()
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, utils.CacheSettingsKey, setting, utils.SettingsCacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache affiliate settings")
		}
	}

	return setting, nil
}

func (s *settingsService) Update(ctx context.Context, setting *models.AffiliateSetting) (*models.AffiliateSetting, error) {
	if setting == nil {
		return nil, fmt.Errorf("setting is required")
	}

	setting.Key = models.AffiliateSettingKey
	setting.UpdatedAt = time.Now()

	if setting.Promotion.Multiplier <= 0 {
		setting.Promotion.Multiplier = 1
	}

	// Non-monotonic tables are persisted as-is (the resolvers still produce a
	// deterministic answer) but flagged loudly for operators.
	if err := ValidateCommissionTiers(setting.CommissionTiers); err != nil {
		s.logger.WithError(err).Warn("Affiliate settings saved with invalid commission tier table")
	}

	if err := s.settingRepo.Upsert(ctx, setting); err != nil {
		return nil, fmt.Errorf("failed to save affiliate settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, utils.CacheSettingsKey); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate settings cache")
		}
	}

	return setting, nil
}
