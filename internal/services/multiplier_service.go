package services

import (
	"context"
	"fmt"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Multipliers are the per-user scalars applied to all future GGG and RP
// accrual, not just referral commission. They are a property of the affiliate
// user, recomputed on demand rather than stored on any referral.
type Multipliers struct {
	GGG float64 `json:"ggg"`
	RP  float64 `json:"rp"`
}

// MultiplierService resolves point/currency multipliers from the global tier
// tables, with the per-user override winning when present. The override is the
// only path to a multiplier above what the tables produce.
type MultiplierService interface {
	// Resolve recomputes the user's qualifying count and resolves both
	// multipliers against one settings snapshot. Callers that already hold a
	// snapshot should use ResolveWithSetting to avoid mixing snapshots.
	Resolve(ctx context.Context, userID primitive.ObjectID) (*Multipliers, error)

	ResolveWithSetting(ctx context.Context, setting *models.AffiliateSetting, userID primitive.ObjectID) (*Multipliers, error)

	// ResolveForCount is the pure table lookup: highest satisfied threshold
	// wins; disabled table or no threshold met resolves to 1.
	ResolveForCount(setting *models.AffiliateSetting, qualifyingCount int64) Multipliers

	// SetOverride pins (or clears, with nil) the per-user multipliers. Admin
	// surface only; an override supersedes the tier-computed value.
	SetOverride(ctx context.Context, userID primitive.ObjectID, ggg, rp *float64) error
}

type multiplierService struct {
	userRepo     interfaces.UserRepository
	referralRepo interfaces.ReferralRepository
	settings     SettingsService
	logger       *logger.Logger
}

func NewMultiplierService(
	userRepo interfaces.UserRepository,
	referralRepo interfaces.ReferralRepository,
	settings SettingsService,
	log *logger.Logger,
) MultiplierService {
	return &multiplierService{
		userRepo:     userRepo,
		referralRepo: referralRepo,
		settings:     settings,
		logger:       log,
	}
}

func (s *multiplierService) Resolve(ctx context.Context, userID primitive.ObjectID) (*Multipliers, error) {
	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.ResolveWithSetting(ctx, setting, userID)
}

func (s *multiplierService) ResolveWithSetting(ctx context.Context, setting *models.AffiliateSetting, userID primitive.ObjectID) (*Multipliers, error) {
	count, err := s.referralRepo.CountByAffiliateAndStatus(ctx, userID, models.QualifyingStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to count qualifying referrals: %w", err)
	}

	resolved := s.ResolveForCount(setting, count)

	// Per-user override wins over the computed value when present.
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.WithUserID(userID).WithError(err).Warn("Failed to load user for multiplier override")
		return &resolved, nil
	}
	if user != nil {
		if user.GGGMultiplierOverride != nil {
			resolved.GGG = *user.GGGMultiplierOverride
		}
		if user.RPMultiplierOverride != nil {
			resolved.RP = *user.RPMultiplierOverride
		}
	}

	return &resolved, nil
}

func (s *multiplierService) ResolveForCount(setting *models.AffiliateSetting, qualifyingCount int64) Multipliers {
	return Multipliers{
		GGG: resolveMultiplierTable(setting.GGGMultiplierTiers, setting.GGGMultipliersEnabled, qualifyingCount),
		RP:  resolveMultiplierTable(setting.RPMultiplierTiers, setting.RPMultipliersEnabled, qualifyingCount),
	}
}

func (s *multiplierService) SetOverride(ctx context.Context, userID primitive.ObjectID, ggg, rp *float64) error {
	if ggg != nil && *ggg <= 0 {
		return fmt.Errorf("ggg multiplier override must be positive")
	}
	if rp != nil && *rp <= 0 {
		return fmt.Errorf("rp multiplier override must be positive")
	}

	if err := s.userRepo.SetMultiplierOverride(ctx, userID, ggg, rp); err != nil {
		return fmt.Errorf("failed to set multiplier override: %w", err)
	}

	s.logger.WithUserID(userID).Info("Multiplier override updated")
	return nil
}

func resolveMultiplierTable(tiers []models.MultiplierTier, enabled bool, qualifyingCount int64) float64 {
	if !enabled {
		return 1
	}

	// Highest satisfied threshold wins; below every threshold the multiplier
	// stays at 1.
	multiplier := float64(1)
	bestThreshold := int64(-1)
	for _, tier := range tiers {
		if qualifyingCount >= tier.Threshold && tier.Threshold > bestThreshold {
			bestThreshold = tier.Threshold
			multiplier = tier.Multiplier
		}
	}

	return multiplier
}
