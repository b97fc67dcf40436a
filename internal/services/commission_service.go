package services

import (
	"context"
	"fmt"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommissionService resolves commission percentages from the tier table. Tier
// resolution is a pure function of a settings snapshot and a qualifying count,
// so the same snapshot always yields the same answer. The resolved percent is
// snapshotted onto the Referral at creation and never retroactively changed;
// the promotion overlay multiplies the effective percent at each earning
// event, independent of the snapshot.
type CommissionService interface {
	// ResolveTier returns the highest tier whose threshold is satisfied. A
	// misconfigured table (empty or non-monotonic) still yields a
	// deterministic answer together with ErrInvalidTierConfig as a warning;
	// callers needing only the percent may use the tier and log the error.
	ResolveTier(setting *models.AffiliateSetting, qualifyingCount int64) (models.CommissionTier, error)

	// ResolveForUser recomputes the user's qualifying count and resolves the
	// tier against the given snapshot.
	ResolveForUser(ctx context.Context, setting *models.AffiliateSetting, userID primitive.ObjectID) (models.CommissionTier, int64, error)

	// EffectivePercent applies the promotion overlay to a snapshotted
	// percent for an earning event at the given time.
	EffectivePercent(setting *models.AffiliateSetting, snapshotPercent float64, now time.Time) float64
}

type commissionService struct {
	referralRepo interfaces.ReferralRepository
	logger       *logger.Logger
}

func NewCommissionService(referralRepo interfaces.ReferralRepository, log *logger.Logger) CommissionService {
	return &commissionService{
		referralRepo: referralRepo,
		logger:       log,
	}
}

// ValidateCommissionTiers reports whether a tier table is well formed:
// non-empty, first threshold 0, thresholds strictly increasing. Percent
// monotonicity is not enforced; the resolver picks the highest satisfied
// threshold regardless of percent.
func ValidateCommissionTiers(tiers []models.CommissionTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: empty commission tier table", ErrInvalidTierConfig)
	}
	if tiers[0].Threshold != 0 {
		return fmt.Errorf("%w: first tier threshold must be 0, got %d", ErrInvalidTierConfig, tiers[0].Threshold)
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i].Threshold <= tiers[i-1].Threshold {
			return fmt.Errorf("%w: thresholds not increasing at tier %d", ErrInvalidTierConfig, i+1)
		}
	}
	return nil
}

func (s *commissionService) ResolveTier(setting *models.AffiliateSetting, qualifyingCount int64) (models.CommissionTier, error) {
	tiers := setting.CommissionTiers
	if len(tiers) == 0 {
		// Deterministic fallback: the default base tier.
		base := models.DefaultAffiliateSetting().CommissionTiers[0]
		return base, fmt.Errorf("%w: empty commission tier table", ErrInvalidTierConfig)
	}

	configErr := ValidateCommissionTiers(tiers)

	// Highest satisfied threshold wins, regardless of table order or percent.
	var best *models.CommissionTier
	for i := range tiers {
		tier := tiers[i]
		if qualifyingCount >= tier.Threshold {
			if best == nil || tier.Threshold > best.Threshold {
				best = &tier
			}
		}
	}

	if best == nil {
		// No threshold satisfied: only possible when the table has no zero
		// threshold. Deterministic answer is the lowest-threshold tier.
		lowest := tiers[0]
		for _, tier := range tiers[1:] {
			if tier.Threshold < lowest.Threshold {
				lowest = tier
			}
		}
		return lowest, fmt.Errorf("%w: no tier threshold satisfied for count %d", ErrInvalidTierConfig, qualifyingCount)
	}

	return *best, configErr
}

func (s *commissionService) ResolveForUser(ctx context.Context, setting *models.AffiliateSetting, userID primitive.ObjectID) (models.CommissionTier, int64, error) {
	count, err := s.referralRepo.CountByAffiliateAndStatus(ctx, userID, models.QualifyingStatuses)
	if err != nil {
		return models.CommissionTier{}, 0, fmt.Errorf("failed to count qualifying referrals: %w", err)
	}

	tier, tierErr := s.ResolveTier(setting, count)
	if tierErr != nil {
		s.logger.WithUserID(userID).WithError(tierErr).Warn("Commission tier table is misconfigured")
	}

	return tier, count, nil
}

func (s *commissionService) EffectivePercent(setting *models.AffiliateSetting, snapshotPercent float64, now time.Time) float64 {
	if setting.Promotion.InEffect(now) {
		return snapshotPercent * setting.Promotion.Multiplier
	}
	return snapshotPercent
}
