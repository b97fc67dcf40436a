package services

import (
	"context"
	"fmt"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TierService derives the coarse affiliate tier (bronze/silver/gold) from the
// cumulative paid referral count. Tiers gate benefits and carry the flat GGG
// reward paid per paid referral; they are independent of the percentage
// commission system.
type TierService interface {
	// Resolve returns the highest tier whose minimum paid count is met.
	Resolve(paidCount int64) models.AffiliateTier

	// Progress returns the current tier, the next tier (nil at the top) and
	// the percent progress toward it, clamped to [0,100].
	Progress(paidCount int64) models.TierProgress

	// ProgressForUser counts the user's paid referrals and resolves progress.
	ProgressForUser(ctx context.Context, userID primitive.ObjectID) (*models.TierProgress, error)
}

type tierService struct {
	referralRepo interfaces.ReferralRepository
	tiers        []models.AffiliateTier
}

func NewTierService(referralRepo interfaces.ReferralRepository) TierService {
	return &tierService{
		referralRepo: referralRepo,
		tiers:        models.DefaultAffiliateTiers(),
	}
}

func (s *tierService) Resolve(paidCount int64) models.AffiliateTier {
	current := s.tiers[0]
	for _, tier := range s.tiers[1:] {
		if paidCount >= tier.MinPaidReferral {
			current = tier
		}
	}
	return current
}

func (s *tierService) Progress(paidCount int64) models.TierProgress {
	current := s.Resolve(paidCount)

	var next *models.AffiliateTier
	for i := range s.tiers {
		if s.tiers[i].Name == current.Name && i+1 < len(s.tiers) {
			next = &s.tiers[i+1]
			break
		}
	}

	progress := float64(100)
	if next != nil {
		span := float64(next.MinPaidReferral - current.MinPaidReferral)
		progress = float64(paidCount-current.MinPaidReferral) / span * 100
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
	}

	return models.TierProgress{
		Current:         current,
		Next:            next,
		PaidReferrals:   paidCount,
		ProgressPercent: progress,
	}
}

func (s *tierService) ProgressForUser(ctx context.Context, userID primitive.ObjectID) (*models.TierProgress, error) {
	paidCount, err := s.referralRepo.CountByAffiliateAndStatus(ctx, userID, []models.ReferralStatus{models.ReferralStatusPaid})
	if err != nil {
		return nil, fmt.Errorf("failed to count paid referrals: %w", err)
	}

	progress := s.Progress(paidCount)
	return &progress, nil
}
