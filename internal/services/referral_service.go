package services

import (
	"context"
	"fmt"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/internal/utils"
	"gorefer/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EarningResult reports what one qualifying earning event produced.
type EarningResult struct {
	Referral         *models.Referral `json:"referral"`
	GrossAmount      float64          `json:"gross_amount"`
	EffectivePercent float64          `json:"effective_percent"`
	Commission       float64          `json:"commission"`
}

// ReferralService owns the referral lifecycle:
//
//	pending -> activated -> earning -> paid
//
// with paid able to re-enter earning on a new qualifying event, and suspended
// reachable from any non-terminal status by admin action. Each referral is a
// single-writer resource: earning events serialize on a per-referral lock and
// every transition is a conditional update, so a lost race never applies
// partially.
type ReferralService interface {
	// Attribute converts a signup into a Referral when the code's latest
	// click is inside the attribution window. Calling it again for the same
	// (code owner, referred user) pair returns the existing Referral, never a
	// second one.
	Attribute(ctx context.Context, code string, referredID primitive.ObjectID, now time.Time) (*models.Referral, error)

	// CompleteOnboarding advances pending -> activated and credits the
	// signup bonus to the affiliate exactly once.
	CompleteOnboarding(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error)

	// RecordQualifyingEarning applies one earning event of the referred user.
	// eventID deduplicates retries of the same event; pass the upstream event
	// identifier when one exists. Only an event whose totals and ledger credit
	// both landed counts as a duplicate, so retrying a rejected or failed
	// attempt goes through. A recognized duplicate returns (nil, nil).
	RecordQualifyingEarning(ctx context.Context, referralID primitive.ObjectID, grossAmount float64, eventID string, now time.Time) (*EarningResult, error)

	// MarkPaid settles the referral: earning/activated -> paid, flat
	// affiliate-tier reward credited once. Admin only.
	MarkPaid(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error)

	// Suspend and Reactivate are administrative. A suspended referral earns
	// nothing and does not count toward any threshold until reactivated.
	Suspend(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error)
	Reactivate(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error)

	// QualifyingCount is the number of the affiliate's referrals currently in
	// a counting status. Always recomputed, never cached.
	QualifyingCount(ctx context.Context, affiliateID primitive.ObjectID) (int64, error)

	GetByID(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error)
	ListByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Referral, int64, error)
}

type referralService struct {
	referralRepo interfaces.ReferralRepository
	codeRepo     interfaces.AffiliateCodeRepository
	attribution  AttributionService
	settings     SettingsService
	commission   CommissionService
	tiers        TierService
	ledger       LedgerService
	notifier     Notifier
	cache        CacheService
	logger       *logger.Logger
}

func NewReferralService(
	referralRepo interfaces.ReferralRepository,
	codeRepo interfaces.AffiliateCodeRepository,
	attribution AttributionService,
	settings SettingsService,
	commission CommissionService,
	tiers TierService,
	ledger LedgerService,
	notifier Notifier,
	cache CacheService,
	log *logger.Logger,
) ReferralService {
	return &referralService{
		referralRepo: referralRepo,
		codeRepo:     codeRepo,
		attribution:  attribution,
		settings:     settings,
		commission:   commission,
		tiers:        tiers,
		ledger:       ledger,
		notifier:     notifier,
		cache:        cache,
		logger:       log,
	}
}

func (s *referralService) Attribute(ctx context.Context, code string, referredID primitive.ObjectID, now time.Time) (*models.Referral, error) {
	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	attribution, err := s.attribution.Attribute(ctx, setting, code, now)
	if err != nil {
		return nil, err
	}

	affiliateID := attribution.Code.UserID
	if affiliateID == referredID {
		return nil, fmt.Errorf("self-referral is not allowed")
	}

	existing, err := s.referralRepo.GetByPair(ctx, affiliateID, referredID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up referral pair: %w", err)
	}
	if existing != nil {
		// Retried attribution is a no-op, not an error surfaced to the user.
		s.logger.WithReferralID(existing.ID).Debug("Attribution retried for existing referral")
		return existing, nil
	}

	// Short guard against a double-create race from concurrent signup
	// callbacks; the unique pair index remains the ground truth.
	guardKey := utils.CacheAttributePrefix + affiliateID.Hex() + ":" + referredID.Hex()
	if s.cache != nil {
		acquired, err := s.cache.SetNX(ctx, guardKey, 1, utils.AttributionGuardTTL)
		if err == nil && !acquired {
			if existing, err := s.referralRepo.GetByPair(ctx, affiliateID, referredID); err == nil && existing != nil {
				return existing, nil
			}
			return nil, ErrDuplicateReferral
		}
	}

	tier, _, err := s.commission.ResolveForUser(ctx, setting, affiliateID)
	if err != nil {
		return nil, err
	}

	referral := &models.Referral{
		AffiliateID:          affiliateID,
		ReferredID:           referredID,
		Code:                 attribution.Code.Code,
		Status:               models.ReferralStatusPending,
		CommissionPercent:    tier.Percent,
		CampaignName:         attribution.Code.CampaignName,
		TargetType:           attribution.Code.TargetType,
		TargetID:             attribution.Code.TargetID,
		AttributionExpiresAt: now.Add(setting.AttributionWindow()),
		CommissionExpiresAt:  setting.CommissionExpiry(now),
		CreatedAt:            now,
	}

	if err := s.referralRepo.Create(ctx, referral); err != nil {
		if interfaces.IsDuplicate(err) {
			if existing, lookupErr := s.referralRepo.GetByPair(ctx, affiliateID, referredID); lookupErr == nil && existing != nil {
				return existing, nil
			}
			return nil, ErrDuplicateReferral
		}
		return nil, fmt.Errorf("failed to create referral: %w", err)
	}

	if err := s.codeRepo.IncrementCounters(ctx, attribution.Code.ID, map[string]interface{}{"signups": 1}); err != nil {
		s.logger.WithCode(code).WithError(err).Warn("Failed to bump signup counter")
	}

	s.logger.WithUserID(affiliateID).LogReferralEvent(referral.ID, utils.EventSignupAttributed, map[string]interface{}{
		"code":               referral.Code,
		"commission_percent": referral.CommissionPercent,
	})

	return referral, nil
}

func (s *referralService) CompleteOnboarding(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error) {
	referral, err := s.getReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}

	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	switch referral.Status {
	case models.ReferralStatusPending:
		matched, err := s.referralRepo.UpdateStatus(ctx, referralID,
			[]models.ReferralStatus{models.ReferralStatusPending},
			models.ReferralStatusActivated, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to activate referral: %w", err)
		}
		if matched {
			if err := s.codeRepo.IncrementCounters(ctx, s.codeIDFor(ctx, referral), map[string]interface{}{"activated": 1}); err != nil {
				s.logger.WithReferralID(referralID).WithError(err).Warn("Failed to bump activated counter")
			}
		}
	case models.ReferralStatusActivated, models.ReferralStatusEarning:
		// Retried onboarding callback; fall through to the idempotent bonus.
	default:
		return nil, fmt.Errorf("%w: cannot activate from %s", ErrInvalidTransition, referral.Status)
	}

	if err := s.creditSignupBonus(ctx, referral, setting); err != nil {
		return nil, err
	}

	nctx, cancel := notificationContext()
	s.notifier.ReferralActivated(nctx, referral.AffiliateID, referralID)
	cancel()

	return s.getReferral(ctx, referralID)
}

// creditSignupBonus pays the fixed GGG amount to the affiliate exactly once
// per referral. The ledger idempotency key is stable across retries.
func (s *referralService) creditSignupBonus(ctx context.Context, referral *models.Referral, setting *models.AffiliateSetting) error {
	if referral.SignupBonusPaid || setting.SignupBonusGGG <= 0 {
		return nil
	}

	key := "referral:" + referral.ID.Hex() + ":signup_bonus"
	if err := s.ledger.Credit(ctx, referral.AffiliateID, setting.SignupBonusGGG, models.CurrencyGGG, models.CreditKindSignupBonus, key); err != nil {
		return fmt.Errorf("failed to credit signup bonus: %w", err)
	}

	if _, err := s.referralRepo.MarkSignupBonusPaid(ctx, referral.ID); err != nil {
		s.logger.WithReferralID(referral.ID).WithError(err).Warn("Failed to flag signup bonus as paid")
	}

	return nil
}

func (s *referralService) RecordQualifyingEarning(ctx context.Context, referralID primitive.ObjectID, grossAmount float64, eventID string, now time.Time) (*EarningResult, error) {
	if grossAmount <= 0 {
		return nil, fmt.Errorf("gross amount must be positive, got %f", grossAmount)
	}

	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	if eventID == "" {
		eventID = utils.GenerateIdempotencyKey()
	}

	// An event counts as seen only after every effect landed. A rejected or
	// half-applied attempt leaves the key unset so the upstream retry goes
	// through instead of losing the commission.
	seenKey := utils.CacheEarningLockPrefix + "seen:" + referralID.Hex() + ":" + eventID
	if s.cache != nil {
		if seen, err := s.cache.Exists(ctx, seenKey); err == nil && seen {
			s.logger.WithReferralID(referralID).WithField("event_id", eventID).Debug("Duplicate earning event dropped")
			return nil, nil
		}
	}

	lock, err := s.acquireEarningLock(ctx, referralID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if lock != nil {
			if err := s.cache.Unlock(ctx, lock); err != nil {
				s.logger.WithReferralID(referralID).WithError(err).Warn("Failed to release earning lock")
			}
		}
	}()

	var (
		referral   *models.Referral
		effective  float64
		commission float64
		applied    bool
		resumed    bool
	)
	for attempt := 0; attempt < utils.EarningRetryAttempts; attempt++ {
		referral, err = s.getReferral(ctx, referralID)
		if err != nil {
			return nil, err
		}

		if referral.LastEventID == eventID {
			// A prior attempt applied the totals but failed before the ledger
			// credit; resume with the recorded amount instead of applying
			// the increment again.
			commission = referral.LastEventCommission
			effective = commission / grossAmount
			applied = true
			resumed = true
			break
		}

		switch referral.Status {
		case models.ReferralStatusActivated, models.ReferralStatusEarning, models.ReferralStatusPaid:
			// paid re-enters earning below
		case models.ReferralStatusSuspended:
			return nil, fmt.Errorf("%w: referral is suspended", ErrInvalidTransition)
		default:
			return nil, fmt.Errorf("%w: cannot earn from %s", ErrInvalidTransition, referral.Status)
		}

		if referral.CommissionExpired(now) {
			// Audit trail for expired-window events; the referral stays in
			// its current status and earns nothing.
			s.logger.WithReferralID(referralID).WithFields(map[string]interface{}{
				"gross_amount": grossAmount,
				"expired_at":   referral.CommissionExpiresAt,
			}).Info("Earning event past commission window")
			return nil, ErrCommissionExpired
		}

		effective = s.commission.EffectivePercent(setting, referral.CommissionPercent, now)
		commission = grossAmount * effective

		ok, err := s.referralRepo.ApplyEarning(ctx, referralID,
			[]models.ReferralStatus{models.ReferralStatusActivated, models.ReferralStatusEarning, models.ReferralStatusPaid},
			models.ReferralStatusEarning, eventID, grossAmount, commission)
		if err != nil {
			return nil, fmt.Errorf("failed to apply earning: %w", err)
		}
		if ok {
			applied = true
			break
		}

		// Status moved under us; reload and retry.
		time.Sleep(utils.EarningRetryBackoff)
	}
	if !applied {
		return nil, ErrConcurrentModification
	}

	ledgerKey := "referral:" + referralID.Hex() + ":earning:" + eventID
	if err := s.ledger.Credit(ctx, referral.AffiliateID, commission, models.CurrencyGGG, models.CreditKindCommission, ledgerKey); err != nil {
		return nil, err
	}

	if !resumed {
		if err := s.codeRepo.IncrementCounters(ctx, s.codeIDFor(ctx, referral), map[string]interface{}{"ggg_earned": commission}); err != nil {
			s.logger.WithReferralID(referralID).WithError(err).Warn("Failed to bump code earnings counter")
		}
	}

	result := &EarningResult{
		GrossAmount:      grossAmount,
		EffectivePercent: effective,
		Commission:       commission,
	}
	result.Referral, err = s.getReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}

	s.logger.WithUserID(referral.AffiliateID).LogReferralEvent(referralID, utils.EventCommissionEarned, map[string]interface{}{
		"gross_amount":      grossAmount,
		"effective_percent": effective,
		"commission":        commission,
	})

	if s.cache != nil {
		if _, err := s.cache.SetNX(ctx, seenKey, 1, utils.EarningSeenTTL); err != nil {
			s.logger.WithReferralID(referralID).WithError(err).Warn("Failed to mark earning event as seen")
		}
	}

	return result, nil
}

// acquireEarningLock serializes earning events per referral. The conditional
// store update is still the ground truth; the lock only bounds contention.
func (s *referralService) acquireEarningLock(ctx context.Context, referralID primitive.ObjectID) (*DistributedLock, error) {
	if s.cache == nil {
		return nil, nil
	}

	var err error
	for attempt := 0; attempt < utils.EarningRetryAttempts; attempt++ {
		var lock *DistributedLock
		lock, err = s.cache.Lock(ctx, "earning:"+referralID.Hex(), utils.EarningLockTTL)
		if err == nil {
			return lock, nil
		}
		time.Sleep(utils.EarningRetryBackoff)
	}

	return nil, fmt.Errorf("%w: %v", ErrConcurrentModification, err)
}

func (s *referralService) MarkPaid(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error) {
	referral, err := s.getReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}

	if referral.Status == models.ReferralStatusPaid {
		return referral, nil
	}

	matched, err := s.referralRepo.UpdateStatus(ctx, referralID,
		[]models.ReferralStatus{models.ReferralStatusActivated, models.ReferralStatusEarning},
		models.ReferralStatusPaid, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to mark referral paid: %w", err)
	}
	if !matched {
		return nil, fmt.Errorf("%w: cannot pay out from %s", ErrInvalidTransition, referral.Status)
	}

	if err := s.codeRepo.IncrementCounters(ctx, s.codeIDFor(ctx, referral), map[string]interface{}{"paid": 1}); err != nil {
		s.logger.WithReferralID(referralID).WithError(err).Warn("Failed to bump paid counter")
	}

	paidCount, err := s.referralRepo.CountByAffiliateAndStatus(ctx, referral.AffiliateID, []models.ReferralStatus{models.ReferralStatusPaid})
	if err != nil {
		return nil, fmt.Errorf("failed to count paid referrals: %w", err)
	}

	tier := s.tiers.Resolve(paidCount)
	if err := s.creditTierReward(ctx, referral, tier); err != nil {
		return nil, err
	}

	nctx, cancel := notificationContext()
	s.notifier.ReferralPaid(nctx, referral.AffiliateID, referralID, tier.RewardPerPaid)

	// A tier-up happens exactly when the new paid count lands on a minimum.
	if paidCount == tier.MinPaidReferral && tier.MinPaidReferral > 0 {
		s.notifier.TierUp(nctx, referral.AffiliateID, tier.Name)
	}
	cancel()

	return s.getReferral(ctx, referralID)
}

func (s *referralService) creditTierReward(ctx context.Context, referral *models.Referral, tier models.AffiliateTier) error {
	if referral.TierRewardPaid || tier.RewardPerPaid <= 0 {
		return nil
	}

	key := "referral:" + referral.ID.Hex() + ":tier_reward"
	if err := s.ledger.Credit(ctx, referral.AffiliateID, tier.RewardPerPaid, models.CurrencyGGG, models.CreditKindTierReward, key); err != nil {
		return fmt.Errorf("failed to credit tier reward: %w", err)
	}

	if _, err := s.referralRepo.MarkTierRewardPaid(ctx, referral.ID); err != nil {
		s.logger.WithReferralID(referral.ID).WithError(err).Warn("Failed to flag tier reward as paid")
	}

	return nil
}

func (s *referralService) Suspend(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error) {
	referral, err := s.getReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}

	if referral.Status == models.ReferralStatusSuspended {
		return referral, nil
	}

	matched, err := s.referralRepo.UpdateStatus(ctx, referralID,
		[]models.ReferralStatus{models.ReferralStatusPending, models.ReferralStatusActivated, models.ReferralStatusEarning},
		models.ReferralStatusSuspended,
		map[string]interface{}{"status_before_suspend": referral.Status})
	if err != nil {
		return nil, fmt.Errorf("failed to suspend referral: %w", err)
	}
	if !matched {
		return nil, fmt.Errorf("%w: cannot suspend from %s", ErrInvalidTransition, referral.Status)
	}

	s.logger.WithUserID(referral.AffiliateID).LogReferralEvent(referralID, "referral_suspended", nil)

	return s.getReferral(ctx, referralID)
}

func (s *referralService) Reactivate(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error) {
	referral, err := s.getReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}

	if referral.Status != models.ReferralStatusSuspended {
		return nil, fmt.Errorf("%w: cannot reactivate from %s", ErrInvalidTransition, referral.Status)
	}

	restored := referral.StatusBeforeSuspend
	if restored == "" || restored == models.ReferralStatusSuspended {
		restored = models.ReferralStatusPending
	}

	matched, err := s.referralRepo.UpdateStatus(ctx, referralID,
		[]models.ReferralStatus{models.ReferralStatusSuspended},
		restored,
		map[string]interface{}{"status_before_suspend": ""})
	if err != nil {
		return nil, fmt.Errorf("failed to reactivate referral: %w", err)
	}
	if !matched {
		return nil, ErrConcurrentModification
	}

	s.logger.WithUserID(referral.AffiliateID).LogReferralEvent(referralID, "referral_reactivated", map[string]interface{}{
		"restored_status": string(restored),
	})

	return s.getReferral(ctx, referralID)
}

func (s *referralService) QualifyingCount(ctx context.Context, affiliateID primitive.ObjectID) (int64, error) {
	return s.referralRepo.CountByAffiliateAndStatus(ctx, affiliateID, models.QualifyingStatuses)
}

func (s *referralService) GetByID(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error) {
	return s.getReferral(ctx, referralID)
}

func (s *referralService) ListByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Referral, int64, error) {
	return s.referralRepo.ListByAffiliate(ctx, affiliateID, params)
}

func (s *referralService) getReferral(ctx context.Context, referralID primitive.ObjectID) (*models.Referral, error) {
	referral, err := s.referralRepo.GetByID(ctx, referralID)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}
	if referral == nil {
		return nil, fmt.Errorf("referral not found")
	}
	return referral, nil
}

// notificationContext detaches notification delivery from the request context
// so a cancelled caller still produces the event, bounded by
// NotificationTimeout.
func notificationContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), utils.NotificationTimeout)
}

// codeIDFor resolves the AffiliateCode backing a referral for counter bumps.
// Counter maintenance is best-effort display state, never used for tier
// decisions, so a miss only logs.
func (s *referralService) codeIDFor(ctx context.Context, referral *models.Referral) primitive.ObjectID {
	code, err := s.codeRepo.GetByCode(ctx, referral.Code)
	if err != nil || code == nil {
		s.logger.WithReferralID(referral.ID).WithCode(referral.Code).Warn("Referral code missing for counter update")
		return primitive.NilObjectID
	}
	return code.ID
}
