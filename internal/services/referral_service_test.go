package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"gorefer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeCreatesPendingReferral(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()
	referredID := newObjectID()

	f.seedCode(affiliateID, "REFCODE1", now.Add(-time.Hour))

	referral, err := f.referrals.Attribute(ctx, "REFCODE1", referredID, now)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPending, referral.Status)
	assert.Equal(t, affiliateID, referral.AffiliateID)
	assert.Equal(t, referredID, referral.ReferredID)
	assert.Equal(t, 0.10, referral.CommissionPercent, "base tier percent snapshotted at creation")
	assert.Nil(t, referral.CommissionExpiresAt, "duration 0 means lifetime commission")

	code, err := f.codeRepo.GetByCode(ctx, "REFCODE1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), code.Signups)
}

func TestAttributeSnapshotsCurrentTierPercent(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	for i := 0; i < 10; i++ {
		seedReferral(t, f, affiliateID, models.ReferralStatusActivated)
	}

	f.seedCode(affiliateID, "REFCODE2", now.Add(-time.Hour))

	referral, err := f.referrals.Attribute(ctx, "REFCODE2", newObjectID(), now)
	require.NoError(t, err)
	assert.Equal(t, 0.12, referral.CommissionPercent, "ten qualifying referrals put the affiliate on tier two")
}

func TestAttributeIdempotentPerPair(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()
	referredID := newObjectID()

	f.seedCode(affiliateID, "REFCODE3", now.Add(-time.Hour))

	first, err := f.referrals.Attribute(ctx, "REFCODE3", referredID, now)
	require.NoError(t, err)

	second, err := f.referrals.Attribute(ctx, "REFCODE3", referredID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "retried attribution returns the existing referral")

	count, err := f.referralRepo.CountByAffiliateAndStatus(ctx, affiliateID,
		[]models.ReferralStatus{models.ReferralStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAttributeRejectsSelfReferral(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	f.seedCode(affiliateID, "REFCODE4", now.Add(-time.Hour))

	_, err := f.referrals.Attribute(ctx, "REFCODE4", affiliateID, now)
	assert.Error(t, err)
}

func TestAttributeExpiredWindowFailsClosed(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()

	f.seedCode(newObjectID(), "REFCODE5", now.Add(-31*24*time.Hour))

	_, err := f.referrals.Attribute(ctx, "REFCODE5", newObjectID(), now)
	assert.ErrorIs(t, err, ErrAttributionExpired)
}

func TestCompleteOnboardingCreditsBonusExactlyOnce(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	f.seedCode(affiliateID, "REFCODE6", now.Add(-time.Hour))

	referral, err := f.referrals.Attribute(ctx, "REFCODE6", newObjectID(), now)
	require.NoError(t, err)

	activated, err := f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusActivated, activated.Status)
	assert.True(t, activated.SignupBonusPaid)

	// Retried onboarding callback is a no-op for the bonus.
	again, err := f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusActivated, again.Status)

	wallet, err := f.ledgerRepo.GetWallet(ctx, affiliateID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, wallet.GGGBalance, "default signup bonus credited once")
	assert.Len(t, f.ledgerRepo.entriesOfKind(affiliateID, models.CreditKindSignupBonus), 1)
}

func TestCompleteOnboardingInvalidFromPaid(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	referral := seedReferral(t, f, newObjectID(), models.ReferralStatusPaid)

	_, err := f.referrals.CompleteOnboarding(ctx, referral.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRecordQualifyingEarning(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	f.seedCode(affiliateID, "REFCODE7", now.Add(-time.Hour))
	referral, err := f.referrals.Attribute(ctx, "REFCODE7", newObjectID(), now)
	require.NoError(t, err)
	_, err = f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)

	result, err := f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-1", now)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 0.10, result.EffectivePercent, 1e-9)
	assert.InDelta(t, 10, result.Commission, 1e-9)
	assert.Equal(t, models.ReferralStatusEarning, result.Referral.Status)
	assert.InDelta(t, 100, result.Referral.TotalReferredEarning, 1e-9)
	assert.InDelta(t, 10, result.Referral.TotalCommission, 1e-9)

	wallet, err := f.ledgerRepo.GetWallet(ctx, affiliateID)
	require.NoError(t, err)
	assert.InDelta(t, 11, wallet.GGGBalance, 1e-9, "signup bonus plus commission")
}

func TestRecordQualifyingEarningDropsDuplicateEvent(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	f.seedCode(affiliateID, "REFCODE8", now.Add(-time.Hour))
	referral, err := f.referrals.Attribute(ctx, "REFCODE8", newObjectID(), now)
	require.NoError(t, err)
	_, err = f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)

	first, err := f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-dup", now)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-dup", now)
	require.NoError(t, err)
	assert.Nil(t, second, "recognized duplicate is a silent no-op")

	stored, err := f.referralRepo.GetByID(ctx, referral.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10, stored.TotalCommission, 1e-9, "duplicate applied nothing")
}

func TestRecordQualifyingEarningRetriesAfterRejectedAttempt(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	f.seedCode(affiliateID, "REFCODE9", now.Add(-time.Hour))
	referral, err := f.referrals.Attribute(ctx, "REFCODE9", newObjectID(), now)
	require.NoError(t, err)

	// The event arrives before onboarding completes and is rejected. The
	// rejection must not consume the event ID.
	_, err = f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-early", now)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)

	result, err := f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-early", now)
	require.NoError(t, err)
	require.NotNil(t, result, "retry of a rejected event applies normally")
	assert.InDelta(t, 10, result.Commission, 1e-9)

	stored, err := f.referralRepo.GetByID(ctx, referral.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10, stored.TotalCommission, 1e-9)
	assert.Len(t, f.ledgerRepo.entriesOfKind(affiliateID, models.CreditKindCommission), 1)
}

func TestRecordQualifyingEarningResumesAfterPartialFailure(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()
	referral := seedReferral(t, f, affiliateID, models.ReferralStatusActivated)

	// Totals applied but the process died before the ledger credit.
	applied, err := f.referralRepo.ApplyEarning(ctx, referral.ID,
		[]models.ReferralStatus{models.ReferralStatusActivated},
		models.ReferralStatusEarning, "evt-half", 100, 10)
	require.NoError(t, err)
	require.True(t, applied)

	result, err := f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-half", now)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 10, result.Commission, 1e-9, "resumed with the recorded amount")

	stored, err := f.referralRepo.GetByID(ctx, referral.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10, stored.TotalCommission, 1e-9, "totals not applied twice")

	wallet, err := f.ledgerRepo.GetWallet(ctx, affiliateID)
	require.NoError(t, err)
	assert.InDelta(t, 10, wallet.GGGBalance, 1e-9, "ledger credit completed on retry")

	// The finished event is now a recognized duplicate.
	again, err := f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-half", now)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestRecordQualifyingEarningPromotionOverlay(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	f.seedCode(affiliateID, "REFCODE9", now.Add(-time.Hour))
	referral, err := f.referrals.Attribute(ctx, "REFCODE9", newObjectID(), now)
	require.NoError(t, err)
	_, err = f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)

	// Promotion switched on after attribution still boosts earnings: the
	// overlay applies at earning time, on top of the snapshotted percent.
	setting := models.DefaultAffiliateSetting()
	ends := now.Add(24 * time.Hour)
	setting.Promotion = models.Promotion{Active: true, Name: "double-week", Multiplier: 1.5, EndsAt: &ends}
	_, err = f.settings.Update(ctx, setting)
	require.NoError(t, err)

	result, err := f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-promo", now)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 0.15, result.EffectivePercent, 1e-9)
	assert.InDelta(t, 15, result.Commission, 1e-9)
}

func TestRecordQualifyingEarningAfterCommissionExpiry(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	setting := models.DefaultAffiliateSetting()
	setting.CommissionDurationDays = 30
	_, err := f.settings.Update(ctx, setting)
	require.NoError(t, err)

	f.seedCode(affiliateID, "REFCODEA", now.Add(-time.Hour))
	referral, err := f.referrals.Attribute(ctx, "REFCODEA", newObjectID(), now)
	require.NoError(t, err)
	require.NotNil(t, referral.CommissionExpiresAt)

	_, err = f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)

	// Inside the window: earns normally.
	result, err := f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-in", now.Add(29*24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, result)

	// Past the window: audit-logged, nothing earned, status unchanged.
	_, err = f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-out", now.Add(31*24*time.Hour))
	assert.ErrorIs(t, err, ErrCommissionExpired)

	stored, err := f.referralRepo.GetByID(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusEarning, stored.Status)
	assert.InDelta(t, 10, stored.TotalCommission, 1e-9)
}

func TestRecordQualifyingEarningRejectsSuspendedAndPending(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()

	suspended := seedReferral(t, f, newObjectID(), models.ReferralStatusSuspended)
	_, err := f.referrals.RecordQualifyingEarning(ctx, suspended.ID, 50, "evt-s", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	pending := seedReferral(t, f, newObjectID(), models.ReferralStatusPending)
	_, err = f.referrals.RecordQualifyingEarning(ctx, pending.ID, 50, "evt-p", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConcurrentEarningsLoseNothing(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	f.seedCode(affiliateID, "REFCODEB", now.Add(-time.Hour))
	referral, err := f.referrals.Attribute(ctx, "REFCODEB", newObjectID(), now)
	require.NoError(t, err)
	_, err = f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)

	const workers = 8
	const gross = 50.0

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.referrals.RecordQualifyingEarning(ctx, referral.ID, gross, fmt.Sprintf("evt-conc-%d", n), now)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.referralRepo.GetByID(ctx, referral.ID)
	require.NoError(t, err)
	assert.InDelta(t, workers*gross, stored.TotalReferredEarning, 1e-9)
	assert.InDelta(t, workers*gross*0.10, stored.TotalCommission, 1e-9, "no update may be lost")

	wallet, err := f.ledgerRepo.GetWallet(ctx, affiliateID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0+workers*gross*0.10, wallet.GGGBalance, 1e-9)
}

func TestMarkPaidCreditsTierRewardOnce(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	f.seedCode(affiliateID, "REFCODEC", now.Add(-time.Hour))
	referral, err := f.referrals.Attribute(ctx, "REFCODEC", newObjectID(), now)
	require.NoError(t, err)
	_, err = f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)

	paid, err := f.referrals.MarkPaid(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPaid, paid.Status)
	assert.True(t, paid.TierRewardPaid)

	rewards := f.ledgerRepo.entriesOfKind(affiliateID, models.CreditKindTierReward)
	require.Len(t, rewards, 1)
	assert.InDelta(t, 0.25, rewards[0].Amount, 1e-9, "bronze reward per paid referral")

	// Marking again is a no-op.
	again, err := f.referrals.MarkPaid(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPaid, again.Status)
	assert.Len(t, f.ledgerRepo.entriesOfKind(affiliateID, models.CreditKindTierReward), 1)
}

func TestMarkPaidFromPendingFails(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	referral := seedReferral(t, f, newObjectID(), models.ReferralStatusPending)

	_, err := f.referrals.MarkPaid(ctx, referral.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPaidReferralMayEarnAgain(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	f.seedCode(affiliateID, "REFCODED", now.Add(-time.Hour))
	referral, err := f.referrals.Attribute(ctx, "REFCODED", newObjectID(), now)
	require.NoError(t, err)
	_, err = f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)
	_, err = f.referrals.MarkPaid(ctx, referral.ID)
	require.NoError(t, err)

	result, err := f.referrals.RecordQualifyingEarning(ctx, referral.ID, 100, "evt-postpaid", now)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.ReferralStatusEarning, result.Referral.Status, "paid re-enters earning")
}

func TestSuspendAndReactivateRestoresStatus(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	now := time.Now()
	affiliateID := newObjectID()

	f.seedCode(affiliateID, "REFCODEE", now.Add(-time.Hour))
	referral, err := f.referrals.Attribute(ctx, "REFCODEE", newObjectID(), now)
	require.NoError(t, err)
	_, err = f.referrals.CompleteOnboarding(ctx, referral.ID)
	require.NoError(t, err)
	_, err = f.referrals.RecordQualifyingEarning(ctx, referral.ID, 10, "evt-pre", now)
	require.NoError(t, err)

	suspended, err := f.referrals.Suspend(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusSuspended, suspended.Status)

	count, err := f.referrals.QualifyingCount(ctx, affiliateID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "suspended referrals never count")

	restored, err := f.referrals.Reactivate(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusEarning, restored.Status, "reactivation restores the prior status")

	count, err = f.referrals.QualifyingCount(ctx, affiliateID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestQualifyingCountStatuses(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	affiliateID := newObjectID()

	seedReferral(t, f, affiliateID, models.ReferralStatusPending)
	seedReferral(t, f, affiliateID, models.ReferralStatusActivated)
	seedReferral(t, f, affiliateID, models.ReferralStatusEarning)
	seedReferral(t, f, affiliateID, models.ReferralStatusPaid)
	seedReferral(t, f, affiliateID, models.ReferralStatusSuspended)

	count, err := f.referrals.QualifyingCount(ctx, affiliateID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "only activated and earning count")
}
