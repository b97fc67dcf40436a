package services

import (
	"testing"

	"gorefer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierResolve(t *testing.T) {
	f := newEngineFixture()

	cases := []struct {
		paid int64
		name models.AffiliateTierName
	}{
		{0, models.AffiliateTierBronze},
		{4, models.AffiliateTierBronze},
		{5, models.AffiliateTierSilver},
		{19, models.AffiliateTierSilver},
		{20, models.AffiliateTierGold},
		{100, models.AffiliateTierGold},
	}

	for _, tc := range cases {
		tier := f.tiers.Resolve(tc.paid)
		assert.Equal(t, tc.name, tier.Name, "paid %d", tc.paid)
	}
}

func TestTierProgress(t *testing.T) {
	f := newEngineFixture()

	progress := f.tiers.Progress(2)
	assert.Equal(t, models.AffiliateTierBronze, progress.Current.Name)
	require.NotNil(t, progress.Next)
	assert.Equal(t, models.AffiliateTierSilver, progress.Next.Name)
	assert.InDelta(t, 40, progress.ProgressPercent, 1e-9)

	progress = f.tiers.Progress(5)
	assert.Equal(t, models.AffiliateTierSilver, progress.Current.Name)
	require.NotNil(t, progress.Next)
	assert.Equal(t, models.AffiliateTierGold, progress.Next.Name)
	assert.InDelta(t, 0, progress.ProgressPercent, 1e-9)

	// Top tier: no next, progress pinned at 100.
	progress = f.tiers.Progress(20)
	assert.Equal(t, models.AffiliateTierGold, progress.Current.Name)
	assert.Nil(t, progress.Next)
	assert.Equal(t, float64(100), progress.ProgressPercent)
}

func TestTierProgressForUser(t *testing.T) {
	f := newEngineFixture()
	ctx := testContext()
	userID := newObjectID()

	for i := 0; i < 6; i++ {
		seedReferral(t, f, userID, models.ReferralStatusPaid)
	}
	// Non-paid statuses do not move the ladder.
	seedReferral(t, f, userID, models.ReferralStatusEarning)

	progress, err := f.tiers.ProgressForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.AffiliateTierSilver, progress.Current.Name)
	assert.Equal(t, int64(6), progress.PaidReferrals)
}
