package models

type AffiliateTierName string

const (
	AffiliateTierBronze AffiliateTierName = "bronze"
	AffiliateTierSilver AffiliateTierName = "silver"
	AffiliateTierGold   AffiliateTierName = "gold"
)

// AffiliateTier is one rung of the coarse-grained affiliate ladder, keyed on
// cumulative paid referral count. Each tier carries a flat GGG reward per paid
// referral and a benefits list used for feature gating.
type AffiliateTier struct {
	Name            AffiliateTierName `json:"name" bson:"name"`
	MinPaidReferral int64             `json:"min_paid_referrals" bson:"min_paid_referrals"`
	RewardPerPaid   float64           `json:"reward_per_paid" bson:"reward_per_paid"`
	Benefits        []string          `json:"benefits" bson:"benefits"`
}

// TierProgress describes where an affiliate sits on the ladder. Next is nil at
// the top tier, in which case ProgressPercent is 100.
type TierProgress struct {
	Current         AffiliateTier  `json:"current"`
	Next            *AffiliateTier `json:"next,omitempty"`
	PaidReferrals   int64          `json:"paid_referrals"`
	ProgressPercent float64        `json:"progress_percent"`
}

// DefaultAffiliateTiers returns the tier ladder, ordered lowest to highest.
func DefaultAffiliateTiers() []AffiliateTier {
	return []AffiliateTier{
		{
			Name:            AffiliateTierBronze,
			MinPaidReferral: 0,
			RewardPerPaid:   0.25,
			Benefits:        []string{"referral_dashboard"},
		},
		{
			Name:            AffiliateTierSilver,
			MinPaidReferral: 5,
			RewardPerPaid:   0.35,
			Benefits:        []string{"referral_dashboard", "campaign_codes"},
		},
		{
			Name:            AffiliateTierGold,
			MinPaidReferral: 20,
			RewardPerPaid:   0.50,
			Benefits:        []string{"referral_dashboard", "campaign_codes", "priority_support"},
		},
	}
}
