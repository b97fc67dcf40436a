package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusActivated ReferralStatus = "activated"
	ReferralStatusEarning   ReferralStatus = "earning"
	ReferralStatusPaid      ReferralStatus = "paid"
	ReferralStatusSuspended ReferralStatus = "suspended"
)

// QualifyingStatuses are the statuses that count toward commission and
// multiplier thresholds. Pending and suspended referrals never count.
var QualifyingStatuses = []ReferralStatus{ReferralStatusActivated, ReferralStatusEarning}

// Referral tracks one referred user from attribution through payout. There is
// exactly one Referral per (affiliate, referred user) pair. CommissionPercent
// is snapshotted at creation time and is not re-resolved when the affiliate's
// tier later changes. CommissionExpiresAt nil means lifetime commission.
type Referral struct {
	ID                   primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	AffiliateID          primitive.ObjectID  `json:"affiliate_id" bson:"affiliate_id" validate:"required"`
	ReferredID           primitive.ObjectID  `json:"referred_id" bson:"referred_id" validate:"required"`
	Code                 string              `json:"code" bson:"code"`
	Status               ReferralStatus      `json:"status" bson:"status" default:"pending"`
	CommissionPercent    float64             `json:"commission_percent" bson:"commission_percent"`
	TotalReferredEarning float64             `json:"total_referred_earning" bson:"total_referred_earning" default:"0"`
	TotalCommission      float64             `json:"total_commission" bson:"total_commission" default:"0"`
	CampaignName         string              `json:"campaign_name,omitempty" bson:"campaign_name,omitempty"`
	TargetType           TargetType          `json:"target_type,omitempty" bson:"target_type,omitempty"`
	TargetID             *primitive.ObjectID `json:"target_id,omitempty" bson:"target_id,omitempty"`
	LastEventID          string              `json:"last_event_id,omitempty" bson:"last_event_id,omitempty"`
	LastEventCommission  float64             `json:"last_event_commission,omitempty" bson:"last_event_commission,omitempty"`
	SignupBonusPaid      bool                `json:"signup_bonus_paid" bson:"signup_bonus_paid" default:"false"`
	TierRewardPaid       bool                `json:"tier_reward_paid" bson:"tier_reward_paid" default:"false"`
	StatusBeforeSuspend  ReferralStatus      `json:"status_before_suspend,omitempty" bson:"status_before_suspend,omitempty"`
	AttributionExpiresAt time.Time           `json:"attribution_expires_at" bson:"attribution_expires_at"`
	CommissionExpiresAt  *time.Time          `json:"commission_expires_at,omitempty" bson:"commission_expires_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" bson:"updated_at"`
}

// IsQualifying reports whether the referral counts toward tier and multiplier
// thresholds.
func (r *Referral) IsQualifying() bool {
	return r.Status == ReferralStatusActivated || r.Status == ReferralStatusEarning
}

// CommissionExpired reports whether earning events at the given time no longer
// generate commission. A nil expiry means lifetime commission.
func (r *Referral) CommissionExpired(now time.Time) bool {
	return r.CommissionExpiresAt != nil && now.After(*r.CommissionExpiresAt)
}
