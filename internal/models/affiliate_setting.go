package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AffiliateSettingKey is the singleton document key for the global rule set.
const AffiliateSettingKey = "global"

// CommissionTier pairs a qualifying-referral threshold with a commission
// percent expressed as a fraction (0.10 = 10%). Tier one carries threshold 0.
type CommissionTier struct {
	Threshold int64   `json:"threshold" bson:"threshold"`
	Percent   float64 `json:"percent" bson:"percent"`
}

// MultiplierTier pairs a qualifying-referral threshold with a point/currency
// accrual multiplier.
type MultiplierTier struct {
	Threshold  int64   `json:"threshold" bson:"threshold"`
	Multiplier float64 `json:"multiplier" bson:"multiplier"`
}

// Promotion is a temporary global multiplicative boost applied to commission
// percentages at earning time.
type Promotion struct {
	Active     bool       `json:"active" bson:"active" default:"false"`
	Name       string     `json:"name,omitempty" bson:"name,omitempty"`
	Multiplier float64    `json:"multiplier" bson:"multiplier" default:"1"`
	EndsAt     *time.Time `json:"ends_at,omitempty" bson:"ends_at,omitempty"`
}

// InEffect reports whether the promotion boosts commissions at the given time.
func (p *Promotion) InEffect(now time.Time) bool {
	if !p.Active || p.Multiplier <= 0 {
		return false
	}
	return p.EndsAt == nil || now.Before(*p.EndsAt)
}

// AffiliateSetting is the global rule snapshot. It is written only by admin
// tooling and read-only to the engine; a missing document means the hard-coded
// defaults apply. All resolver calls within one logical operation must use one
// consistent snapshot.
type AffiliateSetting struct {
	ID                     primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Key                    string             `json:"key" bson:"key"`
	CommissionTiers        []CommissionTier   `json:"commission_tiers" bson:"commission_tiers"`
	GGGMultipliersEnabled  bool               `json:"ggg_multipliers_enabled" bson:"ggg_multipliers_enabled"`
	GGGMultiplierTiers     []MultiplierTier   `json:"ggg_multiplier_tiers" bson:"ggg_multiplier_tiers"`
	RPMultipliersEnabled   bool               `json:"rp_multipliers_enabled" bson:"rp_multipliers_enabled"`
	RPMultiplierTiers      []MultiplierTier   `json:"rp_multiplier_tiers" bson:"rp_multiplier_tiers"`
	SignupBonusGGG         float64            `json:"signup_bonus_ggg" bson:"signup_bonus_ggg"`
	AttributionWindowDays  int                `json:"attribution_window_days" bson:"attribution_window_days"`
	CommissionDurationDays int                `json:"commission_duration_days" bson:"commission_duration_days"`
	Promotion              Promotion          `json:"promotion" bson:"promotion"`
	UpdatedAt              time.Time          `json:"updated_at" bson:"updated_at"`
}

// AttributionWindow returns the window as a duration.
func (s *AffiliateSetting) AttributionWindow() time.Duration {
	return time.Duration(s.AttributionWindowDays) * 24 * time.Hour
}

// CommissionExpiry computes the commission expiry for a referral created at
// the given time. Duration 0 means lifetime commission and returns nil.
func (s *AffiliateSetting) CommissionExpiry(createdAt time.Time) *time.Time {
	if s.CommissionDurationDays <= 0 {
		return nil
	}
	expiry := createdAt.Add(time.Duration(s.CommissionDurationDays) * 24 * time.Hour)
	return &expiry
}

// DefaultAffiliateSetting returns the hard-coded fallback rule set used when
// no settings document exists yet.
func DefaultAffiliateSetting() *AffiliateSetting {
	return &AffiliateSetting{
		Key: AffiliateSettingKey,
		CommissionTiers: []CommissionTier{
			{Threshold: 0, Percent: 0.10},
			{Threshold: 10, Percent: 0.12},
			{Threshold: 25, Percent: 0.15},
			{Threshold: 50, Percent: 0.18},
			{Threshold: 100, Percent: 0.20},
		},
		GGGMultipliersEnabled: true,
		GGGMultiplierTiers: []MultiplierTier{
			{Threshold: 10, Multiplier: 2},
			{Threshold: 50, Multiplier: 3},
			{Threshold: 100, Multiplier: 4},
		},
		RPMultipliersEnabled: true,
		RPMultiplierTiers: []MultiplierTier{
			{Threshold: 10, Multiplier: 1.5},
			{Threshold: 50, Multiplier: 2},
			{Threshold: 100, Multiplier: 3},
		},
		SignupBonusGGG:         1.0,
		AttributionWindowDays:  30,
		CommissionDurationDays: 0,
		Promotion:              Promotion{Active: false, Multiplier: 1},
	}
}
