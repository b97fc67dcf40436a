package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CodeStatus string

const (
	CodeStatusActive CodeStatus = "active"
	CodeStatusPaused CodeStatus = "paused"
)

type TargetType string

const (
	TargetTypeListing TargetType = "listing"
	TargetTypeEvent   TargetType = "event"
	TargetTypeMission TargetType = "mission"
)

// AffiliateCode identifies one distribution channel for one user. A user has at
// most one code without a campaign name (the primary code); campaign codes are
// additional, scoped trackers. Counters are owned by the engine and never
// written directly by callers.
type AffiliateCode struct {
	ID           primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID       primitive.ObjectID  `json:"user_id" bson:"user_id" validate:"required"`
	Code         string              `json:"code" bson:"code" validate:"required"`
	CampaignName string              `json:"campaign_name,omitempty" bson:"campaign_name,omitempty"`
	TargetType   TargetType          `json:"target_type,omitempty" bson:"target_type,omitempty"`
	TargetID     *primitive.ObjectID `json:"target_id,omitempty" bson:"target_id,omitempty"`
	Status       CodeStatus          `json:"status" bson:"status" default:"active"`
	Clicks       int64               `json:"clicks" bson:"clicks" default:"0"`
	Signups      int64               `json:"signups" bson:"signups" default:"0"`
	Activated    int64               `json:"activated" bson:"activated" default:"0"`
	Paid         int64               `json:"paid" bson:"paid" default:"0"`
	GGGEarned    float64             `json:"ggg_earned" bson:"ggg_earned" default:"0"`
	CreatedAt    time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" bson:"updated_at"`
}

// IsPrimary reports whether this is the user's campaignless default code.
func (c *AffiliateCode) IsPrimary() bool {
	return c.CampaignName == ""
}
