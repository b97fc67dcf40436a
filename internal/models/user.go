package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserType string

const (
	UserTypeUser  UserType = "user"
	UserTypeAdmin UserType = "admin"
)

// User is the slice of the profile record the engine reads and writes. The
// multiplier overrides, when set, supersede the tier-computed multipliers and
// are the only path to a multiplier above what the tables would produce.
type User struct {
	ID                    primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Username              string             `json:"username" bson:"username"`
	UserType              UserType           `json:"user_type" bson:"user_type" default:"user"`
	GGGMultiplierOverride *float64           `json:"ggg_multiplier_override,omitempty" bson:"ggg_multiplier_override,omitempty"`
	RPMultiplierOverride  *float64           `json:"rp_multiplier_override,omitempty" bson:"rp_multiplier_override,omitempty"`
	CreatedAt             time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at" bson:"updated_at"`
}
