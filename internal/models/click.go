package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Click is a single attribution event against a code. Clicks are immutable and
// never deleted; they are the audit trail and the source of truth for the
// attribution window.
type Click struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Code        string             `json:"code" bson:"code" validate:"required"`
	Fingerprint string             `json:"fingerprint,omitempty" bson:"fingerprint,omitempty"`
	ClickedAt   time.Time          `json:"clicked_at" bson:"clicked_at"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}
