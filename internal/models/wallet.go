package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Currency string

const (
	CurrencyGGG Currency = "ggg"
	CurrencyRP  Currency = "rp"
)

type CreditKind string

const (
	CreditKindSignupBonus CreditKind = "signup_bonus"
	CreditKindCommission  CreditKind = "commission"
	CreditKindTierReward  CreditKind = "tier_reward"
	CreditKindPoints      CreditKind = "points"
)

type Wallet struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID     primitive.ObjectID `json:"user_id" bson:"user_id" validate:"required"`
	GGGBalance float64            `json:"ggg_balance" bson:"ggg_balance" default:"0"`
	RPBalance  float64            `json:"rp_balance" bson:"rp_balance" default:"0"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// LedgerEntry records one credit against a wallet. IdempotencyKey carries a
// unique index; retried credits with the same key insert nothing and the
// original amount stands.
type LedgerEntry struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID         primitive.ObjectID `json:"user_id" bson:"user_id" validate:"required"`
	Amount         float64            `json:"amount" bson:"amount" validate:"required"`
	Currency       Currency           `json:"currency" bson:"currency" default:"ggg"`
	Kind           CreditKind         `json:"kind" bson:"kind"`
	IdempotencyKey string             `json:"idempotency_key" bson:"idempotency_key" validate:"required"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}
