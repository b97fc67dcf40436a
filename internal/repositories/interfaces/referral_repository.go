package interfaces

import (
	"context"

	"gorefer/internal/models"
	"gorefer/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReferralRepository interface {
	// Basic CRUD operations. Create enforces the uniqueness of the
	// (affiliate, referred) pair and returns ErrDuplicate on a second insert.
	Create(ctx context.Context, referral *models.Referral) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Referral, error)
	GetByPair(ctx context.Context, affiliateID, referredID primitive.ObjectID) (*models.Referral, error)

	// Status transitions. UpdateStatus applies only when the referral is
	// currently in one of fromStatuses; it reports whether a document matched
	// so callers can detect lost races.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, fromStatuses []models.ReferralStatus, to models.ReferralStatus, extra map[string]interface{}) (bool, error)

	// ApplyEarning atomically increments the earning totals, but only while
	// the referral status is in fromStatuses and the last applied event is not
	// eventID. It records eventID and the commission on the referral, so a
	// retry after a failure downstream of the totals can recognize the event
	// as applied and resume instead of applying again. Returns false when no
	// document matched.
	ApplyEarning(ctx context.Context, id primitive.ObjectID, fromStatuses []models.ReferralStatus, to models.ReferralStatus, eventID string, grossAmount, commission float64) (bool, error)

	// MarkSignupBonusPaid flips the signup bonus flag exactly once; reports
	// whether this call performed the flip.
	MarkSignupBonusPaid(ctx context.Context, id primitive.ObjectID) (bool, error)

	// MarkTierRewardPaid flips the flat tier reward flag exactly once.
	MarkTierRewardPaid(ctx context.Context, id primitive.ObjectID) (bool, error)

	// Counting. CountByAffiliateAndStatus backs the qualifying and paid
	// counts; it is an indexed count, recomputed per tier decision.
	CountByAffiliateAndStatus(ctx context.Context, affiliateID primitive.ObjectID, statuses []models.ReferralStatus) (int64, error)

	// Listings
	ListByAffiliate(ctx context.Context, affiliateID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Referral, int64, error)
}
