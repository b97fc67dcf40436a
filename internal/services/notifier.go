package services

import (
	"context"

	"gorefer/internal/models"
	"gorefer/internal/utils"
	"gorefer/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier is the fire-and-forget notification collaborator. Failures must
// never roll back the state transition that triggered them, so implementations
// swallow and log their own errors.
type Notifier interface {
	ReferralActivated(ctx context.Context, affiliateID, referralID primitive.ObjectID)
	ReferralPaid(ctx context.Context, affiliateID, referralID primitive.ObjectID, reward float64)
	TierUp(ctx context.Context, affiliateID primitive.ObjectID, tier models.AffiliateTierName)
}

type logNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier returns a Notifier that only records the event; notification
// delivery belongs to an external collaborator.
func NewLogNotifier(log *logger.Logger) Notifier {
	return &logNotifier{logger: log}
}

func (n *logNotifier) ReferralActivated(ctx context.Context, affiliateID, referralID primitive.ObjectID) {
	n.logger.WithUserID(affiliateID).LogReferralEvent(referralID, utils.EventReferralActivated, nil)
}

func (n *logNotifier) ReferralPaid(ctx context.Context, affiliateID, referralID primitive.ObjectID, reward float64) {
	n.logger.WithUserID(affiliateID).LogReferralEvent(referralID, utils.EventReferralPaid, map[string]interface{}{
		"reward": reward,
	})
}

func (n *logNotifier) TierUp(ctx context.Context, affiliateID primitive.ObjectID, tier models.AffiliateTierName) {
	n.logger.WithUserID(affiliateID).WithFields(map[string]interface{}{
		"tier": string(tier),
		"type": utils.EventTierUp,
	}).Info("Affiliate reached a new tier")
}
