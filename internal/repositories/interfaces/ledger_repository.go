package interfaces

import (
	"context"

	"gorefer/internal/models"
	"gorefer/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LedgerRepository interface {
	// CreditOnce inserts the entry and increments the wallet balance for its
	// currency. The idempotency key carries a unique index: a retried credit
	// with the same key is a successful no-op and reports applied=false.
	CreditOnce(ctx context.Context, entry *models.LedgerEntry) (applied bool, err error)

	GetWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error)
	ListEntries(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.LedgerEntry, int64, error)
}
