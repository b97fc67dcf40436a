package mongodb

import (
	"context"
	"fmt"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ledgerRepository struct {
	entries *mongo.Collection
	wallets *mongo.Collection
}

func NewLedgerRepository(db *mongo.Database) interfaces.LedgerRepository {
	return &ledgerRepository{
		entries: db.Collection("ledger_entries"),
		wallets: db.Collection("wallets"),
	}
}

// CreditOnce relies on the unique idempotency_key index: the entry insert is
// the gate, and the wallet increment only runs when the insert went through.
func (r *ledgerRepository) CreditOnce(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now()

	_, err := r.entries.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	var balanceField string
	switch entry.Currency {
	case models.CurrencyRP:
		balanceField = "rp_balance"
	default:
		balanceField = "ggg_balance"
	}

	now := time.Now()
	opts := options.Update().SetUpsert(true)
	_, err = r.wallets.UpdateOne(ctx,
		bson.M{"user_id": entry.UserID},
		bson.M{
			"$inc": bson.M{balanceField: entry.Amount},
			"$set": bson.M{"updated_at": now},
			"$setOnInsert": bson.M{
				"created_at": now,
			},
		},
		opts,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update wallet balance: %w", err)
	}

	return true, nil
}

func (r *ledgerRepository) GetWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.wallets.FindOne(ctx, bson.M{"user_id": userID}).Decode(&wallet)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &wallet, nil
}

func (r *ledgerRepository) ListEntries(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.LedgerEntry, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := r.entries.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	opts := options.Find().
		SetSkip(int64(params.GetSkip())).
		SetLimit(int64(params.GetLimit())).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.entries.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*models.LedgerEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, fmt.Errorf("failed to decode ledger entries: %w", err)
	}

	return entries, total, nil
}
