package services

import (
	"context"
	"fmt"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/internal/utils"
	"gorefer/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LedgerService is the points/currency collaborator. Credits are at-least-once
// from the caller's perspective, so every credit carries an idempotency key;
// a retried credit with a seen key is a successful no-op.
type LedgerService interface {
	Credit(ctx context.Context, userID primitive.ObjectID, amount float64, currency models.Currency, kind models.CreditKind, idempotencyKey string) error
	GetWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error)
	ListEntries(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.LedgerEntry, int64, error)
}

type ledgerService struct {
	ledgerRepo interfaces.LedgerRepository
	logger     *logger.Logger
}

func NewLedgerService(ledgerRepo interfaces.LedgerRepository, log *logger.Logger) LedgerService {
	return &ledgerService{
		ledgerRepo: ledgerRepo,
		logger:     log,
	}
}

func (s *ledgerService) Credit(ctx context.Context, userID primitive.ObjectID, amount float64, currency models.Currency, kind models.CreditKind, idempotencyKey string) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %f", amount)
	}
	if idempotencyKey == "" {
		return fmt.Errorf("idempotency key is required")
	}

	entry := &models.LedgerEntry{
		UserID:         userID,
		Amount:         amount,
		Currency:       currency,
		Kind:           kind,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now(),
	}

	applied, err := s.ledgerRepo.CreditOnce(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to credit ledger: %w", err)
	}

	if applied {
		s.logger.LogLedgerEvent(userID, string(kind), amount, string(currency), idempotencyKey)
	} else {
		s.logger.WithUserID(userID).WithField("idempotency_key", idempotencyKey).Debug("Duplicate ledger credit skipped")
	}

	return nil
}

func (s *ledgerService) GetWallet(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	return s.ledgerRepo.GetWallet(ctx, userID)
}

func (s *ledgerService) ListEntries(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.LedgerEntry, int64, error) {
	return s.ledgerRepo.ListEntries(ctx, userID, params)
}
