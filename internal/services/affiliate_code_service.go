package services

import (
	"context"
	"fmt"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/internal/utils"
	"gorefer/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AffiliateCodeService owns code issuance. Every user gets exactly one primary
// (campaignless) code, created lazily on first engine access; campaign codes
// are additional scoped trackers.
type AffiliateCodeService interface {
	GetOrCreatePrimary(ctx context.Context, userID primitive.ObjectID) (*models.AffiliateCode, error)
	CreateCampaignCode(ctx context.Context, userID primitive.ObjectID, campaignName string, targetType models.TargetType, targetID *primitive.ObjectID) (*models.AffiliateCode, error)
	GetByCode(ctx context.Context, code string) (*models.AffiliateCode, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.AffiliateCode, error)
	SetStatus(ctx context.Context, userID primitive.ObjectID, code string, status models.CodeStatus) error
	List(ctx context.Context, params *utils.PaginationParams) ([]*models.AffiliateCode, int64, error)
}

type affiliateCodeService struct {
	codeRepo interfaces.AffiliateCodeRepository
	userRepo interfaces.UserRepository
	logger   *logger.Logger
}

func NewAffiliateCodeService(
	codeRepo interfaces.AffiliateCodeRepository,
	userRepo interfaces.UserRepository,
	log *logger.Logger,
) AffiliateCodeService {
	return &affiliateCodeService{
		codeRepo: codeRepo,
		userRepo: userRepo,
		logger:   log,
	}
}

func (s *affiliateCodeService) GetOrCreatePrimary(ctx context.Context, userID primitive.ObjectID) (*models.AffiliateCode, error) {
	// First engine access for a user also seeds the trimmed profile slice the
	// engine reads multiplier overrides from.
	if _, err := s.userRepo.EnsureExists(ctx, userID, ""); err != nil {
		return nil, fmt.Errorf("failed to ensure user record: %w", err)
	}

	existing, err := s.codeRepo.GetPrimaryByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up primary code: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	code := &models.AffiliateCode{
		UserID: userID,
		Code:   utils.GenerateAffiliateCode(),
		Status: models.CodeStatusActive,
	}

	if err := s.createWithRetry(ctx, code); err != nil {
		return nil, err
	}

	s.logger.WithUserID(userID).WithCode(code.Code).Info("Issued primary affiliate code")
	return code, nil
}

func (s *affiliateCodeService) CreateCampaignCode(ctx context.Context, userID primitive.ObjectID, campaignName string, targetType models.TargetType, targetID *primitive.ObjectID) (*models.AffiliateCode, error) {
	if campaignName == "" {
		return nil, fmt.Errorf("campaign name is required")
	}
	if len(campaignName) > utils.MaxCampaignNameLength {
		return nil, fmt.Errorf("campaign name exceeds %d characters", utils.MaxCampaignNameLength)
	}

	existing, err := s.codeRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list codes: %w", err)
	}
	if len(existing) >= utils.MaxCodesPerUser {
		return nil, fmt.Errorf("code limit reached (%d)", utils.MaxCodesPerUser)
	}

	code := &models.AffiliateCode{
		UserID:       userID,
		Code:         utils.GenerateAffiliateCode(),
		CampaignName: campaignName,
		TargetType:   targetType,
		TargetID:     targetID,
		Status:       models.CodeStatusActive,
	}

	if err := s.createWithRetry(ctx, code); err != nil {
		return nil, err
	}

	s.logger.WithUserID(userID).WithCode(code.Code).WithField("campaign", campaignName).Info("Issued campaign code")
	return code, nil
}

// createWithRetry regenerates the code string on a collision with the unique
// code index.
func (s *affiliateCodeService) createWithRetry(ctx context.Context, code *models.AffiliateCode) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.codeRepo.Create(ctx, code)
		if err == nil {
			return nil
		}
		if !interfaces.IsDuplicate(err) {
			return fmt.Errorf("failed to create affiliate code: %w", err)
		}
		code.Code = utils.GenerateAffiliateCode()
	}
	return fmt.Errorf("failed to create affiliate code: %w", err)
}

func (s *affiliateCodeService) GetByCode(ctx context.Context, code string) (*models.AffiliateCode, error) {
	affiliateCode, err := s.codeRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up affiliate code: %w", err)
	}
	if affiliateCode == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCode, code)
	}
	return affiliateCode, nil
}

func (s *affiliateCodeService) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.AffiliateCode, error) {
	return s.codeRepo.GetByUser(ctx, userID)
}

func (s *affiliateCodeService) SetStatus(ctx context.Context, userID primitive.ObjectID, code string, status models.CodeStatus) error {
	affiliateCode, err := s.codeRepo.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to look up affiliate code: %w", err)
	}
	if affiliateCode == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCode, code)
	}
	if affiliateCode.UserID != userID {
		return fmt.Errorf("code %s does not belong to user", code)
	}

	if err := s.codeRepo.UpdateStatus(ctx, affiliateCode.ID, status); err != nil {
		return fmt.Errorf("failed to update code status: %w", err)
	}

	return nil
}

func (s *affiliateCodeService) List(ctx context.Context, params *utils.PaginationParams) ([]*models.AffiliateCode, int64, error) {
	return s.codeRepo.List(ctx, params)
}
