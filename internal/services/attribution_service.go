package services

import (
	"context"
	"fmt"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/repositories/interfaces"
	"gorefer/internal/utils"
	"gorefer/pkg/logger"
)

// Attribution is a successful pairing of a signup with the code that earns
// credit for it. It is a precondition for creating a Referral, not the
// Referral itself.
type Attribution struct {
	Code  *models.AffiliateCode
	Click *models.Click
}

// AttributionService records clicks against affiliate codes and decides
// whether a later signup falls inside the attribution window.
type AttributionService interface {
	// RecordClick appends an immutable click and bumps the code's click
	// counter. Unknown or paused codes are rejected under the strict policy
	// and silently dropped otherwise.
	RecordClick(ctx context.Context, code, fingerprint string) error

	// Attribute finds the most recent click for the code before now and
	// checks it against the attribution window of the given snapshot.
	// Returns ErrAttributionExpired when the click is too old.
	Attribute(ctx context.Context, setting *models.AffiliateSetting, code string, now time.Time) (*Attribution, error)
}

type attributionService struct {
	codeRepo     interfaces.AffiliateCodeRepository
	clickRepo    interfaces.ClickRepository
	cache        CacheService
	strictClicks bool
	logger       *logger.Logger
}

func NewAttributionService(
	codeRepo interfaces.AffiliateCodeRepository,
	clickRepo interfaces.ClickRepository,
	cache CacheService,
	strictClicks bool,
	log *logger.Logger,
) AttributionService {
	return &attributionService{
		codeRepo:     codeRepo,
		clickRepo:    clickRepo,
		cache:        cache,
		strictClicks: strictClicks,
		logger:       log,
	}
}

func (s *attributionService) RecordClick(ctx context.Context, code, fingerprint string) error {
	affiliateCode, err := s.codeRepo.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to look up affiliate code: %w", err)
	}

	if affiliateCode == nil {
		if s.strictClicks {
			return fmt.Errorf("%w: %s", ErrUnknownCode, code)
		}
		s.logger.WithCode(code).Debug("Dropping click for unknown code")
		return nil
	}

	if affiliateCode.Status == models.CodeStatusPaused {
		if s.strictClicks {
			return fmt.Errorf("%w: %s", ErrCodePaused, code)
		}
		s.logger.WithCode(code).Debug("Dropping click for paused code")
		return nil
	}

	click := &models.Click{
		Code:        affiliateCode.Code,
		Fingerprint: fingerprint,
		ClickedAt:   time.Now(),
	}

	if err := s.clickRepo.Create(ctx, click); err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	if err := s.codeRepo.IncrementCounters(ctx, affiliateCode.ID, map[string]interface{}{"clicks": 1}); err != nil {
		s.logger.WithCode(code).WithError(err).Warn("Failed to bump click counter")
	}

	// Rolling per-day click rate, for abuse monitoring. Best effort.
	if s.cache != nil {
		rateKey := utils.CacheCodePrefix + affiliateCode.Code + ":clicks:" + click.ClickedAt.Format("2006-01-02")
		if _, err := s.cache.Increment(ctx, rateKey, utils.ClickRateCounterTTL); err != nil {
			s.logger.WithCode(code).WithError(err).Warn("Failed to bump click rate counter")
		}
	}

	s.logger.WithCode(affiliateCode.Code).WithField("type", utils.EventClickRecorded).Debug("Click recorded")

	return nil
}

func (s *attributionService) Attribute(ctx context.Context, setting *models.AffiliateSetting, code string, now time.Time) (*Attribution, error) {
	affiliateCode, err := s.codeRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up affiliate code: %w", err)
	}
	if affiliateCode == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCode, code)
	}

	click, err := s.clickRepo.GetLatestByCode(ctx, affiliateCode.Code, now)
	if err != nil {
		return nil, fmt.Errorf("failed to look up latest click: %w", err)
	}
	if click == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoClick, code)
	}

	if now.Sub(click.ClickedAt) > setting.AttributionWindow() {
		return nil, fmt.Errorf("%w: clicked at %s", ErrAttributionExpired, click.ClickedAt.Format(time.RFC3339))
	}

	return &Attribution{
		Code:  affiliateCode,
		Click: click,
	}, nil
}
