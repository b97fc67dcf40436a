package handlers

import (
	"errors"
	"net/http"
	"time"

	"gorefer/internal/models"
	"gorefer/internal/services"
	"gorefer/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AffiliateHandler struct {
	codeService        services.AffiliateCodeService
	attributionService services.AttributionService
	referralService    services.ReferralService
	commissionService  services.CommissionService
	multiplierService  services.MultiplierService
	tierService        services.TierService
	ledgerService      services.LedgerService
	settingsService    services.SettingsService
}

func NewAffiliateHandler(
	codeService services.AffiliateCodeService,
	attributionService services.AttributionService,
	referralService services.ReferralService,
	commissionService services.CommissionService,
	multiplierService services.MultiplierService,
	tierService services.TierService,
	ledgerService services.LedgerService,
	settingsService services.SettingsService,
) *AffiliateHandler {
	return &AffiliateHandler{
		codeService:        codeService,
		attributionService: attributionService,
		referralService:    referralService,
		commissionService:  commissionService,
		multiplierService:  multiplierService,
		tierService:        tierService,
		ledgerService:      ledgerService,
		settingsService:    settingsService,
	}
}

// RecordClick registers a click on an affiliate code. Public endpoint: the
// visitor is usually not authenticated yet.
func (h *AffiliateHandler) RecordClick(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		utils.BadRequestResponse(c, "Affiliate code is required")
		return
	}

	fingerprint := c.GetHeader("X-Client-Fingerprint")
	if fingerprint == "" {
		fingerprint = utils.GenerateFingerprint()
	}

	err := h.attributionService.RecordClick(c.Request.Context(), code, fingerprint)
	if err != nil {
		if errors.Is(err, services.ErrUnknownCode) {
			utils.NotFoundResponse(c, "Affiliate code")
			return
		}
		if errors.Is(err, services.ErrCodePaused) {
			utils.ConflictResponse(c, "Affiliate code is paused")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "CLICK_RECORD_FAILED", "Failed to record click: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Click recorded", gin.H{"code": code})
}

// GetPrimaryCode returns the caller's campaignless code, creating it on first
// access.
func (h *AffiliateHandler) GetPrimaryCode(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	code, err := h.codeService.GetOrCreatePrimary(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CODE_FETCH_FAILED", "Failed to get affiliate code: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Affiliate code retrieved successfully", code)
}

// CreateCampaignCode creates an additional named code for the caller.
func (h *AffiliateHandler) CreateCampaignCode(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request struct {
		CampaignName string            `json:"campaign_name" binding:"required"`
		TargetType   models.TargetType `json:"target_type"`
		TargetID     string            `json:"target_id"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	var targetID *primitive.ObjectID
	if request.TargetID != "" {
		oid, err := primitive.ObjectIDFromHex(request.TargetID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid target ID")
			return
		}
		targetID = &oid
	}

	code, err := h.codeService.CreateCampaignCode(c.Request.Context(), userID, request.CampaignName, request.TargetType, targetID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CODE_CREATE_FAILED", "Failed to create campaign code: "+err.Error())
		return
	}

	utils.CreatedResponse(c, "Campaign code created successfully", code)
}

// ListCodes returns all codes owned by the caller.
func (h *AffiliateHandler) ListCodes(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	codes, err := h.codeService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CODE_LIST_FAILED", "Failed to list codes: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Codes retrieved successfully", codes)
}

// SetCodeStatus pauses or resumes one of the caller's codes.
func (h *AffiliateHandler) SetCodeStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	code := c.Param("code")

	var request struct {
		Status models.CodeStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if request.Status != models.CodeStatusActive && request.Status != models.CodeStatusPaused {
		utils.BadRequestResponse(c, "Status must be active or paused")
		return
	}

	err := h.codeService.SetStatus(c.Request.Context(), userID, code, request.Status)
	if err != nil {
		if errors.Is(err, services.ErrUnknownCode) {
			utils.NotFoundResponse(c, "Affiliate code")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "CODE_STATUS_FAILED", "Failed to update code status: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Code status updated successfully", nil)
}

// AttributeSignup converts the caller's signup into a referral against the
// given code. Retrying with the same code owner returns the existing referral.
func (h *AffiliateHandler) AttributeSignup(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	referral, err := h.referralService.Attribute(c.Request.Context(), request.Code, userID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownCode):
			utils.NotFoundResponse(c, "Affiliate code")
		case errors.Is(err, services.ErrNoClick), errors.Is(err, services.ErrAttributionExpired):
			utils.ErrorResponse(c, http.StatusUnprocessableEntity, "ATTRIBUTION_EXPIRED", err.Error())
		case errors.Is(err, services.ErrDuplicateReferral):
			utils.ConflictResponse(c, "Referral already exists")
		default:
			utils.ErrorResponse(c, http.StatusInternalServerError, "ATTRIBUTION_FAILED", "Failed to attribute signup: "+err.Error())
		}
		return
	}

	utils.CreatedResponse(c, "Signup attributed successfully", referral)
}

// CompleteOnboarding is called when the referred user finishes onboarding.
func (h *AffiliateHandler) CompleteOnboarding(c *gin.Context) {
	referralID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid referral ID")
		return
	}

	referral, err := h.referralService.CompleteOnboarding(c.Request.Context(), referralID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "ONBOARDING_FAILED", "Failed to complete onboarding: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Onboarding completed successfully", referral)
}

// ListReferrals returns the caller's referrals, newest first.
func (h *AffiliateHandler) ListReferrals(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	referrals, total, err := h.referralService.ListByAffiliate(c.Request.Context(), userID, params)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "REFERRAL_LIST_FAILED", "Failed to list referrals: "+err.Error())
		return
	}

	utils.SuccessResponseWithMeta(c, "Referrals retrieved successfully", referrals, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// GetMultipliers returns the caller's current GGG and RP multipliers.
func (h *AffiliateHandler) GetMultipliers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	multipliers, err := h.multiplierService.Resolve(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "MULTIPLIER_FETCH_FAILED", "Failed to resolve multipliers: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Multipliers retrieved successfully", multipliers)
}

// GetCommission returns the caller's current commission tier, resolved from
// the live qualifying count. The percent on a new referral may differ from an
// existing referral's snapshot.
func (h *AffiliateHandler) GetCommission(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	setting, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "COMMISSION_FETCH_FAILED", "Failed to load settings: "+err.Error())
		return
	}

	tier, count, err := h.commissionService.ResolveForUser(c.Request.Context(), setting, userID)
	if err != nil && !errors.Is(err, services.ErrInvalidTierConfig) {
		utils.ErrorResponse(c, http.StatusInternalServerError, "COMMISSION_FETCH_FAILED", "Failed to resolve commission tier: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Commission tier retrieved successfully", gin.H{
		"qualifying_referrals": count,
		"threshold":            tier.Threshold,
		"commission_percent":   tier.Percent,
	})
}

// GetTierProgress returns the caller's affiliate tier and progress to the
// next one.
func (h *AffiliateHandler) GetTierProgress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	progress, err := h.tierService.ProgressForUser(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "TIER_FETCH_FAILED", "Failed to resolve tier progress: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Tier progress retrieved successfully", progress)
}

// GetWallet returns the caller's reward balances.
func (h *AffiliateHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	wallet, err := h.ledgerService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "WALLET_FETCH_FAILED", "Failed to get wallet: "+err.Error())
		return
	}
	if wallet == nil {
		wallet = &models.Wallet{UserID: userID}
	}

	utils.SuccessResponse(c, "Wallet retrieved successfully", wallet)
}

// ListLedgerEntries returns the caller's reward credit history.
func (h *AffiliateHandler) ListLedgerEntries(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	entries, total, err := h.ledgerService.ListEntries(c.Request.Context(), userID, params)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "LEDGER_LIST_FAILED", "Failed to list ledger entries: "+err.Error())
		return
	}

	utils.SuccessResponseWithMeta(c, "Ledger entries retrieved successfully", entries, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// currentUserID pulls the authenticated user out of the gin context. Writes
// the error response itself so handlers can simply return on !ok.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, false
	}

	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		utils.BadRequestResponse(c, "Invalid user ID")
		return primitive.NilObjectID, false
	}

	return userObjectID, true
}
