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

type AdminHandler struct {
	settingsService   services.SettingsService
	referralService   services.ReferralService
	multiplierService services.MultiplierService
	codeService       services.AffiliateCodeService
}

func NewAdminHandler(
	settingsService services.SettingsService,
	referralService services.ReferralService,
	multiplierService services.MultiplierService,
	codeService services.AffiliateCodeService,
) *AdminHandler {
	return &AdminHandler{
		settingsService:   settingsService,
		referralService:   referralService,
		multiplierService: multiplierService,
		codeService:       codeService,
	}
}

// GetSettings returns the active program settings.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	setting, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SETTINGS_FETCH_FAILED", "Failed to get settings: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Settings retrieved successfully", setting)
}

// UpdateSettings replaces the program settings. Existing referrals keep
// their snapshotted commission percent.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var setting models.AffiliateSetting
	if err := c.ShouldBindJSON(&setting); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	updated, err := h.settingsService.Update(c.Request.Context(), &setting)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SETTINGS_UPDATE_FAILED", "Failed to update settings: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Settings updated successfully", updated)
}

// GetReferral returns one referral by ID.
func (h *AdminHandler) GetReferral(c *gin.Context) {
	referralID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid referral ID")
		return
	}

	referral, err := h.referralService.GetByID(c.Request.Context(), referralID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "REFERRAL_FETCH_FAILED", "Failed to get referral: "+err.Error())
		return
	}
	if referral == nil {
		utils.NotFoundResponse(c, "Referral")
		return
	}

	utils.SuccessResponse(c, "Referral retrieved successfully", referral)
}

// RecordEarning applies one qualifying earning event of the referred user to
// the referral. event_id deduplicates upstream retries.
func (h *AdminHandler) RecordEarning(c *gin.Context) {
	referralID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid referral ID")
		return
	}

	var request struct {
		GrossAmount float64 `json:"gross_amount" binding:"required,gt=0"`
		EventID     string  `json:"event_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.referralService.RecordQualifyingEarning(c.Request.Context(), referralID, request.GrossAmount, request.EventID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCommissionExpired):
			utils.ErrorResponse(c, http.StatusUnprocessableEntity, "COMMISSION_EXPIRED", err.Error())
		case errors.Is(err, services.ErrInvalidTransition):
			utils.ConflictResponse(c, err.Error())
		case errors.Is(err, services.ErrConcurrentModification):
			utils.ErrorResponse(c, http.StatusConflict, "CONCURRENT_MODIFICATION", err.Error())
		default:
			utils.ErrorResponse(c, http.StatusInternalServerError, "EARNING_FAILED", "Failed to record earning: "+err.Error())
		}
		return
	}
	if result == nil {
		// Duplicate event, already applied.
		utils.SuccessResponse(c, "Earning event already recorded", nil)
		return
	}

	utils.SuccessResponse(c, "Earning recorded successfully", result)
}

// MarkPaid settles the referral and credits the flat tier reward.
func (h *AdminHandler) MarkPaid(c *gin.Context) {
	referralID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid referral ID")
		return
	}

	referral, err := h.referralService.MarkPaid(c.Request.Context(), referralID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "MARK_PAID_FAILED", "Failed to mark referral paid: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Referral marked paid successfully", referral)
}

// SuspendReferral freezes a referral; it stops earning and counting.
func (h *AdminHandler) SuspendReferral(c *gin.Context) {
	referralID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid referral ID")
		return
	}

	referral, err := h.referralService.Suspend(c.Request.Context(), referralID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "SUSPEND_FAILED", "Failed to suspend referral: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Referral suspended successfully", referral)
}

// ReactivateReferral restores a suspended referral to its prior status.
func (h *AdminHandler) ReactivateReferral(c *gin.Context) {
	referralID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid referral ID")
		return
	}

	referral, err := h.referralService.Reactivate(c.Request.Context(), referralID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "REACTIVATE_FAILED", "Failed to reactivate referral: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Referral reactivated successfully", referral)
}

// SetMultiplierOverride pins a user's multipliers. Omitted values clear the
// corresponding override.
func (h *AdminHandler) SetMultiplierOverride(c *gin.Context) {
	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID")
		return
	}

	var request struct {
		GGG *float64 `json:"ggg_multiplier"`
		RP  *float64 `json:"rp_multiplier"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	err = h.multiplierService.SetOverride(c.Request.Context(), userID, request.GGG, request.RP)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "OVERRIDE_FAILED", "Failed to set multiplier override: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Multiplier override updated successfully", nil)
}

// ListCodes returns all affiliate codes, paginated.
func (h *AdminHandler) ListCodes(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	codes, total, err := h.codeService.List(c.Request.Context(), params)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CODE_LIST_FAILED", "Failed to list codes: "+err.Error())
		return
	}

	utils.SuccessResponseWithMeta(c, "Codes retrieved successfully", codes, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// ListUserReferrals returns a specific user's referrals.
func (h *AdminHandler) ListUserReferrals(c *gin.Context) {
	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID")
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
