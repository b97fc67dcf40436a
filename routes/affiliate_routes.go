package routes

import (
	handlers "gorefer/internal/handlers/shared"
	"gorefer/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupAffiliateRoutes sets up routes for affiliate codes, referrals and
// rewards.
func SetupAffiliateRoutes(r *gin.RouterGroup, jwtSecret string, affiliateHandler *handlers.AffiliateHandler, adminHandler *handlers.AdminHandler) {
	// Public click tracking (no auth required)
	r.POST("/r/:code/click", affiliateHandler.RecordClick)

	// Protected affiliate routes (require authentication)
	affiliate := r.Group("/affiliate")
	affiliate.Use(middleware.AuthRequired(jwtSecret))
	{
		// Codes
		affiliate.GET("/code", affiliateHandler.GetPrimaryCode)
		affiliate.GET("/codes", affiliateHandler.ListCodes)
		affiliate.POST("/codes", affiliateHandler.CreateCampaignCode)
		affiliate.PUT("/codes/:code/status", affiliateHandler.SetCodeStatus)

		// Referral lifecycle
		affiliate.POST("/referrals/attribute", affiliateHandler.AttributeSignup)
		affiliate.PUT("/referrals/:id/onboarding-complete", affiliateHandler.CompleteOnboarding)
		affiliate.GET("/referrals", affiliateHandler.ListReferrals)

		// Reward state
		affiliate.GET("/commission", affiliateHandler.GetCommission)
		affiliate.GET("/multipliers", affiliateHandler.GetMultipliers)
		affiliate.GET("/tier", affiliateHandler.GetTierProgress)
		affiliate.GET("/wallet", affiliateHandler.GetWallet)
		affiliate.GET("/wallet/entries", affiliateHandler.ListLedgerEntries)
	}

	// Admin routes for program management
	admin := r.Group("/admin/affiliate")
	admin.Use(middleware.AuthRequired(jwtSecret), middleware.AdminRequired())
	{
		admin.GET("/settings", adminHandler.GetSettings)
		admin.PUT("/settings", adminHandler.UpdateSettings)

		admin.GET("/codes", adminHandler.ListCodes)
		admin.GET("/referrals/:id", adminHandler.GetReferral)
		admin.POST("/referrals/:id/earnings", adminHandler.RecordEarning)
		admin.PUT("/referrals/:id/paid", adminHandler.MarkPaid)
		admin.PUT("/referrals/:id/suspend", adminHandler.SuspendReferral)
		admin.PUT("/referrals/:id/reactivate", adminHandler.ReactivateReferral)

		admin.GET("/users/:id/referrals", adminHandler.ListUserReferrals)
		admin.PUT("/users/:id/multipliers", adminHandler.SetMultiplierOverride)
	}
}
