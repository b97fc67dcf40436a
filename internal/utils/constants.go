package utils

import "time"

// Application Constants
const (
	AppName    = "GoRefer"
	AppVersion = "1.0.0"

	// Default values
	DefaultTimeZone = "UTC"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Affiliate codes
	AffiliateCodeLength   = 8
	MaxCampaignNameLength = 64
	MaxCodesPerUser       = 20

	// Earnings
	EarningLockTTL        = 10 * time.Second
	EarningSeenTTL        = 24 * time.Hour
	EarningRetryAttempts  = 3
	EarningRetryBackoff   = 50 * time.Millisecond
	SettingsCacheTTL      = time.Minute
	AttributionGuardTTL   = 30 * time.Second
	NotificationTimeout   = 30 * time.Second
	ClickRateCounterTTL   = 48 * time.Hour
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidToken     = "invalid token"
	ErrInvalidInput     = "invalid input"
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrNotFound         = "not found"
	ErrConflict         = "conflict"
	ErrValidationFailed = "validation failed"
)

// Cache Keys
const (
	CacheSettingsKey       = "affiliate:settings"
	CacheCodePrefix        = "affiliate:code:"
	CacheEarningLockPrefix = "affiliate:earning_lock:"
	CacheAttributePrefix   = "affiliate:attribute:"
)

// Event Types
const (
	EventClickRecorded     = "click_recorded"
	EventSignupAttributed  = "signup_attributed"
	EventReferralActivated = "referral_activated"
	EventCommissionEarned  = "commission_earned"
	EventReferralPaid      = "referral_paid"
	EventTierUp            = "tier_up"
)
