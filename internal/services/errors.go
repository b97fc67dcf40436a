package services

import "errors"

// Engine error taxonomy. All of these are local to a single referral except
// ErrInvalidTierConfig, which describes the global rule set and is surfaced to
// operators only.
var (
	// ErrAttributionExpired means the most recent click is older than the
	// attribution window. The signup simply goes untracked; this is not a
	// fault.
	ErrAttributionExpired = errors.New("attribution window expired")

	// ErrDuplicateReferral means a referral already exists for the
	// (affiliate, referred user) pair. Retried attributions must treat this
	// as a no-op, never as a user-visible failure.
	ErrDuplicateReferral = errors.New("referral already exists for pair")

	// ErrCommissionExpired means an earning event arrived after the
	// referral's commission window. The referral stays alive but credits
	// nothing.
	ErrCommissionExpired = errors.New("commission window expired")

	// ErrInvalidTierConfig flags a non-monotonic or empty tier table. The
	// resolver still produces a deterministic answer; the error is a warning
	// signal for admin tooling.
	ErrInvalidTierConfig = errors.New("invalid tier configuration")

	// ErrConcurrentModification means a conditional update lost its race and
	// retries were exhausted. Nothing has been partially applied.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrUnknownCode means a click or attribution referenced a code that does
	// not exist (strict click policy only).
	ErrUnknownCode = errors.New("unknown affiliate code")

	// ErrCodePaused means the referenced code is not accepting clicks.
	ErrCodePaused = errors.New("affiliate code is paused")

	// ErrInvalidTransition means the referral is not in a status that allows
	// the requested operation.
	ErrInvalidTransition = errors.New("invalid referral status transition")

	// ErrNoClick means the code has never been clicked, so there is nothing
	// to attribute against.
	ErrNoClick = errors.New("no click recorded for code")
)
