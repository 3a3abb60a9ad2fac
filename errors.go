package main

import (
	"errors"
	"net/http"
)

// Economy error taxonomy. The error text doubles as the machine code
// returned to clients in the JSON error field.
var (
	errInsufficientFunds       = errors.New("INSUFFICIENT_FUNDS")
	errInsufficientInventory   = errors.New("INSUFFICIENT_INVENTORY")
	errListingNotFound         = errors.New("LISTING_NOT_FOUND")
	errTradeNotFound           = errors.New("TRADE_NOT_FOUND")
	errSelfTradeForbidden      = errors.New("SELF_TRADE_FORBIDDEN")
	errInvalidOfferState       = errors.New("INVALID_OFFER_STATE")
	errUnauthorized            = errors.New("UNAUTHORIZED")
	errAchievementNotFound     = errors.New("ACHIEVEMENT_NOT_FOUND")
	errAchievementNotCompleted = errors.New("ACHIEVEMENT_NOT_COMPLETED")
	errChallengeNotClaimable   = errors.New("CHALLENGE_NOT_CLAIMABLE")
	errStoreUnavailable        = errors.New("STORE_UNAVAILABLE")

	errInvalidUsername    = errors.New("INVALID_USERNAME")
	errInvalidPassword    = errors.New("INVALID_PASSWORD")
	errUsernameTaken      = errors.New("USERNAME_TAKEN")
	errInvalidCredentials = errors.New("INVALID_CREDENTIALS")
	errSessionExpired     = errors.New("SESSION_EXPIRED")
)

var knownErrors = []error{
	errInsufficientFunds,
	errInsufficientInventory,
	errListingNotFound,
	errTradeNotFound,
	errSelfTradeForbidden,
	errInvalidOfferState,
	errUnauthorized,
	errAchievementNotFound,
	errAchievementNotCompleted,
	errChallengeNotClaimable,
	errStoreUnavailable,
	errInvalidUsername,
	errInvalidPassword,
	errUsernameTaken,
	errInvalidCredentials,
	errSessionExpired,
}

// errorCode returns the machine code for a taxonomy error. Anything
// outside the taxonomy is an infrastructure failure and reported as
// STORE_UNAVAILABLE; the caller is expected to log the underlying error.
func errorCode(err error) string {
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return errStoreUnavailable.Error()
}

func errorStatus(code string) int {
	switch code {
	case "INSUFFICIENT_FUNDS", "INSUFFICIENT_INVENTORY", "SELF_TRADE_FORBIDDEN",
		"INVALID_OFFER_STATE", "ACHIEVEMENT_NOT_COMPLETED", "CHALLENGE_NOT_CLAIMABLE":
		return http.StatusBadRequest
	case "UNAUTHORIZED", "INVALID_CREDENTIALS", "SESSION_EXPIRED":
		return http.StatusUnauthorized
	case "USERNAME_TAKEN":
		return http.StatusConflict
	case "LISTING_NOT_FOUND", "TRADE_NOT_FOUND", "ACHIEVEMENT_NOT_FOUND":
		return http.StatusNotFound
	case "STORE_UNAVAILABLE":
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
