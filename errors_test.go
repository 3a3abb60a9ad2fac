package main

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorCodePassesThroughTaxonomy(t *testing.T) {
	if got := errorCode(errInsufficientFunds); got != "INSUFFICIENT_FUNDS" {
		t.Errorf("errorCode = %q", got)
	}
	if got := errorCode(errChallengeNotClaimable); got != "CHALLENGE_NOT_CLAIMABLE" {
		t.Errorf("errorCode = %q", got)
	}
}

func TestErrorCodeUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("settle trade: %w", errInsufficientInventory)
	if got := errorCode(wrapped); got != "INSUFFICIENT_INVENTORY" {
		t.Errorf("errorCode(wrapped) = %q", got)
	}
}

func TestErrorCodeInfrastructureFallback(t *testing.T) {
	if got := errorCode(errors.New("connection refused")); got != "STORE_UNAVAILABLE" {
		t.Errorf("errorCode = %q, want STORE_UNAVAILABLE", got)
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{"INSUFFICIENT_FUNDS", http.StatusBadRequest},
		{"INVALID_OFFER_STATE", http.StatusBadRequest},
		{"UNAUTHORIZED", http.StatusUnauthorized},
		{"SESSION_EXPIRED", http.StatusUnauthorized},
		{"USERNAME_TAKEN", http.StatusConflict},
		{"LISTING_NOT_FOUND", http.StatusNotFound},
		{"TRADE_NOT_FOUND", http.StatusNotFound},
		{"ACHIEVEMENT_NOT_FOUND", http.StatusNotFound},
		{"STORE_UNAVAILABLE", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got := errorStatus(tc.code); got != tc.want {
			t.Errorf("errorStatus(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}
