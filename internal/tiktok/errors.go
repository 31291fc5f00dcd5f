// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tiktok

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure classes surfaced by the Research API. Match them with errors.Is;
// use errors.As with *APIError for the vendor code and log id.
var (
	ErrAuth          = errors.New("tiktok: authentication failed")
	ErrRateLimited   = errors.New("tiktok: rate limit exceeded")
	ErrInvalidParams = errors.New("tiktok: invalid request parameters")
	ErrServer        = errors.New("tiktok: server error")
)

// APIError is a non-ok response from the Research API.
type APIError struct {
	Status  int
	Code    string
	Message string
	LogID   string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("tiktok API error (HTTP %d", e.Status)
	if e.Code != "" {
		msg += ", " + e.Code
	}
	msg += ")"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.LogID != "" {
		msg += " [log_id " + e.LogID + "]"
	}
	return msg
}

// Unwrap maps the vendor code, falling back to the HTTP status, onto one of
// the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "access_token_invalid", "invalid_client", "unauthorized_client",
		"scope_not_authorized", "scope_permission_missed":
		return ErrAuth
	case "rate_limit_exceeded":
		return ErrRateLimited
	case "invalid_params", "invalid_request":
		return ErrInvalidParams
	case "internal_error":
		return ErrServer
	}
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return ErrAuth
	case e.Status == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Status == http.StatusBadRequest:
		return ErrInvalidParams
	case e.Status >= 500:
		return ErrServer
	}
	return nil
}
