// Package handlers defines HTTP-layer error codes used across all endpoints.
//
// This file centralizes the symbolic error codes and the single table mapping
// service-level errors to HTTP responses. Only the synchronous webhook path
// ever maps errors to non-2xx statuses: signature and payload-parse failures.
// Everything that happens in the detached pipeline is terminal to that task
// alone and never changes a webhook response that has already been sent.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/savethebeat/savethebeat/internal/oauthstate"
	"github.com/savethebeat/savethebeat/internal/slack"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeSignatureMissing = "signature_missing"
	ErrCodeSignatureInvalid = "signature_invalid"
	ErrCodeSignatureExpired = "signature_expired"
	ErrCodeStateNotFound    = "oauth_state_not_found"
	ErrCodeStateExpired     = "oauth_state_expired"
	ErrCodeProviderError    = "provider_error"
)

// errorMapping is one row of the error table: a sentinel matched with
// errors.Is, and the response it maps to.
type errorMapping struct {
	match   error
	status  int
	code    string
	message string
}

// errorTable maps each known error kind to a status code and a user-facing
// message. Built once and consulted in order; the first match wins.
var errorTable = []errorMapping{
	{slack.ErrSignatureMissing, http.StatusUnauthorized, ErrCodeSignatureMissing, "missing signature headers"},
	{slack.ErrSignatureExpired, http.StatusUnauthorized, ErrCodeSignatureExpired, "signature expired"},
	{slack.ErrSignatureInvalid, http.StatusUnauthorized, ErrCodeSignatureInvalid, "invalid signature"},
	{oauthstate.ErrStateNotFound, http.StatusBadRequest, ErrCodeStateNotFound, "invalid or expired oauth state"},
	{oauthstate.ErrStateExpired, http.StatusBadRequest, ErrCodeStateExpired, "oauth state expired, please try again"},
}

// failFromError writes the response the error table prescribes for err,
// falling back to a generic 500.
func failFromError(c *gin.Context, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.match) {
			fail(c, m.status, m.code, m.message)
			return
		}
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
}
