package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrValidation, http.StatusBadRequest, "validation_error"},
	{domain.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{domain.ErrInvalidCode, http.StatusBadRequest, "invalid_code"},
	{domain.ErrExpired, http.StatusBadRequest, "code_expired"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrPaymentLinkFailed, http.StatusBadGateway, "payment_link_failed"},
	{domain.ErrDeliveryFailed, http.StatusBadGateway, "delivery_failed"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
}

// statusFor maps a service error onto an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func abortWithError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		// Dependency details stay in the log.
		msg = http.StatusText(status)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Message: msg})
}

// bindError turns a gin binding failure into a validation error.
func bindError(err error) error {
	return &domain.ValidationError{Field: "body", Reason: err.Error()}
}
