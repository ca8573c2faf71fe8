package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/guardbook/internal/auth"
	"github.com/smallbiznis/guardbook/internal/reconcile/domain"
	"github.com/smallbiznis/guardbook/pkg/db/pagination"
)

type errorResponse struct {
	Error string `json:"error"`
}

var (
	ErrNotFound         = errors.New("not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrPayloadTooLarge  = errors.New("request body too large")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrInternal         = errors.New("internal server error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, message := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: message})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError picks the status and the public message. Messages come from
// sentinels only so driver and provider error text never reaches a caller.
func mapError(err error) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, ErrInternal.Error()
	}

	for _, sentinel := range []error{
		domain.ErrMissingWebhookSecret,
		domain.ErrMissingSignature,
		domain.ErrInvalidSignature,
		domain.ErrInvalidPayload,
		pagination.ErrInvalidPageToken,
	} {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest, sentinel.Error()
		}
	}

	switch {
	case auth.IsUnauthorized(err):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, ErrRateLimited.Error()
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, ErrPayloadTooLarge.Error()
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, ErrMethodNotAllowed.Error()
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrNotFound.Error()
	default:
		return http.StatusInternalServerError, ErrInternal.Error()
	}
}

func classifyErrorForLog(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case domain.IsVerificationError(err):
		return "verification"
	case errors.Is(err, domain.ErrMalformedEvent):
		return "malformed_event"
	case auth.IsUnauthorized(err):
		return "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, ErrPayloadTooLarge):
		return "invalid_request"
	case errors.Is(err, ErrMethodNotAllowed),
		errors.Is(err, ErrNotFound):
		return "routing"
	default:
		return "internal"
	}
}
