package handlers

import (
	"errors"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/schoolledger/ledger-api/internal/services"
)

// statusFor maps the service error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrRequestInFlight):
		return http.StatusConflict
	case errors.Is(err, services.ErrInsufficientFunds),
		errors.Is(err, services.ErrIdempotencyKeyReused):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ..., "details": ...}. Server errors are
// attached to the gin context for the request log and sent to Sentry.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body["error"] = verr.Message
		if len(verr.Fields) > 0 {
			body["details"] = verr.Fields
		}
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		if !errors.Is(err, services.ErrIntegrity) {
			body["error"] = "internal server error"
		}
	}

	c.AbortWithStatusJSON(status, body)
}
