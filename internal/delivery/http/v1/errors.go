package v1

import (
	"errors"
	"net/http"

	"qkart-storefront/internal/domain"
	"qkart-storefront/pkg/logger"
	"qkart-storefront/pkg/utils"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrAuth):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyInCart):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto an HTTP status and the user-facing message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	l := logger.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		l.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	utils.WriteError(w, status, domain.UserMessage(err))
}

func writeBadBody(w http.ResponseWriter) {
	utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
}
