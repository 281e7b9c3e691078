// Package rest implements the domain repositories on top of the QKart backend.
package rest

import (
	"errors"
	"net/http"

	"qkart-storefront/internal/domain"
	"qkart-storefront/internal/infrastructure/backend"
)

// mapError translates backend failures into the domain taxonomy. Statuses
// absent from kinds become network errors.
func mapError(err error, kinds map[int]error) error {
	if err == nil {
		return nil
	}
	var statusErr *backend.StatusError
	if !errors.As(err, &statusErr) {
		// Already a domain.ErrNetwork from the client.
		return err
	}
	kind, ok := kinds[statusErr.Status]
	if !ok {
		return domain.WrapError(domain.ErrNetwork, domain.MsgBackendUnreachable, err)
	}
	message := statusErr.Message
	if message == "" {
		message = http.StatusText(statusErr.Status)
	}
	return domain.WrapError(kind, message, err)
}

func isStatus(err error, statuses ...int) bool {
	var statusErr *backend.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	for _, s := range statuses {
		if statusErr.Status == s {
			return true
		}
	}
	return false
}
