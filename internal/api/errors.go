package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// APIError is the error body returned by every endpoint.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap maps the wire code back to the domain sentinel so callers on the
// client side can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "invalid_kind":
		return domain.ErrInvalidKind
	case "invalid_domain":
		return domain.ErrInvalidDomain
	case "malformed_record":
		return domain.ErrMalformedRecord
	case "read_only_key":
		return domain.ErrReadOnlyKey
	}
	return nil
}

func newAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func badRequest(code, message string) *APIError {
	return newAPIError(http.StatusBadRequest, code, message)
}

// fromError classifies a domain error for the wire.
func fromError(err error) *APIError {
	switch {
	case errors.Is(err, domain.ErrInvalidKind):
		return badRequest("invalid_kind", err.Error())
	case errors.Is(err, domain.ErrInvalidDomain):
		return badRequest("invalid_domain", err.Error())
	case errors.Is(err, domain.ErrMalformedRecord):
		return badRequest("malformed_record", err.Error())
	case errors.Is(err, domain.ErrReadOnlyKey):
		return newAPIError(http.StatusForbidden, "read_only_key", err.Error())
	default:
		return newAPIError(http.StatusServiceUnavailable, "unavailable", err.Error())
	}
}

func writeError(c *gin.Context, apiErr *APIError) {
	c.JSON(apiErr.Status, gin.H{
		"error": gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}
