// Package errors maps domain errors onto transport responses without leaking
// internals.
package errors

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rahulmehra/vyaparhub/pkg/domain"
	"github.com/rahulmehra/vyaparhub/pkg/models"
)

// ValidationError returns a generic validation error
func ValidationError(c echo.Context, err error) error {
	msg := "Invalid request data. Please check your input and try again."
	var de *domain.DomainError
	if errors.As(err, &de) && de.Code == domain.ErrCodeValidation {
		msg = de.Message
	}
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: msg,
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	c.Logger().Errorf("internal error on %s: %v", c.Request().URL.Path, err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// FromDomain maps a domain error to the right HTTP response. Unknown errors
// become 500s with no detail exposed.
func FromDomain(c echo.Context, err error) error {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return InternalError(c, err)
	}

	switch de.Code {
	case domain.ErrCodeValidation:
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: de.Message,
		})
	case domain.ErrCodeNotFound:
		return c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: de.Message,
		})
	case domain.ErrCodeSignatureMismatch:
		// Deliberately uninformative: no hint about why verification failed.
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "verification_failed",
			Message: "Payment verification failed.",
		})
	case domain.ErrCodeAlreadyProcessed:
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "already_processed",
			Message: de.Message,
		})
	case domain.ErrCodeGatewayUnavailable:
		return c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "gateway_unavailable",
			Message: de.Message,
		})
	case domain.ErrCodeLimitExceeded:
		return c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "limit_exceeded",
			Message: de.Message,
		})
	case domain.ErrCodeUnauthorized:
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: de.Message,
		})
	case domain.ErrCodeForbidden:
		return c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "forbidden",
			Message: de.Message,
		})
	case domain.ErrCodeConflict:
		return c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "conflict",
			Message: de.Message,
		})
	default:
		return InternalError(c, err)
	}
}
