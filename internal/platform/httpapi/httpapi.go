// Package httpapi holds the response envelope and the error-to-status
// translation shared by the domain handlers.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hemorec/hemorec/internal/platform/apperr"
)

// Envelope is the uniform response body: the HTTP status repeated in the
// payload plus the data itself.
type Envelope struct {
	Code int         `json:"code"`
	Data interface{} `json:"data"`
}

// Respond writes data wrapped in the standard envelope.
func Respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Code: status, Data: data})
}

// Error translates a domain error into an echo HTTP error carrying the
// proper status. Unknown errors become 500s with a generic message so
// internals never leak to clients.
func Error(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrDuplicateCode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrReferencedEntityMissing):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrCodeNotFound), errors.Is(err, apperr.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrInUse):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
