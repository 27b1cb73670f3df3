package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/opsrelay/opsrelay/pkg/apierrors"
	"github.com/opsrelay/opsrelay/pkg/intake"
)

// mapServiceError maps the apierrors sentinel taxonomy to HTTP status
// codes per spec §7.
func mapServiceError(err error) *echo.HTTPError {
	if apierrors.IsValidationError(err) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, apierrors.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, apierrors.ErrInvalidTransition) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, apierrors.ErrAlreadyExists) {
		return echo.NewHTTPError(http.StatusConflict, "resource already exists")
	}
	if errors.Is(err, intake.ErrInvalidPayload) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, apierrors.ErrUnauthorizedSignature) {
		return echo.NewHTTPError(http.StatusUnauthorized, "signature verification failed")
	}
	if errors.Is(err, apierrors.ErrTransient) {
		return echo.NewHTTPError(http.StatusInternalServerError, "transient dependency failure")
	}

	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
