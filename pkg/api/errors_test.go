package api

import (
	"fmt"
	"net/http"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"github.com/opsrelay/opsrelay/pkg/apierrors"
	"github.com/opsrelay/opsrelay/pkg/intake"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "validation error maps to 400",
			err:        apierrors.NewValidationError("external_id", "missing"),
			expectCode: http.StatusBadRequest,
			expectMsg:  "missing",
		},
		{
			name:       "not found maps to 404",
			err:        fmt.Errorf("wrapped: %w", apierrors.ErrNotFound),
			expectCode: http.StatusNotFound,
			expectMsg:  "resource not found",
		},
		{
			name:       "invalid transition maps to 400 naming both states",
			err:        apierrors.NewTransitionError("investigating", "open"),
			expectCode: http.StatusBadRequest,
			expectMsg:  "investigating",
		},
		{
			name:       "already exists maps to 409",
			err:        fmt.Errorf("wrapped: %w", apierrors.ErrAlreadyExists),
			expectCode: http.StatusConflict,
			expectMsg:  "resource already exists",
		},
		{
			name:       "invalid webhook payload maps to 400",
			err:        fmt.Errorf("wrapped: %w", intake.ErrInvalidPayload),
			expectCode: http.StatusBadRequest,
			expectMsg:  "invalid payload",
		},
		{
			name:       "unauthorized signature maps to 401",
			err:        apierrors.ErrUnauthorizedSignature,
			expectCode: http.StatusUnauthorized,
			expectMsg:  "signature",
		},
		{
			name:       "transient failure maps to 500",
			err:        apierrors.ErrTransient,
			expectCode: http.StatusInternalServerError,
			expectMsg:  "transient",
		},
		{
			name:       "unknown error maps to 500",
			err:        fmt.Errorf("something unexpected happened"),
			expectCode: http.StatusInternalServerError,
			expectMsg:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			assert.IsType(t, &echo.HTTPError{}, he)
			assert.Equal(t, tt.expectCode, he.Code)
			assert.Contains(t, he.Error(), tt.expectMsg)
		})
	}
}
