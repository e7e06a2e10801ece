// Package handler contains the HTTP handlers of the public API.
package handler

import (
	"net/http"
	"strings"

	"showup/internal/delivery/api/middleware"
	"showup/internal/delivery/api/response"
	domainerrors "showup/internal/domain/errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HealthCheck is a simple handler to check if the service is up.
func HealthCheck(c echo.Context) error {
	return response.Success(c, http.StatusOK, map[string]string{"status": "ok"})
}

// currentUserID returns the authenticated caller or an invalid-token error.
func currentUserID(c echo.Context) (uuid.UUID, error) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return uuid.Nil, domainerrors.ErrInvalidToken
	}

	return userID, nil
}

// parseID parses a required uuid, reporting message when it is missing or malformed.
func parseID(raw, message string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, domainerrors.NewValidationError(message)
	}

	return id, nil
}

// parseOptionalID parses an optional uuid; empty input yields nil.
func parseOptionalID(raw *string, message string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}

	id, err := parseID(*raw, message)
	if err != nil {
		return nil, err
	}

	return &id, nil
}

// bind decodes the request body and runs struct validation.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.NewValidationError("Invalid request body")
	}

	return c.Validate(req)
}
