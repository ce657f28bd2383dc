package auth

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/feedback-triage/internal/apperr"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// Middleware validates the bearer token and stores the user id in the Echo context.
func Middleware(tokens *Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return apperr.Unauthorized("missing Authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return apperr.Unauthorized("invalid Authorization header format")
			}

			userID, err := tokens.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				return apperr.Unauthorized("invalid or expired token")
			}

			c.Set(string(UserIDKey), userID)
			return next(c)
		}
	}
}

// GetUserIDFromContext helper to retrieve the user ID
func GetUserIDFromContext(c echo.Context) (uuid.UUID, error) {
	val := c.Get(string(UserIDKey))
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return id, nil
}
