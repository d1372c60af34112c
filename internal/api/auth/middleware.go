// internal/api/auth/middleware.go
package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Middleware provides authentication middleware with the Service
type Middleware struct {
	AuthService Service
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(service Service) *Middleware {
	return &Middleware{AuthService: service}
}

// Authenticate rejects requests without an established caller identity.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.AuthService == nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "authentication service not configured")
		}
		if err := m.AuthService.CheckAccess(c); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		return next(c)
	}
}
