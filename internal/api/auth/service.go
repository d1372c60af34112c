// internal/api/auth/service.go
package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/neighbourly/canvass-go/internal/errors"
	"github.com/neighbourly/canvass-go/internal/policy"
)

// Sentinel errors for authentication failures.
var (
	ErrNoIdentity = errors.NewStd("caller identity not established")
)

// Context keys for authentication values stored in echo.Context.
// Prefixed with "auth:" to prevent collisions with other packages.
const (
	// CtxKeyIdentity contains the authenticated caller's identity string.
	CtxKeyIdentity = "auth:identity"
	// CtxKeyIsAdmin indicates whether the caller matches an organization domain.
	CtxKeyIsAdmin = "auth:isAdmin"
)

// Identity transport carriers. Session establishment lives upstream; the
// authenticating proxy forwards the caller identity on the header, and the
// legacy cookie remains supported for the browser client.
const (
	identityHeader = "X-Canvass-Identity"
	identityCookie = "email"
)

// Service supplies the caller identity and the organization-domain predicate
// to API handlers. Session establishment itself is an upstream concern.
type Service interface {
	// CheckAccess validates that a caller identity is present.
	// Returns nil on success, or ErrNoIdentity on failure.
	CheckAccess(c echo.Context) error

	// Identity retrieves the caller identity, or empty when absent.
	Identity(c echo.Context) string

	// IsAdmin reports whether the caller matches an organization domain.
	IsAdmin(c echo.Context) bool
}

// IdentityService implements Service from forwarded identity headers/cookies.
type IdentityService struct {
	domains policy.OrgDomains
}

// NewIdentityService creates an identity service with the given organization domains.
func NewIdentityService(domains policy.OrgDomains) *IdentityService {
	return &IdentityService{domains: domains}
}

// CheckAccess validates that the request carries a caller identity and caches
// it on the echo context for handlers.
func (s *IdentityService) CheckAccess(c echo.Context) error {
	identity := s.Identity(c)
	if identity == "" {
		return ErrNoIdentity
	}
	c.Set(CtxKeyIdentity, identity)
	c.Set(CtxKeyIsAdmin, s.domains.Match(identity))
	return nil
}

// Identity retrieves the caller identity. The context value set by the
// middleware wins; otherwise the forwarded header, then the legacy cookie.
func (s *IdentityService) Identity(c echo.Context) string {
	if cached, ok := c.Get(CtxKeyIdentity).(string); ok && cached != "" {
		return cached
	}
	if identity := c.Request().Header.Get(identityHeader); identity != "" {
		return identity
	}
	if cookie, err := c.Cookie(identityCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// IsAdmin reports whether the caller identity matches an organization domain.
func (s *IdentityService) IsAdmin(c echo.Context) bool {
	if cached, ok := c.Get(CtxKeyIsAdmin).(bool); ok {
		return cached
	}
	return s.domains.Match(s.Identity(c))
}
