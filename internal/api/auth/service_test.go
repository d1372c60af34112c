package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/neighbourly/canvass-go/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(req *http.Request) echo.Context {
	e := echo.New()
	return e.NewContext(req, httptest.NewRecorder())
}

func TestIdentityFromHeader(t *testing.T) {
	svc := NewIdentityService(policy.OrgDomains{"orgdomain.com"})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Canvass-Identity", "jane@example.com")
	c := newContext(req)

	require.NoError(t, svc.CheckAccess(c))
	assert.Equal(t, "jane@example.com", svc.Identity(c))
	assert.False(t, svc.IsAdmin(c))
}

func TestIdentityFromCookie(t *testing.T) {
	svc := NewIdentityService(policy.OrgDomains{"orgdomain.com"})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(&http.Cookie{Name: "email", Value: "admin@orgdomain.com"})
	c := newContext(req)

	require.NoError(t, svc.CheckAccess(c))
	assert.Equal(t, "admin@orgdomain.com", svc.Identity(c))
	assert.True(t, svc.IsAdmin(c))
}

func TestHeaderWinsOverCookie(t *testing.T) {
	svc := NewIdentityService(nil)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Canvass-Identity", "header@example.com")
	req.AddCookie(&http.Cookie{Name: "email", Value: "cookie@example.com"})
	c := newContext(req)

	assert.Equal(t, "header@example.com", svc.Identity(c))
}

func TestCheckAccessWithoutIdentity(t *testing.T) {
	svc := NewIdentityService(nil)
	c := newContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.ErrorIs(t, svc.CheckAccess(c), ErrNoIdentity)
}

func TestAuthenticateMiddleware(t *testing.T) {
	svc := NewIdentityService(nil)
	mw := NewMiddleware(svc)

	handler := mw.Authenticate(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Without identity: 401.
	c := newContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	err := handler(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)

	// With identity: passes through.
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Canvass-Identity", "jane@example.com")
	c = newContext(req)
	assert.NoError(t, handler(c))
}
