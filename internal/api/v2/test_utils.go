// internal/api/v2/test_utils.go
// Shared helpers for API tests. Build the controller over a real SQLite
// store so claim semantics in tests match production; only the geo
// collaborator is mocked.
package api

import (
	"context"
	"log"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neighbourly/canvass-go/internal/api/auth"
	"github.com/neighbourly/canvass-go/internal/claims"
	"github.com/neighbourly/canvass-go/internal/conf"
	"github.com/neighbourly/canvass-go/internal/datastore"
	"github.com/neighbourly/canvass-go/internal/geo"
	"github.com/neighbourly/canvass-go/internal/overlay"
	"github.com/neighbourly/canvass-go/internal/policy"
)

// mockGeoProvider is a testify mock for the territory service client.
type mockGeoProvider struct {
	mock.Mock
}

func (m *mockGeoProvider) MeshblockBounds(ctx context.Context, query url.Values) (*overlay.FeatureCollection, error) {
	args := m.Called(ctx, query)
	if fc := args.Get(0); fc != nil {
		return fc.(*overlay.FeatureCollection), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGeoProvider) PostcodeBounds(ctx context.Context, postcode string) ([]geo.Bounds, error) {
	args := m.Called(ctx, postcode)
	if b := args.Get(0); b != nil {
		return b.([]geo.Bounds), args.Error(1)
	}
	return nil, args.Error(1)
}

// testEnv bundles everything an API test needs.
type testEnv struct {
	Echo       *echo.Echo
	Controller *Controller
	Service    *claims.Service
	Geo        *mockGeoProvider
	Settings   *conf.Settings
}

// setupTestEnvironment builds a full API controller backed by a fresh SQLite
// store in a temp directory, with the auth middleware wired the way serve
// wires it.
func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()

	env := newTestEnv(t, func(settings *conf.Settings, domains policy.OrgDomains) []Option {
		authService := auth.NewIdentityService(domains)
		authMiddleware := auth.NewMiddleware(authService)
		return []Option{
			WithAuthService(authService),
			WithAuthMiddleware(authMiddleware.Authenticate),
		}
	})
	return env
}

// setupOpenTestEnvironment builds the controller with no auth middleware
// configured, the degraded deployment api.New warns about.
func setupOpenTestEnvironment(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, func(settings *conf.Settings, domains policy.OrgDomains) []Option {
		return nil
	})
}

func newTestEnv(t *testing.T, optsFor func(*conf.Settings, policy.OrgDomains) []Option) *testEnv {
	t.Helper()

	settings := &conf.Settings{}
	settings.WebServer.Port = "8080"
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "claims.db")
	settings.Security.PrimaryDomains = "orgdomain.com"
	settings.Security.DataEntryToken = "secret-token"

	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	domains := policy.OrgDomains(settings.Security.OrgDomains())
	service := claims.NewService(store, domains, nil)
	statusOverlay := overlay.New(service, nil)

	geoMock := &mockGeoProvider{}

	e := echo.New()
	controller, err := New(e, service, statusOverlay, geoMock, settings, log.Default(),
		optsFor(settings, domains)...)
	require.NoError(t, err)
	t.Cleanup(controller.Shutdown)

	return &testEnv{
		Echo:       e,
		Controller: controller,
		Service:    service,
		Geo:        geoMock,
		Settings:   settings,
	}
}

// mustClaim seeds an active claim directly through the service.
func mustClaim(t *testing.T, env *testEnv, slug, claimer string) {
	t.Helper()
	_, err := env.Service.Claim(context.Background(), slug, claimer)
	require.NoError(t, err)
}
