// internal/api/v2/meshblocks_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neighbourly/canvass-go/internal/geo"
	"github.com/neighbourly/canvass-go/internal/overlay"
)

// doRequest runs a request through the full echo stack, middleware included.
func doRequest(env *testEnv, method, target, identity, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if identity != "" {
		req.Header.Set("X-Canvass-Identity", identity)
	}
	rec := httptest.NewRecorder()
	env.Echo.ServeHTTP(rec, req)
	return rec
}

func testFeatureCollection(slugs ...string) *overlay.FeatureCollection {
	fc := &overlay.FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]overlay.Feature, 0, len(slugs)),
	}
	for _, slug := range slugs {
		fc.Features = append(fc.Features, overlay.Feature{
			Type:       "Feature",
			Geometry:   json.RawMessage(`{"type":"Polygon","coordinates":[]}`),
			Properties: map[string]any{"slug": slug},
		})
	}
	return fc
}

func TestHealthCheck(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := doRequest(env, http.MethodGet, "/api/v2/health", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database_status"])
}

func TestGetMeshblocksAnnotatesClaimStatus(t *testing.T) {
	env := setupTestEnvironment(t)

	mustClaim(t, env, "mb-mine", "jane@example.com")
	mustClaim(t, env, "mb-other", "bob@example.com")
	mustClaim(t, env, "mb-org", "staff@orgdomain.com")

	env.Geo.On("MeshblockBounds", mock.Anything, mock.Anything).
		Return(testFeatureCollection("mb-mine", "mb-other", "mb-org", "mb-free"), nil)

	rec := doRequest(env, http.MethodGet, "/api/v2/meshblocks?sw=1,2&ne=3,4", "jane@example.com", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var fc overlay.FeatureCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	require.Len(t, fc.Features, 4)
	assert.Equal(t, "claimed_by_you", fc.Features[0].Properties["claim_status"])
	assert.Equal(t, "claimed", fc.Features[1].Properties["claim_status"])
	assert.Equal(t, "quarantine", fc.Features[2].Properties["claim_status"])
	assert.Equal(t, "unclaimed", fc.Features[3].Properties["claim_status"])
}

func TestGetMeshblocksOutsideCoverage(t *testing.T) {
	env := setupTestEnvironment(t)

	// No features key at all, not an empty list.
	env.Geo.On("MeshblockBounds", mock.Anything, mock.Anything).
		Return(&overlay.FeatureCollection{Type: "FeatureCollection"}, nil)

	rec := doRequest(env, http.MethodGet, "/api/v2/meshblocks?sw=0,0&ne=0,0", "jane@example.com", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMeshblocksGeoFailure(t *testing.T) {
	env := setupTestEnvironment(t)

	env.Geo.On("MeshblockBounds", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	rec := doRequest(env, http.MethodGet, "/api/v2/meshblocks", "jane@example.com", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetMeshblocksRequiresIdentity(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := doRequest(env, http.MethodGet, "/api/v2/meshblocks", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClaimMeshblock(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := doRequest(env, http.MethodPost, "/api/v2/meshblocks/mb-100/claim", "jane@example.com", "")

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ClaimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "mb-100", resp.Slug)
	assert.Equal(t, "jane@example.com", resp.Claimer)
	// The timestamp comes from the persisted row, never synthesized.
	assert.False(t, resp.ClaimDate.IsZero())
}

func TestClaimMeshblockConflict(t *testing.T) {
	env := setupTestEnvironment(t)

	first := doRequest(env, http.MethodPost, "/api/v2/meshblocks/mb-100/claim", "jane@example.com", "")
	require.Equal(t, http.StatusCreated, first.Code)

	second := doRequest(env, http.MethodPost, "/api/v2/meshblocks/mb-100/claim", "bob@example.com", "")
	require.Equal(t, http.StatusConflict, second.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CorrelationID)

	// Winner is unchanged.
	active, err := env.Service.ActiveClaimsFor(context.Background(), []string{"mb-100"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", active["mb-100"])
}

func TestUnclaimOwnClaim(t *testing.T) {
	env := setupTestEnvironment(t)
	mustClaim(t, env, "mb-100", "jane@example.com")

	rec := doRequest(env, http.MethodDelete, "/api/v2/meshblocks/mb-100/claim", "jane@example.com", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUnclaimSomeoneElsesClaim(t *testing.T) {
	env := setupTestEnvironment(t)
	mustClaim(t, env, "mb-100", "jane@example.com")

	rec := doRequest(env, http.MethodDelete, "/api/v2/meshblocks/mb-100/claim", "bob@example.com", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Claim still stands.
	active, err := env.Service.ActiveClaimsFor(context.Background(), []string{"mb-100"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", active["mb-100"])
}

func TestUnclaimWithoutIdentityLeavesClaim(t *testing.T) {
	// No auth middleware configured: the route serves, the identity is empty,
	// and an empty identity must never release someone's claim.
	env := setupOpenTestEnvironment(t)
	mustClaim(t, env, "mb-100", "jane@example.com")

	rec := doRequest(env, http.MethodDelete, "/api/v2/meshblocks/mb-100/claim", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)

	active, err := env.Service.ActiveClaimsFor(context.Background(), []string{"mb-100"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", active["mb-100"])
}

func TestUnclaimNothingActive(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := doRequest(env, http.MethodDelete, "/api/v2/meshblocks/mb-100/claim", "jane@example.com", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUnclaimReleasesOrganizationClaim(t *testing.T) {
	env := setupTestEnvironment(t)
	mustClaim(t, env, "mb-100", "staff@orgdomain.com")

	rec := doRequest(env, http.MethodDelete, "/api/v2/meshblocks/mb-100/claim", "admin@orgdomain.com", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminUnclaimLeavesVolunteerClaim(t *testing.T) {
	env := setupTestEnvironment(t)
	mustClaim(t, env, "mb-100", "jane@example.com")

	rec := doRequest(env, http.MethodDelete, "/api/v2/meshblocks/mb-100/claim", "admin@orgdomain.com", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)

	active, err := env.Service.ActiveClaimsFor(context.Background(), []string{"mb-100"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", active["mb-100"])
}

func TestDataEntryUnclaim(t *testing.T) {
	env := setupTestEnvironment(t)
	mustClaim(t, env, "mb-100", "jane@example.com")

	rec := doRequest(env, http.MethodPost, "/api/v2/meshblocks/mb-100/data-entry-unclaim",
		"", `{"token":"secret-token"}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	active, err := env.Service.ActiveClaimsFor(context.Background(), []string{"mb-100"})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDataEntryUnclaimBadToken(t *testing.T) {
	env := setupTestEnvironment(t)
	mustClaim(t, env, "mb-100", "jane@example.com")

	rec := doRequest(env, http.MethodPost, "/api/v2/meshblocks/mb-100/data-entry-unclaim",
		"", `{"token":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	active, err := env.Service.ActiveClaimsFor(context.Background(), []string{"mb-100"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", active["mb-100"])
}

func TestDataEntryUnclaimDisabledWhenTokenUnset(t *testing.T) {
	env := setupTestEnvironment(t)
	env.Settings.Security.DataEntryToken = ""

	rec := doRequest(env, http.MethodPost, "/api/v2/meshblocks/mb-100/data-entry-unclaim",
		"", `{"token":""}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDataEntryUnclaimNoActiveClaim(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := doRequest(env, http.MethodPost, "/api/v2/meshblocks/mb-100/data-entry-unclaim",
		"", `{"token":"secret-token"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPostcodeBounds(t *testing.T) {
	env := setupTestEnvironment(t)

	bounds := []geo.Bounds{
		json.RawMessage(`{"sw":[174.7,-36.9],"ne":[174.8,-36.8]}`),
		json.RawMessage(`{"sw":[0,0],"ne":[1,1]}`),
	}
	env.Geo.On("PostcodeBounds", mock.Anything, "1010").Return(bounds, nil)

	rec := doRequest(env, http.MethodGet, "/api/v2/postcodes/1010/bounds", "jane@example.com", "")

	require.Equal(t, http.StatusOK, rec.Code)
	// First match only.
	assert.JSONEq(t, `{"sw":[174.7,-36.9],"ne":[174.8,-36.8]}`, rec.Body.String())
}

func TestGetPostcodeBoundsUnknown(t *testing.T) {
	env := setupTestEnvironment(t)

	env.Geo.On("PostcodeBounds", mock.Anything, "0000").Return([]geo.Bounds{}, nil)

	rec := doRequest(env, http.MethodGet, "/api/v2/postcodes/0000/bounds", "jane@example.com", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
