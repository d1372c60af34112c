// internal/api/v2/meshblocks.go
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/neighbourly/canvass-go/internal/claims"
	"github.com/neighbourly/canvass-go/internal/errors"
	"github.com/neighbourly/canvass-go/internal/policy"
)

// ClaimResponse is the body returned on a successful claim.
type ClaimResponse struct {
	Slug      string    `json:"slug"`
	Claimer   string    `json:"claimer"`
	ClaimDate time.Time `json:"claim_date"`
}

// DataEntryUnclaimRequest carries the shared-secret token for the privileged
// unclaim path.
type DataEntryUnclaimRequest struct {
	Token string `json:"token"`
}

// initMeshblockRoutes registers the map listing and claim lifecycle endpoints
func (c *Controller) initMeshblockRoutes() {
	group := c.Group.Group("/meshblocks")
	if c.authMiddleware != nil {
		group.Use(c.authMiddleware)
	}

	// Map viewport listing with claim status overlay
	group.GET("", c.GetMeshblocks)

	// Claim lifecycle
	group.POST("/:slug/claim", c.ClaimMeshblock)
	group.DELETE("/:slug/claim", c.UnclaimMeshblock)
}

// initPostcodeRoutes registers postcode geocoding endpoints
func (c *Controller) initPostcodeRoutes() {
	group := c.Group.Group("/postcodes")
	if c.authMiddleware != nil {
		group.Use(c.authMiddleware)
	}
	group.GET("/:code/bounds", c.GetPostcodeBounds)
}

// initDataEntryRoutes registers the token-gated data correction endpoint.
// Deliberately outside the auth middleware: the shared-secret token is the
// authorization here, there is no caller identity.
func (c *Controller) initDataEntryRoutes() {
	c.Group.POST("/meshblocks/:slug/data-entry-unclaim", c.DataEntryUnclaim)
}

// GetMeshblocks handles GET /api/v2/meshblocks
// Fetches the feature collection for the requested viewport from the
// territory service and annotates every feature with its claim status for
// the calling user.
func (c *Controller) GetMeshblocks(ctx echo.Context) error {
	caller := c.authService.Identity(ctx)

	fc, err := c.Geo.MeshblockBounds(ctx.Request().Context(), ctx.QueryParams())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to fetch mesh blocks for viewport", http.StatusBadGateway)
	}

	// A viewport outside coverage comes back without a features key.
	if fc.Features == nil {
		if c.apiLogger != nil {
			c.apiLogger.Info("Viewport returned no mesh blocks", "ip", ctx.RealIP())
		}
		return c.HandleError(ctx, nil, "No mesh blocks at this map location", http.StatusNotFound)
	}

	annotated, err := c.Overlay.Apply(ctx.Request().Context(), fc, caller)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to resolve claim status", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, annotated)
}

// GetPostcodeBounds handles GET /api/v2/postcodes/:code/bounds
func (c *Controller) GetPostcodeBounds(ctx echo.Context) error {
	code := ctx.Param("code")

	bounds, err := c.Geo.PostcodeBounds(ctx.Request().Context(), code)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryValidation) {
			return c.HandleError(ctx, err, "Invalid postcode", http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to geocode postcode", http.StatusBadGateway)
	}
	if len(bounds) == 0 {
		return c.HandleError(ctx, nil, "Unknown postcode", http.StatusNotFound)
	}

	// First match wins, same as the map client expects.
	return ctx.JSONBlob(http.StatusOK, bounds[0])
}

// ClaimMeshblock handles POST /api/v2/meshblocks/:slug/claim
func (c *Controller) ClaimMeshblock(ctx echo.Context) error {
	slug := ctx.Param("slug")
	caller := c.authService.Identity(ctx)

	claim, err := c.Service.Claim(ctx.Request().Context(), slug, caller)
	switch {
	case err == nil:
		if c.apiLogger != nil {
			c.apiLogger.Info("Mesh block claimed", "slug", slug, "claimer", caller, "ip", ctx.RealIP())
		}
		return ctx.JSON(http.StatusCreated, ClaimResponse{
			Slug:      claim.MeshBlockSlug,
			Claimer:   claim.Claimer,
			ClaimDate: claim.ClaimDate,
		})
	case errors.Is(err, claims.ErrAlreadyClaimed):
		// Normal contention, reported distinctly so the client can react.
		return c.HandleError(ctx, err, "Mesh block is already claimed", http.StatusConflict)
	default:
		return c.HandleError(ctx, err, "Failed to claim mesh block", http.StatusInternalServerError)
	}
}

// UnclaimMeshblock handles DELETE /api/v2/meshblocks/:slug/claim
// Organization-domain callers take the admin path, which only releases
// claims held by organization identities; everyone else may only release
// their own claim.
func (c *Controller) UnclaimMeshblock(ctx echo.Context) error {
	slug := ctx.Param("slug")
	caller := c.authService.Identity(ctx)

	var err error
	if c.authService.IsAdmin(ctx) {
		err = c.Service.AdminUnclaim(ctx.Request().Context(), slug, caller)
	} else {
		err = c.Service.Unclaim(ctx.Request().Context(), slug, caller)
	}

	switch {
	case err == nil:
		if c.apiLogger != nil {
			c.apiLogger.Info("Mesh block unclaimed", "slug", slug, "caller", caller, "ip", ctx.RealIP())
		}
		return ctx.NoContent(http.StatusNoContent)
	case errors.Is(err, claims.ErrNoActiveClaim):
		return c.HandleError(ctx, err, "No matching active claim", http.StatusNotFound)
	default:
		return c.HandleError(ctx, err, "Failed to release claim", http.StatusInternalServerError)
	}
}

// DataEntryUnclaim handles POST /api/v2/meshblocks/:slug/data-entry-unclaim
func (c *Controller) DataEntryUnclaim(ctx echo.Context) error {
	slug := ctx.Param("slug")

	var req DataEntryUnclaimRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	if !policy.ValidDataEntryToken(c.Settings.Security.DataEntryToken, req.Token) {
		if c.apiLogger != nil {
			c.apiLogger.Warn("Data entry unclaim rejected, bad token", "slug", slug, "ip", ctx.RealIP())
		}
		return c.HandleError(ctx, nil, "Invalid data entry token", http.StatusUnauthorized)
	}

	err := c.Service.DataEntryUnclaim(ctx.Request().Context(), slug)
	switch {
	case err == nil:
		return ctx.NoContent(http.StatusNoContent)
	case errors.Is(err, claims.ErrNoActiveClaim):
		return c.HandleError(ctx, err, "No active claim to release", http.StatusNotFound)
	default:
		return c.HandleError(ctx, err, "Failed to release claim", http.StatusInternalServerError)
	}
}
