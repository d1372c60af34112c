// Package overlay merges claim state onto externally supplied GeoJSON
// feature collections, producing the client-visible claim_status per feature.
// It is strictly read-only towards the claim store.
package overlay

import (
	"context"
	"encoding/json"
	"maps"

	"github.com/neighbourly/canvass-go/internal/claims"
	"github.com/neighbourly/canvass-go/internal/observability/metrics"
	"github.com/neighbourly/canvass-go/internal/policy"
)

// slugProperty is the feature property identifying a mesh block.
const slugProperty = "slug"

// statusProperty is the property the overlay injects.
const statusProperty = "claim_status"

// Feature is one GeoJSON feature. Geometry is carried as raw JSON: the
// overlay never parses or recomputes geometry, it only annotates properties.
type Feature struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// Slug returns the feature's mesh block slug, or empty when absent.
func (f *Feature) Slug() string {
	slug, _ := f.Properties[slugProperty].(string)
	return slug
}

// FeatureCollection is a GeoJSON feature collection as served by the geo
// collaborator.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Overlay annotates feature collections with claim status.
type Overlay struct {
	service *claims.Service
	metrics *metrics.ClaimMetrics // nil-safe, may be absent
}

// New creates a status overlay over the given claim service. claimMetrics may be nil.
func New(service *claims.Service, claimMetrics *metrics.ClaimMetrics) *Overlay {
	return &Overlay{
		service: service,
		metrics: claimMetrics,
	}
}

// Apply returns a new feature collection in which every feature carries a
// claim_status property for the given caller. Active claims for all slugs are
// fetched in one call; features with no active claim come back unclaimed.
// Feature order, geometry and all other properties are preserved.
func (o *Overlay) Apply(ctx context.Context, fc *FeatureCollection, caller string) (*FeatureCollection, error) {
	slugs := make([]string, 0, len(fc.Features))
	for i := range fc.Features {
		if slug := fc.Features[i].Slug(); slug != "" {
			slugs = append(slugs, slug)
		}
	}

	activeClaims, err := o.service.ActiveClaimsFor(ctx, slugs)
	if err != nil {
		return nil, err
	}

	domains := o.service.Domains()
	out := &FeatureCollection{
		Type:     fc.Type,
		Features: make([]Feature, len(fc.Features)),
	}
	for i := range fc.Features {
		feature := fc.Features[i]

		properties := make(map[string]any, len(feature.Properties)+1)
		maps.Copy(properties, feature.Properties)

		claimer := activeClaims[feature.Slug()]
		properties[statusProperty] = string(policy.Classify(claimer, caller, domains))

		feature.Properties = properties
		out.Features[i] = feature
	}

	o.metrics.RecordOverlaySize(len(out.Features))
	return out, nil
}
