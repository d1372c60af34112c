// Package geo is the client for the external territory service that serves
// mesh block feature collections for a map viewport and geocoded postcode
// bounds. The service owns all geometry; this client only fetches and decodes.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/neighbourly/canvass-go/internal/errors"
	"github.com/neighbourly/canvass-go/internal/logging"
	"github.com/neighbourly/canvass-go/internal/overlay"
)

// Package-level logger specific to the geo service client
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "geo.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "geo", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize geo file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "geo")
		closeLogger = func() error { return nil }
	}
}

// Config holds the geo client configuration
type Config struct {
	BaseURL  string        // base URL of the territory service
	Timeout  time.Duration // per-request timeout
	CacheTTL time.Duration // postcode bounds cache TTL
}

// Bounds is an opaque geocoded bounds record. Its shape belongs to the
// territory service; the client passes it through untouched.
type Bounds = json.RawMessage

// Client fetches feature collections and postcode bounds from the territory service.
type Client struct {
	config     Config
	httpClient *http.Client
	// Postcode geocodes never change, but the upstream lookups are slow;
	// a TTL cache keeps repeat map jumps cheap.
	boundsCache *cache.Cache
}

// NewClient creates a new territory service client
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.Newf("geo service base URL is required").
			Category(errors.CategoryConfiguration).
			Component("geo").
			Build()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Hour
	}

	return &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		boundsCache: cache.New(config.CacheTTL, 2*config.CacheTTL),
	}, nil
}

// MeshblockBounds fetches the feature collection for a map viewport. The
// query is the viewport description and is passed through to the territory
// service verbatim.
func (c *Client) MeshblockBounds(ctx context.Context, query url.Values) (*overlay.FeatureCollection, error) {
	endpoint := fmt.Sprintf("%s/territories/bounds?%s", c.config.BaseURL, query.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var fc overlay.FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, errors.New(err).
			Component("geo").
			Category(errors.CategoryHTTP).
			Context("operation", "meshblock_bounds").
			Build()
	}

	logger.Debug("Fetched meshblock bounds", "features", len(fc.Features))
	return &fc, nil
}

// PostcodeBounds geocodes a postcode to its bounds records. Results are
// cached for the configured TTL.
func (c *Client) PostcodeBounds(ctx context.Context, postcode string) ([]Bounds, error) {
	if postcode == "" {
		return nil, errors.Newf("postcode must not be empty").
			Component("geo").
			Category(errors.CategoryValidation).
			Build()
	}

	if cached, found := c.boundsCache.Get(postcode); found {
		logger.Debug("Postcode bounds cache hit", "postcode", postcode)
		return cached.([]Bounds), nil
	}

	endpoint := fmt.Sprintf("%s/postcodes/%s/bounds", c.config.BaseURL, url.PathEscape(postcode))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var bounds []Bounds
	if err := json.Unmarshal(body, &bounds); err != nil {
		return nil, errors.New(err).
			Component("geo").
			Category(errors.CategoryHTTP).
			Context("operation", "postcode_bounds").
			Context("postcode", postcode).
			Build()
	}

	c.boundsCache.Set(postcode, bounds, cache.DefaultExpiration)
	return bounds, nil
}

// get performs one GET against the territory service.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, errors.New(err).
			Component("geo").
			Category(errors.CategoryNetwork).
			Build()
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Territory service request failed", "error", err, "duration", time.Since(start))
		return nil, errors.New(err).
			Component("geo").
			Category(errors.CategoryNetwork).
			Context("duration_ms", time.Since(start).Milliseconds()).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		logger.Error("Territory service returned error status", "status", resp.StatusCode)
		return nil, errors.Newf("territory service returned status %d", resp.StatusCode).
			Component("geo").
			Category(errors.CategoryHTTP).
			Context("status", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(err).
			Component("geo").
			Category(errors.CategoryNetwork).
			Build()
	}
	return body, nil
}

// Close releases client resources.
func (c *Client) Close() {
	c.boundsCache.Flush()
}
