package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:  server.URL,
		Timeout:  2 * time.Second,
		CacheTTL: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestMeshblockBounds(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/territories/bounds", r.URL.Path)
		assert.Equal(t, "151.2", r.URL.Query().Get("west"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"slug":"mb-1"}}]}`))
	}))

	query := url.Values{}
	query.Set("west", "151.2")

	fc, err := client.MeshblockBounds(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "mb-1", fc.Features[0].Slug())
}

func TestMeshblockBoundsUpstreamError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.MeshblockBounds(context.Background(), url.Values{})
	assert.Error(t, err)
}

func TestPostcodeBoundsCaching(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/postcodes/2600/bounds", r.URL.Path)
		_, _ = w.Write([]byte(`[{"north":-35.2,"south":-35.4,"east":149.2,"west":149.0}]`))
	}))

	ctx := context.Background()
	first, err := client.PostcodeBounds(ctx, "2600")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := client.PostcodeBounds(ctx, "2600")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, int32(1), calls.Load(), "second lookup must be served from cache")
}

func TestPostcodeBoundsEmptyPostcode(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := client.PostcodeBounds(context.Background(), "")
	assert.Error(t, err)
}
