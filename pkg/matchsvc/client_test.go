package matchsvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caprock-exchange/match-cli/internal/resilience"
)

func TestRankRequest_Success(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"request_id": "req-1",
			"matches": [
				{"allocator_id": "alloc-1", "org_id": "org-1", "allocator_name": "Gulf Fund",
				 "score": 87, "tier": "excellent", "breakdown": {"geographic": 1},
				 "reasons": ["National coverage"], "remaining_allocation": 5000000}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	resp, err := c.RankRequest(context.Background(), "req-1", "secret-token")
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "/requests/req-1/matches", gotPath)
	assert.Equal(t, "req-1", resp.RequestID)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "alloc-1", resp.Matches[0].AllocatorID)
	assert.Equal(t, 87, resp.Matches[0].Score)
	assert.Equal(t, int64(5_000_000), resp.Matches[0].RemainingAllocation)
}

func TestRankRequest_NoTokenOmitsHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"request_id": "req-1", "matches": []}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.RankRequest(context.Background(), "req-1", "")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestRankRequest_AuthRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.RankRequest(context.Background(), "req-1", "stale")
	require.Error(t, err)

	assert.True(t, IsAuthRejection(err))
	assert.False(t, resilience.IsTransient(err), "auth rejections must not be retried")

	var apiErr *APIError
	require.True(t, eris.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestRankRequest_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.RankRequest(context.Background(), "req-1", "token")
	require.Error(t, err)

	assert.True(t, resilience.IsTransient(err))
	assert.False(t, IsAuthRejection(err))
}

func TestRankRequest_NonRetryableClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.RankRequest(context.Background(), "req-1", "token")
	require.Error(t, err)

	assert.False(t, resilience.IsTransient(err))
	assert.False(t, IsAuthRejection(err))
}

func TestRankRequest_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"request_id": `))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.RankRequest(context.Background(), "req-1", "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestRankRequest_RateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"request_id": "req-1", "matches": []}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1))

	// First call consumes the burst; a cancelled context fails the wait.
	_, err := c.RankRequest(context.Background(), "req-1", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.RankRequest(ctx, "req-1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}
