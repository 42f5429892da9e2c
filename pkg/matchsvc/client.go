// Package matchsvc is an HTTP client for the authoritative match scoring
// service. The caller's bearer token is forwarded opaquely; the client does
// no authorization of its own.
package matchsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/caprock-exchange/match-cli/internal/resilience"
)

const defaultBaseURL = "https://match.caprock-exchange.com/api/v1"

// Client defines the scoring-service operations used by the orchestrator.
type Client interface {
	// RankRequest returns the service's ranked allocator list for a funding
	// request. Transport-level failures and retryable statuses come back
	// wrapped as resilience.TransientError; auth rejections come back as a
	// plain *APIError so the caller can fall back without retrying.
	RankRequest(ctx context.Context, requestID, bearerToken string) (*RankResponse, error)
}

// RankedAllocator is one entry of the service's ranked response, shaped like
// the local pipeline's output so either path serializes identically.
type RankedAllocator struct {
	AllocatorID         string         `json:"allocator_id"`
	OrgID               string         `json:"org_id"`
	AllocatorName       string         `json:"allocator_name"`
	Score               int            `json:"score"`
	Tier                string         `json:"tier"`
	Breakdown           map[string]int `json:"breakdown"`
	Reasons             []string       `json:"reasons"`
	RemainingAllocation int64          `json:"remaining_allocation"`
}

// RankResponse is the body of GET /requests/{id}/matches.
type RankResponse struct {
	RequestID string            `json:"request_id"`
	Matches   []RankedAllocator `json:"matches"`
}

// APIError is returned when the service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("matchsvc: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsAuthRejection reports whether the error is a 401/403 from the service.
func IsAuthRejection(err error) bool {
	var apiErr *APIError
	if !eris.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a scoring-service client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) RankRequest(ctx context.Context, requestID, bearerToken string) (*RankResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "matchsvc: rate limiter")
		}
	}

	url := fmt.Sprintf("%s/requests/%s/matches", c.baseURL, requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "matchsvc: create request")
	}
	req.Header.Set("Accept", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "matchsvc: execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "matchsvc: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	var out RankResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "matchsvc: decode response")
	}
	return &out, nil
}
