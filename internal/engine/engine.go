// Package engine orchestrates match scoring. Single-request rankings prefer
// the remote authoritative service and fall back to the local pipeline when
// the service rejects the caller's credentials or stays unavailable through
// retries. Allocator-initiated scans always run locally.
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/caprock-exchange/match-cli/internal/config"
	"github.com/caprock-exchange/match-cli/internal/matching"
	"github.com/caprock-exchange/match-cli/internal/resilience"
	"github.com/caprock-exchange/match-cli/pkg/matchsvc"
)

// Source identifies which path produced a ranking.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Registry is the slice of the store the engine reads and writes.
type Registry interface {
	GetFundingRequest(ctx context.Context, id string) (*matching.FundingRequest, error)
	ListOpenRequests(ctx context.Context, limit int) ([]matching.FundingRequest, error)
	ListMandatesByOrg(ctx context.Context, orgID string) ([]matching.AllocatorMandate, error)
	ListActiveMandates(ctx context.Context, limit int) ([]matching.AllocatorMandate, error)
	SaveScanResults(ctx context.Context, scanID uuid.UUID, orgID string, results []matching.RequestMatch) error
}

// RankReport is the outcome of ranking allocators for one funding request.
// An unknown request id yields an empty Matches list, not an error.
type RankReport struct {
	RequestID string                 `json:"request_id"`
	Source    Source                 `json:"source"`
	Matches   []matching.RankedMatch `json:"matches"`
}

// ScanReport is the outcome of scanning open requests for one allocator org.
type ScanReport struct {
	ScanID  uuid.UUID               `json:"scan_id"`
	OrgID   string                  `json:"org_id"`
	Saved   bool                    `json:"saved"`
	Matches []matching.RequestMatch `json:"matches"`
}

// Engine wires the registry, the remote scoring client, and the local
// matching pipeline behind one call surface.
type Engine struct {
	registry Registry
	remote   matchsvc.Client
	enricher matching.Enricher
	cfg      config.MatchConfig
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
}

// New creates an Engine. Pass a nil client to disable the remote path.
func New(registry Registry, remote matchsvc.Client, cfg config.MatchConfig) *Engine {
	var enricher matching.Enricher = matching.RegistryEnricher{}
	if cfg.EnrichmentDisabled {
		enricher = matching.NopEnricher{}
	}
	return &Engine{
		registry: registry,
		remote:   remote,
		enricher: enricher,
		cfg:      cfg,
		retry:    resilience.DefaultRetryConfig(),
		// Only outages trip the breaker; auth rejections route to the local
		// pipeline without counting against the service.
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			ShouldTrip: resilience.IsTransient,
		}),
	}
}

// MatchAllocators ranks allocator orgs for one funding request. The caller's
// bearer token is forwarded to the remote service; a 401/403 there is not an
// error, it just routes the call to the local pipeline.
func (e *Engine) MatchAllocators(ctx context.Context, requestID, bearerToken string) (*RankReport, error) {
	if e.remote != nil {
		report, err := e.rankRemote(ctx, requestID, bearerToken)
		if err == nil {
			return report, nil
		}
		if matchsvc.IsAuthRejection(err) {
			zap.L().Info("remote scoring rejected credentials, falling back to local",
				zap.String("request_id", requestID))
		} else {
			zap.L().Warn("remote scoring unavailable, falling back to local",
				zap.String("request_id", requestID),
				zap.Error(err))
		}
	}
	return e.rankLocal(ctx, requestID)
}

func (e *Engine) rankRemote(ctx context.Context, requestID, bearerToken string) (*RankReport, error) {
	cfg := e.retry
	cfg.OnRetry = resilience.RetryLogger("matchsvc", "rank request")

	// The breaker wraps the whole retry schedule: while the service is
	// known-down, calls skip straight to the local pipeline.
	resp, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (*matchsvc.RankResponse, error) {
		return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*matchsvc.RankResponse, error) {
			return e.remote.RankRequest(ctx, requestID, bearerToken)
		})
	})
	if err != nil {
		return nil, err
	}

	matches := make([]matching.RankedMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, matching.RankedMatch{
			AllocatorID:         m.AllocatorID,
			OrgID:               m.OrgID,
			AllocatorName:       m.AllocatorName,
			Score:               m.Score,
			Tier:                matching.Tier(m.Tier),
			Breakdown:           m.Breakdown,
			Reasons:             m.Reasons,
			RemainingAllocation: m.RemainingAllocation,
		})
	}
	matches = matching.FilterRanked(matches, e.cfg.RankMinScore, e.cfg.MaxResults)

	return &RankReport{RequestID: requestID, Source: SourceRemote, Matches: matches}, nil
}

func (e *Engine) rankLocal(ctx context.Context, requestID string) (*RankReport, error) {
	report := &RankReport{RequestID: requestID, Source: SourceLocal, Matches: []matching.RankedMatch{}}

	req, err := e.registry.GetFundingRequest(ctx, requestID)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: load funding request %s", requestID)
	}
	if req == nil {
		return report, nil
	}

	mandates, err := e.registry.ListActiveMandates(ctx, e.cfg.RegistryLimit)
	if err != nil {
		return nil, eris.Wrap(err, "engine: load active mandates")
	}

	ranked := matching.RankAllocators(req, mandates, e.enricher)
	report.Matches = matching.FilterRanked(ranked, e.cfg.RankMinScore, e.cfg.MaxResults)
	return report, nil
}

// ScanForAllocator ranks open funding requests against one allocator org's
// mandate records. Local pipeline only. When save is set the filtered
// results are persisted under the report's scan id.
func (e *Engine) ScanForAllocator(ctx context.Context, orgID string, save bool) (*ScanReport, error) {
	report := &ScanReport{ScanID: uuid.New(), OrgID: orgID, Matches: []matching.RequestMatch{}}

	mandates, err := e.registry.ListMandatesByOrg(ctx, orgID)
	if err != nil {
		return nil, eris.Wrapf(err, "engine: load mandates for org %s", orgID)
	}
	if len(mandates) == 0 {
		return report, nil
	}

	requests, err := e.registry.ListOpenRequests(ctx, e.cfg.RequestLimit)
	if err != nil {
		return nil, eris.Wrap(err, "engine: load open requests")
	}
	if len(requests) == 0 {
		return report, nil
	}

	for i := range mandates {
		e.enricher.Enrich(&mandates[i])
	}

	// Scoring is pure, so the fan-out order never changes the result set.
	results := make([]matching.RequestMatch, len(requests))
	g, _ := errgroup.WithContext(ctx)
	concurrency := e.cfg.ScanConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)
	for i := range requests {
		g.Go(func() error {
			results[i] = matching.MatchRequest(&requests[i], mandates)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "engine: score open requests")
	}

	matching.SortRequestMatches(results)
	report.Matches = matching.FilterRequestMatches(results, e.cfg.ScanMinScore, e.cfg.MaxResults)

	if save && len(report.Matches) > 0 {
		if err := e.registry.SaveScanResults(ctx, report.ScanID, orgID, report.Matches); err != nil {
			return nil, eris.Wrapf(err, "engine: save scan %s", report.ScanID)
		}
		report.Saved = true
	}

	return report, nil
}
