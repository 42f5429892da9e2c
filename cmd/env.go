package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/caprock-exchange/match-cli/internal/engine"
	"github.com/caprock-exchange/match-cli/internal/store"
	"github.com/caprock-exchange/match-cli/pkg/matchsvc"
)

// matchEnv holds the initialized store and engine used by the match/scan/serve
// commands.
type matchEnv struct {
	Store  store.Store
	Engine *engine.Engine
}

// Close releases resources held by the environment.
func (e *matchEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEngine opens the registry store and builds the engine. Callers should
// defer env.Close(). Pass forceLocal to skip the remote scoring service even
// when it is enabled in config.
func initEngine(ctx context.Context, forceLocal bool) (*matchEnv, error) {
	if err := engine.ValidateConfig(cfg.Match); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	var remote matchsvc.Client
	if cfg.Remote.Enabled && !forceLocal {
		opts := []matchsvc.Option{
			matchsvc.WithBaseURL(cfg.Remote.BaseURL),
			matchsvc.WithRateLimit(cfg.Remote.RateLimit),
		}
		if cfg.Remote.TimeoutSecs > 0 {
			opts = append(opts, matchsvc.WithHTTPClient(
				newRemoteHTTPClient(time.Duration(cfg.Remote.TimeoutSecs)*time.Second)))
		}
		remote = matchsvc.NewClient(opts...)
		zap.L().Info("remote scoring enabled", zap.String("base_url", cfg.Remote.BaseURL))
	} else {
		zap.L().Debug("remote scoring disabled, local pipeline only")
	}

	return &matchEnv{
		Store:  st,
		Engine: engine.New(st, remote, cfg.Match),
	}, nil
}

func newRemoteHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
