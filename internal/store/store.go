// Package store reads funding requests and allocator mandates from the
// marketplace registry and persists scan results. The matching engine never
// touches storage directly; it consumes the plain records returned here.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/caprock-exchange/match-cli/internal/config"
	"github.com/caprock-exchange/match-cli/internal/matching"
)

// Store defines the registry reads and result writes used by the engine.
// Unknown identifiers yield empty results, never errors.
type Store interface {
	// GetFundingRequest returns nil, nil when the id is unknown.
	GetFundingRequest(ctx context.Context, id string) (*matching.FundingRequest, error)
	// ListOpenRequests returns up to limit open funding requests.
	ListOpenRequests(ctx context.Context, limit int) ([]matching.FundingRequest, error)
	// ListMandatesByOrg returns every allocation-year record for one org.
	ListMandatesByOrg(ctx context.Context, orgID string) ([]matching.AllocatorMandate, error)
	// ListActiveMandates returns up to limit records from the active registry.
	ListActiveMandates(ctx context.Context, limit int) ([]matching.AllocatorMandate, error)
	// SaveScanResults persists a scan's ranked output under a scan id.
	SaveScanResults(ctx context.Context, scanID uuid.UUID, orgID string, results []matching.RequestMatch) error

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg)
	case "sqlite":
		return NewSQLite(cfg.Path)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
