package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/caprock-exchange/match-cli/internal/config"
	"github.com/caprock-exchange/match-cli/internal/matching"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if cfg.MaxConns > 0 {
		maxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		minConns = cfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS funding_requests (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_name          TEXT NOT NULL,
	state                 TEXT,
	project_category      TEXT,
	project_type          TEXT,
	amount                BIGINT NOT NULL DEFAULT 0,
	owner_occupied        BOOLEAN,
	financing_category    TEXT,
	rural                 BOOLEAN,
	nonprofit             BOOLEAN NOT NULL DEFAULT false,
	minority_owned        BOOLEAN NOT NULL DEFAULT false,
	tribal                BOOLEAN NOT NULL DEFAULT false,
	severely_distressed   BOOLEAN NOT NULL DEFAULT false,
	distress_percentile   DOUBLE PRECISION NOT NULL DEFAULT 0,
	underserved_geography BOOLEAN NOT NULL DEFAULT false,
	allocation_tier       TEXT,
	status                TEXT NOT NULL DEFAULT 'open',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS allocator_mandates (
	id                       TEXT PRIMARY KEY,
	org_id                   TEXT NOT NULL,
	name                     TEXT NOT NULL,
	coverage                 TEXT,
	states                   TEXT[],
	predominant_market       TEXT,
	financing_types          TEXT,
	min_deal_size            BIGINT NOT NULL DEFAULT 0,
	max_deal_size            BIGINT NOT NULL DEFAULT 0,
	rural_focus              BOOLEAN NOT NULL DEFAULT false,
	urban_focus              BOOLEAN NOT NULL DEFAULT false,
	minority_focus           BOOLEAN NOT NULL DEFAULT false,
	underserved_focus        BOOLEAN NOT NULL DEFAULT false,
	tribal_focus             BOOLEAN NOT NULL DEFAULT false,
	small_deal_fund          BOOLEAN NOT NULL DEFAULT false,
	owner_occupied_pref      BOOLEAN NOT NULL DEFAULT false,
	nonprofit_pref           BOOLEAN NOT NULL DEFAULT false,
	accepts_for_profit       BOOLEAN,
	requires_severe_distress BOOLEAN NOT NULL DEFAULT false,
	min_distress_percentile  DOUBLE PRECISION NOT NULL DEFAULT 0,
	remaining_allocation     BIGINT NOT NULL DEFAULT 0,
	allocation_tier          TEXT,
	allocation_years         INT[],
	non_metro_pct            DOUBLE PRECISION,
	activities               TEXT,
	target_sectors           TEXT[],
	active                   BOOLEAN NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_funding_requests_status ON funding_requests(status);
CREATE INDEX IF NOT EXISTS idx_allocator_mandates_org ON allocator_mandates(org_id);
CREATE INDEX IF NOT EXISTS idx_allocator_mandates_active ON allocator_mandates(active);

CREATE TABLE IF NOT EXISTS match_results (
	id         BIGSERIAL PRIMARY KEY,
	scan_id    TEXT NOT NULL,
	org_id     TEXT NOT NULL,
	request_id TEXT NOT NULL,
	score      INT NOT NULL,
	tier       TEXT NOT NULL,
	breakdown  JSONB NOT NULL,
	reasons    TEXT[],
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_match_results_scan ON match_results(scan_id);
`

// Migrate creates the registry tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const requestColumns = `
	id, COALESCE(project_name, ''), COALESCE(state, ''),
	COALESCE(project_category, ''), COALESCE(project_type, ''),
	COALESCE(amount, 0), owner_occupied, COALESCE(financing_category, ''),
	rural, COALESCE(nonprofit, false), COALESCE(minority_owned, false),
	COALESCE(tribal, false), COALESCE(severely_distressed, false),
	COALESCE(distress_percentile, 0), COALESCE(underserved_geography, false),
	COALESCE(allocation_tier, '')`

// GetFundingRequest fetches one request by id; unknown ids return nil, nil.
func (s *PostgresStore) GetFundingRequest(ctx context.Context, id string) (*matching.FundingRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+requestColumns+` FROM funding_requests WHERE id = $1`, id)

	var req matching.FundingRequest
	if err := scanRequest(row, &req); err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get funding request %s", id)
	}
	return &req, nil
}

// ListOpenRequests returns up to limit open requests, newest first.
func (s *PostgresStore) ListOpenRequests(ctx context.Context, limit int) ([]matching.FundingRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+requestColumns+` FROM funding_requests WHERE status = 'open' ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list open requests")
	}
	defer rows.Close()

	var out []matching.FundingRequest
	for rows.Next() {
		var req matching.FundingRequest
		if err := scanRequest(rows, &req); err != nil {
			return nil, eris.Wrap(err, "postgres: scan funding request")
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate funding requests")
	}
	return out, nil
}

func scanRequest(row pgx.Row, req *matching.FundingRequest) error {
	return row.Scan(
		&req.ID, &req.ProjectName, &req.State,
		&req.ProjectCategory, &req.ProjectType,
		&req.Amount, &req.OwnerOccupied, &req.FinancingCategory,
		&req.Rural, &req.Nonprofit, &req.MinorityOwned,
		&req.Tribal, &req.SeverelyDistressed,
		&req.DistressPercentile, &req.UnderservedGeography,
		&req.AllocationTier,
	)
}

const mandateColumns = `
	id, org_id, COALESCE(name, ''), COALESCE(coverage, ''),
	COALESCE(states, '{}'), COALESCE(predominant_market, ''),
	COALESCE(financing_types, ''), COALESCE(min_deal_size, 0),
	COALESCE(max_deal_size, 0), COALESCE(rural_focus, false),
	COALESCE(urban_focus, false), COALESCE(minority_focus, false),
	COALESCE(underserved_focus, false), COALESCE(tribal_focus, false),
	COALESCE(small_deal_fund, false), COALESCE(owner_occupied_pref, false),
	COALESCE(nonprofit_pref, false), accepts_for_profit,
	COALESCE(requires_severe_distress, false),
	COALESCE(min_distress_percentile, 0), COALESCE(remaining_allocation, 0),
	COALESCE(allocation_tier, ''), COALESCE(allocation_years, '{}'),
	non_metro_pct, COALESCE(activities, ''), COALESCE(target_sectors, '{}')`

// ListMandatesByOrg returns every allocation-year record for one org,
// oldest vintage first.
func (s *PostgresStore) ListMandatesByOrg(ctx context.Context, orgID string) ([]matching.AllocatorMandate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+mandateColumns+` FROM allocator_mandates WHERE org_id = $1 ORDER BY id`, orgID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list mandates for org %s", orgID)
	}
	defer rows.Close()
	return scanMandates(rows)
}

// ListActiveMandates returns up to limit records from the active registry.
func (s *PostgresStore) ListActiveMandates(ctx context.Context, limit int) ([]matching.AllocatorMandate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+mandateColumns+` FROM allocator_mandates WHERE active ORDER BY org_id, id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active mandates")
	}
	defer rows.Close()
	return scanMandates(rows)
}

func scanMandates(rows pgx.Rows) ([]matching.AllocatorMandate, error) {
	var out []matching.AllocatorMandate
	for rows.Next() {
		var m matching.AllocatorMandate
		var coverage string
		err := rows.Scan(
			&m.ID, &m.OrgID, &m.Name, &coverage,
			&m.States, &m.PredominantMarket,
			&m.FinancingTypes, &m.MinDealSize,
			&m.MaxDealSize, &m.RuralFocus,
			&m.UrbanFocus, &m.MinorityFocus,
			&m.UnderservedFocus, &m.TribalFocus,
			&m.SmallDealFund, &m.OwnerOccupiedPref,
			&m.NonprofitPref, &m.AcceptsForProfit,
			&m.RequiresSevereDistress,
			&m.MinDistressPercentile, &m.RemainingAllocation,
			&m.AllocationTier, &m.AllocationYears,
			&m.NonMetroPct, &m.Activities, &m.TargetSectors,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan mandate")
		}
		m.Coverage = matching.Coverage(coverage)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate mandates")
	}
	return out, nil
}

// SaveScanResults persists a scan's ranked output in one transaction.
func (s *PostgresStore) SaveScanResults(ctx context.Context, scanID uuid.UUID, orgID string, results []matching.RequestMatch) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin scan results")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range results {
		breakdown, err := json.Marshal(r.Breakdown)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal breakdown for request %s", r.RequestID)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO match_results (scan_id, org_id, request_id, score, tier, breakdown, reasons)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, scanID.String(), orgID, r.RequestID, r.Score, string(r.Tier), breakdown, r.Reasons)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert result for request %s", r.RequestID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit scan results")
	}
	return nil
}
