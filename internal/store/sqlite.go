package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/caprock-exchange/match-cli/internal/matching"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for local
// development and fixture-driven testing; list-valued registry fields are
// stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS funding_requests (
	id                    TEXT PRIMARY KEY,
	project_name          TEXT NOT NULL DEFAULT '',
	state                 TEXT DEFAULT '',
	project_category      TEXT DEFAULT '',
	project_type          TEXT DEFAULT '',
	amount                INTEGER NOT NULL DEFAULT 0,
	owner_occupied        INTEGER,
	financing_category    TEXT DEFAULT '',
	rural                 INTEGER,
	nonprofit             INTEGER NOT NULL DEFAULT 0,
	minority_owned        INTEGER NOT NULL DEFAULT 0,
	tribal                INTEGER NOT NULL DEFAULT 0,
	severely_distressed   INTEGER NOT NULL DEFAULT 0,
	distress_percentile   REAL NOT NULL DEFAULT 0,
	underserved_geography INTEGER NOT NULL DEFAULT 0,
	allocation_tier       TEXT DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'open',
	created_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS allocator_mandates (
	id                       TEXT PRIMARY KEY,
	org_id                   TEXT NOT NULL,
	name                     TEXT NOT NULL DEFAULT '',
	coverage                 TEXT DEFAULT '',
	states                   TEXT DEFAULT '[]',
	predominant_market       TEXT DEFAULT '',
	financing_types          TEXT DEFAULT '',
	min_deal_size            INTEGER NOT NULL DEFAULT 0,
	max_deal_size            INTEGER NOT NULL DEFAULT 0,
	rural_focus              INTEGER NOT NULL DEFAULT 0,
	urban_focus              INTEGER NOT NULL DEFAULT 0,
	minority_focus           INTEGER NOT NULL DEFAULT 0,
	underserved_focus        INTEGER NOT NULL DEFAULT 0,
	tribal_focus             INTEGER NOT NULL DEFAULT 0,
	small_deal_fund          INTEGER NOT NULL DEFAULT 0,
	owner_occupied_pref      INTEGER NOT NULL DEFAULT 0,
	nonprofit_pref           INTEGER NOT NULL DEFAULT 0,
	accepts_for_profit       INTEGER,
	requires_severe_distress INTEGER NOT NULL DEFAULT 0,
	min_distress_percentile  REAL NOT NULL DEFAULT 0,
	remaining_allocation     INTEGER NOT NULL DEFAULT 0,
	allocation_tier          TEXT DEFAULT '',
	allocation_years         TEXT DEFAULT '[]',
	non_metro_pct            REAL,
	activities               TEXT DEFAULT '',
	target_sectors           TEXT DEFAULT '[]',
	active                   INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_funding_requests_status ON funding_requests(status);
CREATE INDEX IF NOT EXISTS idx_allocator_mandates_org ON allocator_mandates(org_id);

CREATE TABLE IF NOT EXISTS match_results (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id    TEXT NOT NULL,
	org_id     TEXT NOT NULL,
	request_id TEXT NOT NULL,
	score      INTEGER NOT NULL,
	tier       TEXT NOT NULL,
	breakdown  TEXT NOT NULL,
	reasons    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_match_results_scan ON match_results(scan_id);
`

// Migrate creates the registry tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteRequestColumns = `
	id, COALESCE(project_name, ''), COALESCE(state, ''),
	COALESCE(project_category, ''), COALESCE(project_type, ''),
	COALESCE(amount, 0), owner_occupied, COALESCE(financing_category, ''),
	rural, COALESCE(nonprofit, 0), COALESCE(minority_owned, 0),
	COALESCE(tribal, 0), COALESCE(severely_distressed, 0),
	COALESCE(distress_percentile, 0), COALESCE(underserved_geography, 0),
	COALESCE(allocation_tier, '')`

// GetFundingRequest fetches one request by id; unknown ids return nil, nil.
func (s *SQLiteStore) GetFundingRequest(ctx context.Context, id string) (*matching.FundingRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+sqliteRequestColumns+` FROM funding_requests WHERE id = ?`, id)

	req, err := scanSQLiteRequest(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get funding request %s", id)
	}
	return req, nil
}

// ListOpenRequests returns up to limit open requests, newest first.
func (s *SQLiteStore) ListOpenRequests(ctx context.Context, limit int) ([]matching.FundingRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+sqliteRequestColumns+` FROM funding_requests WHERE status = 'open' ORDER BY created_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list open requests")
	}
	defer rows.Close()

	var out []matching.FundingRequest
	for rows.Next() {
		req, err := scanSQLiteRequest(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan funding request")
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate funding requests")
	}
	return out, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRequest(row scanner) (*matching.FundingRequest, error) {
	var (
		req                         matching.FundingRequest
		ownerOccupied, rural        sql.NullInt64
		nonprofit, minority, tribal int64
		severe, underserved         int64
	)
	err := row.Scan(
		&req.ID, &req.ProjectName, &req.State,
		&req.ProjectCategory, &req.ProjectType,
		&req.Amount, &ownerOccupied, &req.FinancingCategory,
		&rural, &nonprofit, &minority,
		&tribal, &severe,
		&req.DistressPercentile, &underserved,
		&req.AllocationTier,
	)
	if err != nil {
		return nil, err
	}
	req.OwnerOccupied = nullableBool(ownerOccupied)
	req.Rural = nullableBool(rural)
	req.Nonprofit = nonprofit != 0
	req.MinorityOwned = minority != 0
	req.Tribal = tribal != 0
	req.SeverelyDistressed = severe != 0
	req.UnderservedGeography = underserved != 0
	return &req, nil
}

const sqliteMandateColumns = `
	id, org_id, COALESCE(name, ''), COALESCE(coverage, ''),
	COALESCE(states, '[]'), COALESCE(predominant_market, ''),
	COALESCE(financing_types, ''), COALESCE(min_deal_size, 0),
	COALESCE(max_deal_size, 0), COALESCE(rural_focus, 0),
	COALESCE(urban_focus, 0), COALESCE(minority_focus, 0),
	COALESCE(underserved_focus, 0), COALESCE(tribal_focus, 0),
	COALESCE(small_deal_fund, 0), COALESCE(owner_occupied_pref, 0),
	COALESCE(nonprofit_pref, 0), accepts_for_profit,
	COALESCE(requires_severe_distress, 0),
	COALESCE(min_distress_percentile, 0), COALESCE(remaining_allocation, 0),
	COALESCE(allocation_tier, ''), COALESCE(allocation_years, '[]'),
	non_metro_pct, COALESCE(activities, ''), COALESCE(target_sectors, '[]')`

// ListMandatesByOrg returns every allocation-year record for one org.
func (s *SQLiteStore) ListMandatesByOrg(ctx context.Context, orgID string) ([]matching.AllocatorMandate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+sqliteMandateColumns+` FROM allocator_mandates WHERE org_id = ? ORDER BY id`, orgID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list mandates for org %s", orgID)
	}
	defer rows.Close()
	return scanSQLiteMandates(rows)
}

// ListActiveMandates returns up to limit records from the active registry.
func (s *SQLiteStore) ListActiveMandates(ctx context.Context, limit int) ([]matching.AllocatorMandate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+sqliteMandateColumns+` FROM allocator_mandates WHERE active = 1 ORDER BY org_id, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active mandates")
	}
	defer rows.Close()
	return scanSQLiteMandates(rows)
}

func scanSQLiteMandates(rows *sql.Rows) ([]matching.AllocatorMandate, error) {
	var out []matching.AllocatorMandate
	for rows.Next() {
		var (
			m                                    matching.AllocatorMandate
			coverage                             string
			statesJSON, yearsJSON, sectorsJSON   string
			ruralF, urbanF, minorityF            int64
			underservedF, tribalF, smallF        int64
			ownerPref, nonprofitPref, requiresSD int64
			acceptsForProfit                     sql.NullInt64
			nonMetro                             sql.NullFloat64
		)
		err := rows.Scan(
			&m.ID, &m.OrgID, &m.Name, &coverage,
			&statesJSON, &m.PredominantMarket,
			&m.FinancingTypes, &m.MinDealSize,
			&m.MaxDealSize, &ruralF,
			&urbanF, &minorityF,
			&underservedF, &tribalF,
			&smallF, &ownerPref,
			&nonprofitPref, &acceptsForProfit,
			&requiresSD,
			&m.MinDistressPercentile, &m.RemainingAllocation,
			&m.AllocationTier, &yearsJSON,
			&nonMetro, &m.Activities, &sectorsJSON,
		)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mandate")
		}

		m.Coverage = matching.Coverage(coverage)
		m.RuralFocus = ruralF != 0
		m.UrbanFocus = urbanF != 0
		m.MinorityFocus = minorityF != 0
		m.UnderservedFocus = underservedF != 0
		m.TribalFocus = tribalF != 0
		m.SmallDealFund = smallF != 0
		m.OwnerOccupiedPref = ownerPref != 0
		m.NonprofitPref = nonprofitPref != 0
		m.RequiresSevereDistress = requiresSD != 0
		m.AcceptsForProfit = nullableBool(acceptsForProfit)
		if nonMetro.Valid {
			m.NonMetroPct = &nonMetro.Float64
		}

		if err := json.Unmarshal([]byte(statesJSON), &m.States); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse states for mandate %s", m.ID)
		}
		if err := json.Unmarshal([]byte(yearsJSON), &m.AllocationYears); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse allocation years for mandate %s", m.ID)
		}
		if err := json.Unmarshal([]byte(sectorsJSON), &m.TargetSectors); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse target sectors for mandate %s", m.ID)
		}

		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate mandates")
	}
	return out, nil
}

// SaveScanResults persists a scan's ranked output in one transaction.
func (s *SQLiteStore) SaveScanResults(ctx context.Context, scanID uuid.UUID, orgID string, results []matching.RequestMatch) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin scan results")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range results {
		breakdown, err := json.Marshal(r.Breakdown)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal breakdown for request %s", r.RequestID)
		}
		reasons, err := json.Marshal(r.Reasons)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal reasons for request %s", r.RequestID)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_results (scan_id, org_id, request_id, score, tier, breakdown, reasons)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, scanID.String(), orgID, r.RequestID, r.Score, string(r.Tier), string(breakdown), string(reasons))
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert result for request %s", r.RequestID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit scan results")
	}
	return nil
}

func nullableBool(v sql.NullInt64) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Int64 != 0
	return &b
}
