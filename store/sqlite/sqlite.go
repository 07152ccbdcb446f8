/*
Package sqlite provides a SQLite-backed implementation of the payout
storage interfaces.

PURPOSE:
  Implements the full payout.Store surface using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

WRITE CONTRACTS:
  - ReplacePayouts runs DELETE + INSERTs in one database transaction,
    keeping recalculation idempotent per (run, employee).
  - TransitionRun is a single UPDATE guarded by the expected current
    status; zero rows affected means the caller lost the race.
  - One run per month and one payout row per (run, employee, type) are
    enforced with unique indexes, not application checks.

KEY TABLES:
  payout_runs:          Monthly batch state machine
  monthly_payouts:      The payout ledger of record
  employees:            HR read model
  comp_plans:           Plan definitions, config as JSON
  assignment_segments:  Employee-to-plan bindings with windows
  performance_targets:  Achievement denominators
  deals:                Sales events, revenue + participants as JSON
  arr_snapshots:        Point-in-time closing ARR readings
  exchange_rates:       Monthly market rates per currency
  clawback_ledger:      Owed recoveries
  adjustments:          Corrections workflow
  fnf_settlements:      Departure settlements + lines

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payouts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payout/store.go: Interface definitions
  - payout/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/payout"
)

// Store implements payout.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Payout runs (one per month, state machine)
	CREATE TABLE IF NOT EXISTS payout_runs (
		id TEXT PRIMARY KEY,
		month TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		is_locked BOOLEAN DEFAULT FALSE,
		total_employees INTEGER DEFAULT 0,
		total_payout_usd TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		finalized_at TEXT,
		finalized_by TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_month ON payout_runs(month);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON payout_runs(status);

	-- Monthly payouts (the ledger of record)
	CREATE TABLE IF NOT EXISTS monthly_payouts (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		payout_type TEXT NOT NULL,
		gross_usd TEXT NOT NULL,
		gross_local TEXT NOT NULL,
		currency TEXT NOT NULL,
		fx_rate TEXT NOT NULL,
		rate_source TEXT NOT NULL,
		comp_rate TEXT NOT NULL,
		market_rate TEXT NOT NULL,
		booking_usd TEXT NOT NULL,
		collection_usd TEXT NOT NULL,
		year_end_usd TEXT NOT NULL,
		collection_released_at TEXT,
		created_at TEXT NOT NULL
	);

	-- One row per (run, employee, type); recalculation replaces, never
	-- duplicates.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payouts_unique
		ON monthly_payouts(run_id, employee_id, payout_type);
	CREATE INDEX IF NOT EXISTS idx_payouts_run ON monthly_payouts(run_id);
	CREATE INDEX IF NOT EXISTS idx_payouts_employee ON monthly_payouts(employee_id);

	-- Employees (HR read model)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		manager_id TEXT,
		hire_date TEXT NOT NULL,
		departure_date TEXT,
		target_variable_pay_usd TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT 'USD',
		active BOOLEAN DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_employees_active ON employees(active);

	-- Compensation plans (config as JSON)
	CREATE TABLE IF NOT EXISTS comp_plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		year INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Assignment segments (employee-to-plan windows)
	CREATE TABLE IF NOT EXISTS assignment_segments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT,
		target_bonus_usd TEXT NOT NULL DEFAULT '0',
		comp_rate TEXT NOT NULL DEFAULT '1'
	);

	CREATE INDEX IF NOT EXISTS idx_segments_employee
		ON assignment_segments(employee_id, from_date);

	-- Performance targets (achievement denominators)
	CREATE TABLE IF NOT EXISTS performance_targets (
		employee_id TEXT NOT NULL,
		metric_name TEXT NOT NULL,
		year INTEGER NOT NULL,
		annual_usd TEXT NOT NULL DEFAULT '0',
		quarters_json TEXT,
		PRIMARY KEY (employee_id, metric_name, year)
	);

	-- Deals (revenue map and participant slots as JSON)
	CREATE TABLE IF NOT EXISTS deals (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		closed_at TEXT NOT NULL,
		revenue_json TEXT NOT NULL,
		gp_margin_pct TEXT NOT NULL DEFAULT '0',
		participants_json TEXT NOT NULL,
		collection_status TEXT NOT NULL DEFAULT 'pending',
		collection_due_at TEXT NOT NULL,
		collected_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_deals_closed_at ON deals(closed_at);
	CREATE INDEX IF NOT EXISTS idx_deals_collection ON deals(collection_status);

	-- Closing ARR snapshots (point-in-time readings)
	CREATE TABLE IF NOT EXISTS arr_snapshots (
		owner_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		month TEXT NOT NULL,
		value_usd TEXT NOT NULL DEFAULT '0',
		end_date TEXT NOT NULL,
		PRIMARY KEY (customer_id, project_id, month)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_owner ON arr_snapshots(owner_id);

	-- Monthly market exchange rates (local per USD)
	CREATE TABLE IF NOT EXISTS exchange_rates (
		month TEXT NOT NULL,
		currency TEXT NOT NULL,
		rate TEXT NOT NULL,
		PRIMARY KEY (month, currency)
	);

	-- Clawback ledger
	CREATE TABLE IF NOT EXISTS clawback_ledger (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		deal_id TEXT NOT NULL,
		original_usd TEXT NOT NULL,
		recovered_usd TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clawbacks_employee ON clawback_ledger(employee_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_clawbacks_unique
		ON clawback_ledger(employee_id, deal_id);

	-- Adjustments (corrections workflow)
	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		amount_usd TEXT NOT NULL,
		reason TEXT,
		target_month TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_by TEXT,
		reviewed_by TEXT,
		applied_run TEXT,
		created_at TEXT NOT NULL,
		reviewed_at TEXT,
		applied_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_status ON adjustments(status);

	-- Full & Final settlements
	CREATE TABLE IF NOT EXISTS fnf_settlements (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		departure_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		clawback_carry_usd TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fnf_settlement_lines (
		id TEXT PRIMARY KEY,
		settlement_id TEXT NOT NULL,
		tranche INTEGER NOT NULL,
		description TEXT NOT NULL,
		amount_usd TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fnf_lines_settlement
		ON fnf_settlement_lines(settlement_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN STORE (payout.RunStore interface)
// =============================================================================

// CreateRun inserts a draft run. The unique month index rejects a second
// run for the same month.
func (s *Store) CreateRun(ctx context.Context, run *payout.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payout_runs
		(id, month, status, is_locked, total_employees, total_payout_usd, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		string(run.ID),
		run.MonthYear.String(),
		string(run.Status),
		run.IsLocked,
		run.TotalEmployees,
		run.TotalPayoutUSD.String(),
		run.CreatedAt.Format(time.RFC3339),
		run.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", engine.ErrDuplicateRun, run.MonthYear)
		}
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id engine.RunID) (*payout.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRun(ctx, "WHERE id = ?", string(id))
}

// GetRunByMonth retrieves the run for a month.
func (s *Store) GetRunByMonth(ctx context.Context, month engine.MonthYear) (*payout.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRun(ctx, "WHERE month = ?", month.String())
}

func (s *Store) queryRun(ctx context.Context, where string, arg any) (*payout.Run, error) {
	query := `
		SELECT id, month, status, is_locked, total_employees, total_payout_usd,
		       created_at, updated_at, finalized_at, finalized_by
		FROM payout_runs ` + where

	row := s.db.QueryRowContext(ctx, query, arg)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %v", engine.ErrRunNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns all runs ordered by month.
func (s *Store) ListRuns(ctx context.Context) ([]*payout.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, month, status, is_locked, total_employees, total_payout_usd,
		       created_at, updated_at, finalized_at, finalized_by
		FROM payout_runs
		ORDER BY month ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*payout.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(r rowScanner) (*payout.Run, error) {
	var (
		run                  payout.Run
		id, month, status    string
		totalUSD             string
		createdAt, updatedAt string
		finalizedAt          sql.NullString
		finalizedBy          sql.NullString
	)

	err := r.Scan(&id, &month, &status, &run.IsLocked, &run.TotalEmployees,
		&totalUSD, &createdAt, &updatedAt, &finalizedAt, &finalizedBy)
	if err != nil {
		return nil, err
	}

	run.ID = engine.RunID(id)
	run.MonthYear, _ = engine.ParseMonthYear(month)
	run.Status = payout.RunStatus(status)
	run.TotalPayoutUSD = engine.MustParseDecimal(totalUSD)
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if finalizedAt.Valid {
		t, _ := time.Parse(time.RFC3339, finalizedAt.String)
		run.FinalizedAt = &t
	}
	run.FinalizedBy = finalizedBy.String
	return &run, nil
}

// TransitionRun is the compare-and-set: the UPDATE is guarded by the
// expected current status, so a lost race affects zero rows.
func (s *Store) TransitionRun(ctx context.Context, id engine.RunID, from, to payout.RunStatus, actorID string, lock bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)

	var res sql.Result
	var err error
	if lock {
		res, err = s.db.ExecContext(ctx, `
			UPDATE payout_runs
			SET status = ?, is_locked = TRUE, updated_at = ?, finalized_at = ?, finalized_by = ?
			WHERE id = ? AND status = ?`,
			string(to), now, now, actorID, string(id), string(from))
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE payout_runs
			SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(to), now, string(id), string(from))
	}
	if err != nil {
		return fmt.Errorf("failed to transition run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the run is missing or someone else moved it first.
		var count int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM payout_runs WHERE id = ?", string(id)).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", engine.ErrRunNotFound, id)
		}
		return fmt.Errorf("%w: run %s no longer %s", engine.ErrConcurrentModification, id, from)
	}
	return nil
}

// UpdateRunTotals records the batch summary on the run.
func (s *Store) UpdateRunTotals(ctx context.Context, id engine.RunID, employees int, totalUSD decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE payout_runs
		SET total_employees = ?, total_payout_usd = ?, updated_at = ?
		WHERE id = ?`,
		employees, totalUSD.String(), time.Now().UTC().Format(time.RFC3339), string(id))
	return err
}

// DeleteRun removes a run and its payout rows.
func (s *Store) DeleteRun(ctx context.Context, id engine.RunID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM monthly_payouts WHERE run_id = ?", string(id)); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM payout_runs WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: %s", engine.ErrRunNotFound, id)
	}
	return tx.Commit()
}

// =============================================================================
// REFERENCE STORE (payout.ReferenceStore interface)
// =============================================================================

// SaveEmployee upserts an employee record.
func (s *Store) SaveEmployee(ctx context.Context, emp payout.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees
		(id, name, manager_id, hire_date, departure_date, target_variable_pay_usd, currency, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			manager_id = excluded.manager_id,
			hire_date = excluded.hire_date,
			departure_date = excluded.departure_date,
			target_variable_pay_usd = excluded.target_variable_pay_usd,
			currency = excluded.currency,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		string(emp.ID), emp.Name, string(emp.ManagerID),
		emp.HireDate.Format(time.RFC3339),
		nullTime(emp.DepartureDate),
		emp.TargetVariablePayUSD.String(),
		emp.Currency,
		emp.Active,
	)
	return err
}

// ListActiveEmployees returns all active employees.
func (s *Store) ListActiveEmployees(ctx context.Context) ([]payout.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, manager_id, hire_date, departure_date, target_variable_pay_usd, currency, active
		FROM employees
		WHERE active = TRUE
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []payout.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (*payout.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, manager_id, hire_date, departure_date, target_variable_pay_usd, currency, active
		FROM employees WHERE id = ?`, string(id))

	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: employee %s", payout.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return emp, nil
}

func scanEmployee(r rowScanner) (*payout.Employee, error) {
	var (
		emp                payout.Employee
		id, name, manager  string
		hireDate           string
		departureDate      sql.NullString
		targetVariablePay  string
	)

	err := r.Scan(&id, &name, &manager, &hireDate, &departureDate,
		&targetVariablePay, &emp.Currency, &emp.Active)
	if err != nil {
		return nil, err
	}

	emp.ID = engine.EmployeeID(id)
	emp.Name = name
	emp.ManagerID = engine.EmployeeID(manager)
	emp.HireDate, _ = time.Parse(time.RFC3339, hireDate)
	if departureDate.Valid {
		t, _ := time.Parse(time.RFC3339, departureDate.String)
		emp.DepartureDate = &t
	}
	emp.TargetVariablePayUSD = engine.MustParseDecimal(targetVariablePay)
	return &emp, nil
}

// SaveSegment upserts an assignment segment.
func (s *Store) SaveSegment(ctx context.Context, seg engine.AssignmentSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO assignment_segments
		(id, employee_id, plan_id, from_date, to_date, target_bonus_usd, comp_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plan_id = excluded.plan_id,
			from_date = excluded.from_date,
			to_date = excluded.to_date,
			target_bonus_usd = excluded.target_bonus_usd,
			comp_rate = excluded.comp_rate
	`

	_, err := s.db.ExecContext(ctx, query,
		seg.ID, string(seg.EmployeeID), string(seg.PlanID),
		seg.From.Format(time.RFC3339),
		nullTime(seg.To),
		seg.TargetBonusUSD.String(),
		seg.CompRate.String(),
	)
	return err
}

// SegmentsForYear returns an employee's segments touching the fiscal year.
func (s *Store) SegmentsForYear(ctx context.Context, emp engine.EmployeeID, fy engine.FiscalYear) ([]engine.AssignmentSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, plan_id, from_date, to_date, target_bonus_usd, comp_rate
		FROM assignment_segments
		WHERE employee_id = ?
		  AND from_date <= ?
		  AND (to_date IS NULL OR to_date >= ?)
		ORDER BY from_date ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(emp),
		fy.End.Format(time.RFC3339), fy.Start.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []engine.AssignmentSegment
	for rows.Next() {
		var (
			seg              engine.AssignmentSegment
			id, empID, plan  string
			from             string
			to               sql.NullString
			target, compRate string
		)
		if err := rows.Scan(&id, &empID, &plan, &from, &to, &target, &compRate); err != nil {
			return nil, err
		}
		seg.ID = id
		seg.EmployeeID = engine.EmployeeID(empID)
		seg.PlanID = engine.PlanID(plan)
		seg.From, _ = time.Parse(time.RFC3339, from)
		if to.Valid {
			t, _ := time.Parse(time.RFC3339, to.String)
			seg.To = &t
		}
		seg.TargetBonusUSD = engine.MustParseDecimal(target)
		seg.CompRate = engine.MustParseDecimal(compRate)
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// SaveTarget upserts a performance target.
func (s *Store) SaveTarget(ctx context.Context, t payout.PerformanceTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var quartersJSON *string
	if len(t.QuarterUSD) > 0 {
		b, err := json.Marshal(t.QuarterUSD)
		if err != nil {
			return err
		}
		str := string(b)
		quartersJSON = &str
	}

	query := `
		INSERT INTO performance_targets (employee_id, metric_name, year, annual_usd, quarters_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, metric_name, year) DO UPDATE SET
			annual_usd = excluded.annual_usd,
			quarters_json = excluded.quarters_json
	`

	_, err := s.db.ExecContext(ctx, query,
		string(t.EmployeeID), t.MetricName, t.Year, t.AnnualUSD.String(), quartersJSON)
	return err
}

// TargetsForYear returns an employee's targets for one year.
func (s *Store) TargetsForYear(ctx context.Context, emp engine.EmployeeID, year int) ([]payout.PerformanceTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, metric_name, year, annual_usd, quarters_json
		FROM performance_targets
		WHERE employee_id = ? AND year = ?`, string(emp), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []payout.PerformanceTarget
	for rows.Next() {
		var (
			t        payout.PerformanceTarget
			empID    string
			annual   string
			quarters sql.NullString
		)
		if err := rows.Scan(&empID, &t.MetricName, &t.Year, &annual, &quarters); err != nil {
			return nil, err
		}
		t.EmployeeID = engine.EmployeeID(empID)
		t.AnnualUSD = engine.MustParseDecimal(annual)
		if quarters.Valid && quarters.String != "" {
			json.Unmarshal([]byte(quarters.String), &t.QuarterUSD)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// SavePlan upserts a compensation plan; the full plan marshals to JSON.
func (s *Store) SavePlan(ctx context.Context, p *engine.CompPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO comp_plans (id, name, year, config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			year = excluded.year,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		string(p.ID), p.Name, p.Year, string(configJSON), now, now)
	return err
}

// GetPlan retrieves a plan by ID. A missing plan returns (nil, nil); the
// calculator degrades to an empty statement for unassigned employees.
func (s *Store) GetPlan(ctx context.Context, id engine.PlanID) (*engine.CompPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var configJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json FROM comp_plans WHERE id = ?", string(id)).Scan(&configJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var plan engine.CompPlan
	if err := json.Unmarshal([]byte(configJSON), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan %s: %w", id, err)
	}
	return &plan, nil
}

// SaveDeal upserts a deal.
func (s *Store) SaveDeal(ctx context.Context, d engine.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	revenueJSON, err := json.Marshal(d.Revenue)
	if err != nil {
		return err
	}
	participantsJSON, err := json.Marshal(d.Participants)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO deals
		(id, customer_id, closed_at, revenue_json, gp_margin_pct, participants_json,
		 collection_status, collection_due_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			revenue_json = excluded.revenue_json,
			gp_margin_pct = excluded.gp_margin_pct,
			participants_json = excluded.participants_json,
			collection_status = excluded.collection_status,
			collection_due_at = excluded.collection_due_at,
			collected_at = excluded.collected_at
	`

	_, err = s.db.ExecContext(ctx, query,
		string(d.ID), d.CustomerID, d.ClosedAt.Format(time.RFC3339),
		string(revenueJSON), d.GPMarginPct.String(), string(participantsJSON),
		string(d.Collection), d.CollectionDueAt.Format(time.RFC3339),
		nullTime(d.CollectedAt),
	)
	return err
}

// DealsInRange returns every deal closed in [from, to].
func (s *Store) DealsInRange(ctx context.Context, from, to engine.MonthYear) ([]engine.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer_id, closed_at, revenue_json, gp_margin_pct, participants_json,
		       collection_status, collection_due_at, collected_at
		FROM deals
		WHERE closed_at >= ? AND closed_at <= ?
		ORDER BY closed_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query,
		from.Start().Format(time.RFC3339), to.End().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []engine.Deal
	for rows.Next() {
		var (
			d                         engine.Deal
			id, closedAt, dueAt       string
			revenueJSON, participants string
			margin, status            string
			collectedAt               sql.NullString
		)
		if err := rows.Scan(&id, &d.CustomerID, &closedAt, &revenueJSON, &margin,
			&participants, &status, &dueAt, &collectedAt); err != nil {
			return nil, err
		}
		d.ID = engine.DealID(id)
		d.ClosedAt, _ = time.Parse(time.RFC3339, closedAt)
		json.Unmarshal([]byte(revenueJSON), &d.Revenue)
		d.GPMarginPct = engine.MustParseDecimal(margin)
		json.Unmarshal([]byte(participants), &d.Participants)
		d.Collection = engine.CollectionStatus(status)
		d.CollectionDueAt, _ = time.Parse(time.RFC3339, dueAt)
		if collectedAt.Valid {
			t, _ := time.Parse(time.RFC3339, collectedAt.String)
			d.CollectedAt = &t
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// SaveSnapshot upserts a closing ARR snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap engine.ARRSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO arr_snapshots (owner_id, customer_id, project_id, month, value_usd, end_date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id, project_id, month) DO UPDATE SET
			owner_id = excluded.owner_id,
			value_usd = excluded.value_usd,
			end_date = excluded.end_date
	`

	_, err := s.db.ExecContext(ctx, query,
		string(snap.OwnerID), snap.CustomerID, snap.ProjectID,
		snap.Month.String(), snap.ValueUSD.String(),
		snap.EndDate.Format(time.RFC3339))
	return err
}

// ARRSnapshots returns all snapshots; eligibility filtering happens in
// the engine against the fiscal year.
func (s *Store) ARRSnapshots(ctx context.Context, fy engine.FiscalYear) ([]engine.ARRSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT owner_id, customer_id, project_id, month, value_usd, end_date
		FROM arr_snapshots
		ORDER BY month ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []engine.ARRSnapshot
	for rows.Next() {
		var (
			snap            engine.ARRSnapshot
			owner, month    string
			value, endDate  string
		)
		if err := rows.Scan(&owner, &snap.CustomerID, &snap.ProjectID, &month, &value, &endDate); err != nil {
			return nil, err
		}
		snap.OwnerID = engine.EmployeeID(owner)
		snap.Month, _ = engine.ParseMonthYear(month)
		snap.ValueUSD = engine.MustParseDecimal(value)
		snap.EndDate, _ = time.Parse(time.RFC3339, endDate)
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// SaveRate upserts one month's market rate for a currency.
func (s *Store) SaveRate(ctx context.Context, month engine.MonthYear, currency string, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (month, currency, rate)
		VALUES (?, ?, ?)
		ON CONFLICT(month, currency) DO UPDATE SET rate = excluded.rate`,
		month.String(), currency, rate.String())
	return err
}

// MarketRates returns local-per-USD rates for one month, by currency.
func (s *Store) MarketRates(ctx context.Context, month engine.MonthYear) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT currency, rate FROM exchange_rates WHERE month = ?", month.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rates := make(map[string]decimal.Decimal)
	for rows.Next() {
		var currency, rate string
		if err := rows.Scan(&currency, &rate); err != nil {
			return nil, err
		}
		rates[currency] = engine.MustParseDecimal(rate)
	}
	return rates, rows.Err()
}

// =============================================================================
// PAYOUT LEDGER STORE (payout.PayoutStore interface)
// =============================================================================

// ReplacePayouts atomically clears and rewrites all rows for one
// (run, employee) pair: DELETE + INSERTs in a single transaction.
func (s *Store) ReplacePayouts(ctx context.Context, runID engine.RunID, emp engine.EmployeeID, payoutRows []payout.MonthlyPayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM monthly_payouts WHERE run_id = ? AND employee_id = ?",
		string(runID), string(emp)); err != nil {
		return err
	}

	for _, row := range payoutRows {
		if err := insertPayout(ctx, tx, row); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendPayout adds a single row without clearing (adjustments, F&F).
func (s *Store) AppendPayout(ctx context.Context, row payout.MonthlyPayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertPayout(ctx, s.db, row)
}

func insertPayout(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, row payout.MonthlyPayout) error {
	query := `
		INSERT INTO monthly_payouts
		(id, run_id, employee_id, payout_type, gross_usd, gross_local, currency,
		 fx_rate, rate_source, comp_rate, market_rate,
		 booking_usd, collection_usd, year_end_usd, collection_released_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		row.ID, string(row.RunID), string(row.EmployeeID), string(row.Type),
		row.GrossUSD.String(), row.GrossLocal.String(), row.Currency,
		row.FXRate.String(), string(row.RateSource),
		row.CompRate.String(), row.MarketRate.String(),
		row.BookingUSD.String(), row.CollectionUSD.String(), row.YearEndUSD.String(),
		nullTime(row.CollectionReleasedAt),
		row.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payout row: %w", err)
	}
	return nil
}

// ListPayouts returns all ledger rows for a run.
func (s *Store) ListPayouts(ctx context.Context, runID engine.RunID) ([]payout.MonthlyPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := payoutSelect + `
		WHERE run_id = ?
		ORDER BY employee_id ASC, payout_type ASC
	`
	return s.queryPayouts(ctx, query, string(runID))
}

// MarkCollectionReleased stamps a row's collection tranche as paid.
func (s *Store) MarkCollectionReleased(ctx context.Context, rowID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE monthly_payouts
		SET collection_released_at = ?
		WHERE id = ?`,
		at.Format(time.RFC3339), rowID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: payout row %s", payout.ErrNotFound, rowID)
	}
	return nil
}

// ListPayoutsForEmployee returns an employee's rows across all runs.
func (s *Store) ListPayoutsForEmployee(ctx context.Context, emp engine.EmployeeID) ([]payout.MonthlyPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := payoutSelect + `
		WHERE employee_id = ?
		ORDER BY created_at ASC
	`
	return s.queryPayouts(ctx, query, string(emp))
}

const payoutSelect = `
	SELECT id, run_id, employee_id, payout_type, gross_usd, gross_local, currency,
	       fx_rate, rate_source, comp_rate, market_rate,
	       booking_usd, collection_usd, year_end_usd, collection_released_at, created_at
	FROM monthly_payouts
`

func (s *Store) queryPayouts(ctx context.Context, query string, args ...any) ([]payout.MonthlyPayout, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []payout.MonthlyPayout
	for rows.Next() {
		var (
			row                          payout.MonthlyPayout
			id, runID, empID, pt         string
			grossUSD, grossLocal         string
			fxRate, rateSource           string
			compRate, marketRate         string
			booking, collection, yearEnd string
			releasedAt                   sql.NullString
			createdAt                    string
		)
		if err := rows.Scan(&id, &runID, &empID, &pt, &grossUSD, &grossLocal,
			&row.Currency, &fxRate, &rateSource, &compRate, &marketRate,
			&booking, &collection, &yearEnd, &releasedAt, &createdAt); err != nil {
			return nil, err
		}
		row.ID = id
		row.RunID = engine.RunID(runID)
		row.EmployeeID = engine.EmployeeID(empID)
		row.Type = payout.PayoutType(pt)
		row.GrossUSD = engine.MustParseDecimal(grossUSD)
		row.GrossLocal = engine.MustParseDecimal(grossLocal)
		row.FXRate = engine.MustParseDecimal(fxRate)
		row.RateSource = engine.RateSource(rateSource)
		row.CompRate = engine.MustParseDecimal(compRate)
		row.MarketRate = engine.MustParseDecimal(marketRate)
		row.BookingUSD = engine.MustParseDecimal(booking)
		row.CollectionUSD = engine.MustParseDecimal(collection)
		row.YearEndUSD = engine.MustParseDecimal(yearEnd)
		if releasedAt.Valid {
			t, _ := time.Parse(time.RFC3339, releasedAt.String)
			row.CollectionReleasedAt = &t
		}
		row.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		payouts = append(payouts, row)
	}
	return payouts, rows.Err()
}

// =============================================================================
// CLAWBACK STORE (payout.ClawbackStore interface)
// =============================================================================

// SaveClawbacks inserts new ledger entries atomically.
func (s *Store) SaveClawbacks(ctx context.Context, entries []engine.ClawbackEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clawback_ledger
			(id, employee_id, deal_id, original_usd, recovered_usd, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, string(e.EmployeeID), string(e.DealID),
			e.OriginalUSD.String(), e.RecoveredUSD.String(),
			string(e.Status), e.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to insert clawback: %w", err)
		}
	}
	return tx.Commit()
}

// ListClawbacks returns an employee's clawback entries.
func (s *Store) ListClawbacks(ctx context.Context, emp engine.EmployeeID) ([]engine.ClawbackEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, deal_id, original_usd, recovered_usd, status, created_at
		FROM clawback_ledger
		WHERE employee_id = ?
		ORDER BY created_at ASC`, string(emp))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []engine.ClawbackEntry
	for rows.Next() {
		var (
			e                       engine.ClawbackEntry
			id, empID, dealID       string
			original, recovered     string
			status, createdAt       string
		)
		if err := rows.Scan(&id, &empID, &dealID, &original, &recovered, &status, &createdAt); err != nil {
			return nil, err
		}
		e.ID = id
		e.EmployeeID = engine.EmployeeID(empID)
		e.DealID = engine.DealID(dealID)
		e.OriginalUSD = engine.MustParseDecimal(original)
		e.RecoveredUSD = engine.MustParseDecimal(recovered)
		e.Status = engine.ClawbackStatus(status)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateClawback persists a recovery or status change.
func (s *Store) UpdateClawback(ctx context.Context, entry engine.ClawbackEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE clawback_ledger
		SET recovered_usd = ?, status = ?
		WHERE id = ?`,
		entry.RecoveredUSD.String(), string(entry.Status), entry.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: clawback %s", payout.ErrNotFound, entry.ID)
	}
	return nil
}

// =============================================================================
// ADJUSTMENT STORE (payout.AdjustmentStore interface)
// =============================================================================

// SaveAdjustment inserts an adjustment record.
func (s *Store) SaveAdjustment(ctx context.Context, adj *payout.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO adjustments
		(id, employee_id, amount_usd, reason, target_month, status, created_by,
		 reviewed_by, applied_run, created_at, reviewed_at, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		adj.ID, string(adj.EmployeeID), adj.AmountUSD.String(), adj.Reason,
		adj.TargetMonth.String(), string(adj.Status), adj.CreatedBy,
		adj.ReviewedBy, string(adj.AppliedRun),
		adj.CreatedAt.Format(time.RFC3339),
		nullTime(adj.ReviewedAt), nullTime(adj.AppliedAt),
	)
	return err
}

// GetAdjustment retrieves an adjustment by ID.
func (s *Store) GetAdjustment(ctx context.Context, id string) (*payout.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, adjustmentSelect+" WHERE id = ?", id)
	adj, err := scanAdjustment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: adjustment %s", payout.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// UpdateAdjustment persists a review or application.
func (s *Store) UpdateAdjustment(ctx context.Context, adj *payout.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE adjustments
		SET status = ?, reviewed_by = ?, applied_run = ?, reviewed_at = ?, applied_at = ?
		WHERE id = ?`,
		string(adj.Status), adj.ReviewedBy, string(adj.AppliedRun),
		nullTime(adj.ReviewedAt), nullTime(adj.AppliedAt), adj.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: adjustment %s", payout.ErrNotFound, adj.ID)
	}
	return nil
}

// ListAdjustments returns adjustments, optionally filtered by status.
func (s *Store) ListAdjustments(ctx context.Context, status payout.AdjustmentStatus) ([]*payout.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := adjustmentSelect
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []*payout.Adjustment
	for rows.Next() {
		adj, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}

const adjustmentSelect = `
	SELECT id, employee_id, amount_usd, reason, target_month, status, created_by,
	       reviewed_by, applied_run, created_at, reviewed_at, applied_at
	FROM adjustments
`

func scanAdjustment(r rowScanner) (*payout.Adjustment, error) {
	var (
		adj                    payout.Adjustment
		empID, amount, month   string
		status, appliedRun     string
		createdAt              string
		reviewedAt, appliedAt  sql.NullString
	)

	err := r.Scan(&adj.ID, &empID, &amount, &adj.Reason, &month, &status,
		&adj.CreatedBy, &adj.ReviewedBy, &appliedRun, &createdAt, &reviewedAt, &appliedAt)
	if err != nil {
		return nil, err
	}

	adj.EmployeeID = engine.EmployeeID(empID)
	adj.AmountUSD = engine.MustParseDecimal(amount)
	adj.TargetMonth, _ = engine.ParseMonthYear(month)
	adj.Status = payout.AdjustmentStatus(status)
	adj.AppliedRun = engine.RunID(appliedRun)
	adj.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if reviewedAt.Valid {
		t, _ := time.Parse(time.RFC3339, reviewedAt.String)
		adj.ReviewedAt = &t
	}
	if appliedAt.Valid {
		t, _ := time.Parse(time.RFC3339, appliedAt.String)
		adj.AppliedAt = &t
	}
	return &adj, nil
}

// =============================================================================
// SETTLEMENT STORE (payout.SettlementStore interface)
// =============================================================================

// SaveSettlement inserts a settlement with its lines.
func (s *Store) SaveSettlement(ctx context.Context, settlement *payout.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fnf_settlements
		(id, employee_id, departure_date, status, clawback_carry_usd, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, string(settlement.EmployeeID),
		settlement.DepartureDate.Format(time.RFC3339),
		string(settlement.Status), settlement.ClawbackCarryUSD.String(),
		settlement.CreatedAt.Format(time.RFC3339),
		settlement.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return err
	}

	if err := writeLines(ctx, tx, settlement); err != nil {
		return err
	}
	return tx.Commit()
}

// GetSettlement retrieves a settlement with its lines.
func (s *Store) GetSettlement(ctx context.Context, id string) (*payout.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		settlement             payout.Settlement
		empID, departure       string
		status, carry          string
		createdAt, updatedAt   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, departure_date, status, clawback_carry_usd, created_at, updated_at
		FROM fnf_settlements WHERE id = ?`, id).Scan(
		&settlement.ID, &empID, &departure, &status, &carry, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: settlement %s", payout.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	settlement.EmployeeID = engine.EmployeeID(empID)
	settlement.DepartureDate, _ = time.Parse(time.RFC3339, departure)
	settlement.Status = payout.SettlementStatus(status)
	settlement.ClawbackCarryUSD = engine.MustParseDecimal(carry)
	settlement.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	settlement.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tranche, description, amount_usd
		FROM fnf_settlement_lines
		WHERE settlement_id = ?
		ORDER BY tranche ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line payout.SettlementLine
		var amount string
		if err := rows.Scan(&line.ID, &line.Tranche, &line.Description, &amount); err != nil {
			return nil, err
		}
		line.AmountUSD = engine.MustParseDecimal(amount)
		settlement.Lines = append(settlement.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &settlement, nil
}

// UpdateSettlement rewrites the settlement record and its lines.
func (s *Store) UpdateSettlement(ctx context.Context, settlement *payout.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE fnf_settlements
		SET status = ?, clawback_carry_usd = ?, updated_at = ?
		WHERE id = ?`,
		string(settlement.Status), settlement.ClawbackCarryUSD.String(),
		settlement.UpdatedAt.Format(time.RFC3339), settlement.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: settlement %s", payout.ErrNotFound, settlement.ID)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM fnf_settlement_lines WHERE settlement_id = ?", settlement.ID); err != nil {
		return err
	}
	if err := writeLines(ctx, tx, settlement); err != nil {
		return err
	}
	return tx.Commit()
}

func writeLines(ctx context.Context, tx *sql.Tx, settlement *payout.Settlement) error {
	for _, line := range settlement.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fnf_settlement_lines (id, settlement_id, tranche, description, amount_usd)
			VALUES (?, ?, ?, ?, ?)`,
			line.ID, settlement.ID, line.Tranche, line.Description, line.AmountUSD.String())
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"monthly_payouts", "payout_runs", "clawback_ledger", "adjustments",
		"fnf_settlement_lines", "fnf_settlements", "deals", "arr_snapshots",
		"exchange_rates", "performance_targets", "assignment_segments",
		"comp_plans", "employees",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// Compile-time check that Store satisfies the full payout surface.
var _ payout.Store = (*Store)(nil)
