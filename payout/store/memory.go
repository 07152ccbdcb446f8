// Package store provides payout.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	runs        map[engine.RunID]*payout.Run
	runsByMonth map[engine.MonthYear]engine.RunID

	employees map[engine.EmployeeID]payout.Employee
	segments  map[engine.EmployeeID][]engine.AssignmentSegment
	targets   map[engine.EmployeeID][]payout.PerformanceTarget
	plans     map[engine.PlanID]*engine.CompPlan
	deals     []engine.Deal
	snapshots []engine.ARRSnapshot
	rates     map[engine.MonthYear]map[string]decimal.Decimal

	payouts     map[payoutKey][]payout.MonthlyPayout
	clawbacks   map[engine.EmployeeID][]engine.ClawbackEntry
	adjustments map[string]*payout.Adjustment
	settlements map[string]*payout.Settlement
}

type payoutKey struct {
	RunID      engine.RunID
	EmployeeID engine.EmployeeID
}

func NewMemory() *Memory {
	return &Memory{
		runs:        make(map[engine.RunID]*payout.Run),
		runsByMonth: make(map[engine.MonthYear]engine.RunID),
		employees:   make(map[engine.EmployeeID]payout.Employee),
		segments:    make(map[engine.EmployeeID][]engine.AssignmentSegment),
		targets:     make(map[engine.EmployeeID][]payout.PerformanceTarget),
		plans:       make(map[engine.PlanID]*engine.CompPlan),
		rates:       make(map[engine.MonthYear]map[string]decimal.Decimal),
		payouts:     make(map[payoutKey][]payout.MonthlyPayout),
		clawbacks:   make(map[engine.EmployeeID][]engine.ClawbackEntry),
		adjustments: make(map[string]*payout.Adjustment),
		settlements: make(map[string]*payout.Settlement),
	}
}

// =============================================================================
// SEED HELPERS - Populate the store for tests and scenarios
// =============================================================================

func (m *Memory) AddEmployee(emp payout.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
}

func (m *Memory) AddSegment(seg engine.AssignmentSegment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments[seg.EmployeeID] = append(m.segments[seg.EmployeeID], seg)
}

func (m *Memory) AddTarget(t payout.PerformanceTarget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.EmployeeID] = append(m.targets[t.EmployeeID], t)
}

func (m *Memory) AddPlan(p *engine.CompPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
}

func (m *Memory) AddDeal(d engine.Deal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals = append(m.deals, d)
}

func (m *Memory) AddSnapshot(s engine.ARRSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
}

func (m *Memory) SetRate(month engine.MonthYear, currency string, rate decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rates[month] == nil {
		m.rates[month] = make(map[string]decimal.Decimal)
	}
	m.rates[month][currency] = rate
}

// =============================================================================
// RUN STORE
// =============================================================================

func (m *Memory) CreateRun(_ context.Context, run *payout.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runsByMonth[run.MonthYear]; exists {
		return fmt.Errorf("%w: %s", engine.ErrDuplicateRun, run.MonthYear)
	}
	cp := *run
	m.runs[run.ID] = &cp
	m.runsByMonth[run.MonthYear] = run.ID
	return nil
}

func (m *Memory) GetRun(_ context.Context, id engine.RunID) (*payout.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrRunNotFound, id)
	}
	cp := *run
	return &cp, nil
}

func (m *Memory) GetRunByMonth(_ context.Context, month engine.MonthYear) (*payout.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.runsByMonth[month]
	if !ok {
		return nil, fmt.Errorf("%w: month %s", engine.ErrRunNotFound, month)
	}
	cp := *m.runs[id]
	return &cp, nil
}

func (m *Memory) ListRuns(_ context.Context) ([]*payout.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*payout.Run, 0, len(m.runs))
	for _, run := range m.runs {
		cp := *run
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthYear.Before(out[j].MonthYear) })
	return out, nil
}

// TransitionRun is the compare-and-set: under one lock, status must
// still equal from or the caller lost the race.
func (m *Memory) TransitionRun(_ context.Context, id engine.RunID, from, to payout.RunStatus, actorID string, lock bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrRunNotFound, id)
	}
	if run.Status != from {
		return fmt.Errorf("%w: run %s is %s, expected %s", engine.ErrConcurrentModification, id, run.Status, from)
	}
	run.Status = to
	run.UpdatedAt = nowUTC()
	if lock {
		run.IsLocked = true
		t := nowUTC()
		run.FinalizedAt = &t
		run.FinalizedBy = actorID
	}
	return nil
}

func (m *Memory) UpdateRunTotals(_ context.Context, id engine.RunID, employees int, totalUSD decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrRunNotFound, id)
	}
	run.TotalEmployees = employees
	run.TotalPayoutUSD = totalUSD
	run.UpdatedAt = nowUTC()
	return nil
}

func (m *Memory) DeleteRun(_ context.Context, id engine.RunID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrRunNotFound, id)
	}
	delete(m.runsByMonth, run.MonthYear)
	delete(m.runs, id)
	for k := range m.payouts {
		if k.RunID == id {
			delete(m.payouts, k)
		}
	}
	return nil
}

// =============================================================================
// REFERENCE STORE
// =============================================================================

func (m *Memory) ListActiveEmployees(_ context.Context) ([]payout.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payout.Employee
	for _, emp := range m.employees {
		if emp.Active {
			out = append(out, emp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetEmployee(_ context.Context, id engine.EmployeeID) (*payout.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: employee %s", payout.ErrNotFound, id)
	}
	cp := emp
	return &cp, nil
}

func (m *Memory) SegmentsForYear(_ context.Context, emp engine.EmployeeID, fy engine.FiscalYear) ([]engine.AssignmentSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.AssignmentSegment
	for _, seg := range m.segments[emp] {
		if seg.From.After(fy.End) {
			continue
		}
		if seg.To != nil && seg.To.Before(fy.Start) {
			continue
		}
		out = append(out, seg)
	}
	return out, nil
}

func (m *Memory) TargetsForYear(_ context.Context, emp engine.EmployeeID, year int) ([]payout.PerformanceTarget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payout.PerformanceTarget
	for _, t := range m.targets[emp] {
		if t.Year == year {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) GetPlan(_ context.Context, id engine.PlanID) (*engine.CompPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plans[id], nil
}

func (m *Memory) DealsInRange(_ context.Context, from, to engine.MonthYear) ([]engine.Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Deal
	for _, d := range m.deals {
		if d.ClosedAt.Before(from.Start()) || d.ClosedAt.After(to.End()) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *Memory) ARRSnapshots(_ context.Context, fy engine.FiscalYear) ([]engine.ARRSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.ARRSnapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out, nil
}

func (m *Memory) MarketRates(_ context.Context, month engine.MonthYear) (map[string]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(m.rates[month]))
	for c, r := range m.rates[month] {
		out[c] = r
	}
	return out, nil
}

// =============================================================================
// PAYOUT LEDGER STORE
// =============================================================================

// ReplacePayouts clears and rewrites the (run, employee) rows under one
// lock: the atomic clear-then-recompute contract.
func (m *Memory) ReplacePayouts(_ context.Context, runID engine.RunID, emp engine.EmployeeID, rows []payout.MonthlyPayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := payoutKey{RunID: runID, EmployeeID: emp}
	if len(rows) == 0 {
		delete(m.payouts, k)
		return nil
	}
	cp := make([]payout.MonthlyPayout, len(rows))
	copy(cp, rows)
	m.payouts[k] = cp
	return nil
}

func (m *Memory) AppendPayout(_ context.Context, row payout.MonthlyPayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := payoutKey{RunID: row.RunID, EmployeeID: row.EmployeeID}
	m.payouts[k] = append(m.payouts[k], row)
	return nil
}

func (m *Memory) ListPayouts(_ context.Context, runID engine.RunID) ([]payout.MonthlyPayout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payout.MonthlyPayout
	for k, rows := range m.payouts {
		if k.RunID == runID {
			out = append(out, rows...)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (m *Memory) MarkCollectionReleased(_ context.Context, rowID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, rows := range m.payouts {
		for i := range rows {
			if rows[i].ID == rowID {
				t := at
				rows[i].CollectionReleasedAt = &t
				m.payouts[k] = rows
				return nil
			}
		}
	}
	return fmt.Errorf("%w: payout row %s", payout.ErrNotFound, rowID)
}

func (m *Memory) ListPayoutsForEmployee(_ context.Context, emp engine.EmployeeID) ([]payout.MonthlyPayout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payout.MonthlyPayout
	for k, rows := range m.payouts {
		if k.EmployeeID == emp {
			out = append(out, rows...)
		}
	}
	return out, nil
}

// =============================================================================
// CLAWBACK / ADJUSTMENT / SETTLEMENT STORES
// =============================================================================

func (m *Memory) SaveClawbacks(_ context.Context, entries []engine.ClawbackEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.clawbacks[e.EmployeeID] = append(m.clawbacks[e.EmployeeID], e)
	}
	return nil
}

func (m *Memory) ListClawbacks(_ context.Context, emp engine.EmployeeID) ([]engine.ClawbackEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.ClawbackEntry, len(m.clawbacks[emp]))
	copy(out, m.clawbacks[emp])
	return out, nil
}

func (m *Memory) UpdateClawback(_ context.Context, entry engine.ClawbackEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.clawbacks[entry.EmployeeID]
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			return nil
		}
	}
	return fmt.Errorf("%w: clawback %s", payout.ErrNotFound, entry.ID)
}

func (m *Memory) SaveAdjustment(_ context.Context, adj *payout.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *adj
	m.adjustments[adj.ID] = &cp
	return nil
}

func (m *Memory) GetAdjustment(_ context.Context, id string) (*payout.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	adj, ok := m.adjustments[id]
	if !ok {
		return nil, fmt.Errorf("%w: adjustment %s", payout.ErrNotFound, id)
	}
	cp := *adj
	return &cp, nil
}

func (m *Memory) UpdateAdjustment(_ context.Context, adj *payout.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.adjustments[adj.ID]; !ok {
		return fmt.Errorf("%w: adjustment %s", payout.ErrNotFound, adj.ID)
	}
	cp := *adj
	m.adjustments[adj.ID] = &cp
	return nil
}

func (m *Memory) ListAdjustments(_ context.Context, status payout.AdjustmentStatus) ([]*payout.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*payout.Adjustment
	for _, adj := range m.adjustments {
		if status == "" || adj.Status == status {
			cp := *adj
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveSettlement(_ context.Context, s *payout.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.settlements[s.ID] = &cp
	return nil
}

func (m *Memory) GetSettlement(_ context.Context, id string) (*payout.Settlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settlements[id]
	if !ok {
		return nil, fmt.Errorf("%w: settlement %s", payout.ErrNotFound, id)
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) UpdateSettlement(_ context.Context, s *payout.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settlements[s.ID]; !ok {
		return fmt.Errorf("%w: settlement %s", payout.ErrNotFound, s.ID)
	}
	cp := *s
	m.settlements[s.ID] = &cp
	return nil
}

// Compile-time check that Memory satisfies the full store surface.
var _ payout.Store = (*Memory)(nil)

func nowUTC() time.Time { return time.Now().UTC() }
