/*
handlers.go - HTTP API handlers for the payout engine

PURPOSE:
  Exposes the payout engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Runs:
    GET    /api/runs                    List all runs
    POST   /api/runs                    Create run for a month
    GET    /api/runs/{id}               Get run details
    DELETE /api/runs/{id}               Delete a draft run
    POST   /api/runs/{id}/validate      Prerequisite validation
    POST   /api/runs/{id}/calculate     Calculate the batch
    POST   /api/runs/{id}/transition    Advance the lifecycle
    GET    /api/runs/{id}/payouts       Ledger rows for the run
    POST   /api/runs/{id}/release-collections  Release held collection tranches

  Employees:
    GET    /api/employees               List active employees
    POST   /api/employees               Create/update employee
    GET    /api/employees/{id}          Get employee details
    GET    /api/employees/{id}/payouts  Payout history
    GET    /api/employees/{id}/clawbacks Clawback ledger

  Plans:
    POST   /api/plans                   Create plan from JSON config
    GET    /api/plans/{id}              Get plan

  Admin (reference data):
    POST   /api/admin/segments          Create assignment segment
    POST   /api/admin/targets           Create performance target
    POST   /api/admin/deals             Record a deal
    POST   /api/admin/snapshots         Record a closing ARR snapshot
    POST   /api/admin/rates             Record a market exchange rate

  Adjustments:
    GET    /api/adjustments             List (optionally by status)
    POST   /api/adjustments             Create pending adjustment
    POST   /api/adjustments/{id}/approve
    POST   /api/adjustments/{id}/reject
    POST   /api/adjustments/{id}/apply

  Settlements:
    POST   /api/settlements             Open F&F settlement
    GET    /api/settlements/{id}        Get settlement
    POST   /api/settlements/{id}/tranche1
    POST   /api/settlements/{id}/tranche2

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, illegal transitions
  - 404: Resource not found
  - 409: Conflict (duplicate run, lost compare-and-set, locked run)
  - 422: Prerequisite validation failures (with the issue list)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/store/sqlite"
)

const dateLayout = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Runs        *payout.RunService
	Calculator  *payout.Calculator
	Adjustments *payout.AdjustmentService
	Settlements *payout.SettlementService
	Collections *payout.CollectionService
	PlanFactory *factory.PlanFactory
	Settings    payout.Settings

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store and settings.
func NewHandler(store *sqlite.Store, settings payout.Settings) *Handler {
	calc := &payout.Calculator{Store: store, Settings: settings}
	return &Handler{
		Store:       store,
		Runs:        &payout.RunService{Store: store},
		Calculator:  calc,
		Adjustments: &payout.AdjustmentService{Store: store},
		Settlements: &payout.SettlementService{Store: store, Calculator: calc, Settings: settings},
		Collections: &payout.CollectionService{Store: store, Settings: settings},
		PlanFactory: factory.NewPlanFactory(),
		Settings:    settings,
	}
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// ListRuns returns all runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = runDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRun creates a draft run for a month.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	month, err := engine.ParseMonthYear(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}

	run, err := h.Runs.CreateRun(r.Context(), month)
	if err != nil {
		writeDomainError(w, "Failed to create run", err)
		return
	}
	writeJSON(w, http.StatusCreated, runDTO(run))
}

// GetRun returns a single run.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Store.GetRun(r.Context(), engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, runDTO(run))
}

// DeleteRun removes a draft run.
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.Runs.DeleteRun(r.Context(), engine.RunID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete run", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateRun runs the prerequisite checks for the run's month.
func (h *Handler) ValidateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	run, err := h.Store.GetRun(ctx, engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get run", err)
		return
	}

	validator := &payout.Validator{Store: h.Store, Settings: h.Settings}
	report, err := validator.Validate(ctx, run.MonthYear)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Validation failed", err)
		return
	}

	dto := ValidationReportDTO{Month: report.Month.String(), IsValid: report.IsValid}
	for _, issue := range report.Issues {
		dto.Issues = append(dto.Issues, issueDTO(issue))
	}
	writeJSON(w, http.StatusOK, dto)
}

// CalculateRun recomputes every active employee's payouts.
func (h *Handler) CalculateRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Calculator.CalculateRun(r.Context(), engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		var issues *engine.ValidationIssues
		if errors.As(err, &issues) {
			resp := ErrorResponse{Error: "Prerequisite validation failed"}
			for _, issue := range issues.Issues {
				resp.Issues = append(resp.Issues, issueDTO(issue))
			}
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		writeDomainError(w, "Failed to calculate run", err)
		return
	}

	dto := RunSummaryDTO{
		RunID:          string(summary.RunID),
		Month:          summary.Month.String(),
		TotalEmployees: summary.TotalEmployees,
		Succeeded:      summary.Succeeded,
		TotalPayoutUSD: summary.TotalPayoutUSD.StringFixed(2),
	}
	for _, f := range summary.Failures {
		dto.Failures = append(dto.Failures, FailureDTO{EmployeeID: string(f.EmployeeID), Error: f.Err})
	}
	writeJSON(w, http.StatusOK, dto)
}

// TransitionRun advances the run one lifecycle step.
func (h *Handler) TransitionRun(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	run, err := h.Runs.Transition(r.Context(), engine.RunID(chi.URLParam(r, "id")),
		payout.RunStatus(req.To), req.ActorID)
	if err != nil {
		writeDomainError(w, "Failed to transition run", err)
		return
	}
	writeJSON(w, http.StatusOK, runDTO(run))
}

// ListRunPayouts returns all ledger rows for a run.
func (h *Handler) ListRunPayouts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ListPayouts(r.Context(), engine.RunID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payouts", err)
		return
	}
	writeJSON(w, http.StatusOK, payoutDTOs(rows))
}

// ReleaseCollections walks a finalized run's held collection tranches
// and releases the ones whose deals collected or whose grace period has
// elapsed. The body may pin as_of for backdated releases.
func (h *Handler) ReleaseCollections(w http.ResponseWriter, r *http.Request) {
	var req ReleaseCollectionsRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		t, err := time.Parse(dateLayout, req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = t
	}

	summary, err := h.Collections.ReleaseRun(r.Context(), engine.RunID(chi.URLParam(r, "id")), asOf)
	if err != nil {
		writeDomainError(w, "Failed to release collections", err)
		return
	}
	writeJSON(w, http.StatusOK, ReleaseSummaryDTO{
		RunID:        string(summary.RunID),
		ReleasedRows: summary.ReleasedRows,
		ReleasedUSD:  summary.ReleasedUSD.StringFixed(2),
		HeldRows:     summary.HeldRows,
		HeldUSD:      summary.HeldUSD.StringFixed(2),
	})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all active employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListActiveEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = employeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), engine.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, employeeDTO(*emp))
}

// CreateEmployee creates or updates an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	hireDate, err := time.Parse(dateLayout, req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}

	emp := payout.Employee{
		ID:                   engine.EmployeeID(req.ID),
		Name:                 req.Name,
		ManagerID:            engine.EmployeeID(req.ManagerID),
		HireDate:             hireDate,
		TargetVariablePayUSD: decimal.NewFromFloat(req.TargetVariablePayUSD),
		Currency:             req.Currency,
		Active:               true,
	}
	if emp.Currency == "" {
		emp.Currency = "USD"
	}
	if req.Active != nil {
		emp.Active = *req.Active
	}
	if req.DepartureDate != nil {
		t, err := time.Parse(dateLayout, *req.DepartureDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid departure_date format (use YYYY-MM-DD)", err)
			return
		}
		emp.DepartureDate = &t
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, employeeDTO(emp))
}

// GetEmployeePayouts returns an employee's ledger rows across runs.
func (h *Handler) GetEmployeePayouts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ListPayoutsForEmployee(r.Context(), engine.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payouts", err)
		return
	}
	writeJSON(w, http.StatusOK, payoutDTOs(rows))
}

// GetEmployeeClawbacks returns an employee's clawback ledger.
func (h *Handler) GetEmployeeClawbacks(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListClawbacks(r.Context(), engine.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clawbacks", err)
		return
	}

	dtos := make([]ClawbackDTO, len(entries))
	for i, e := range entries {
		dtos[i] = ClawbackDTO{
			ID:             e.ID,
			EmployeeID:     string(e.EmployeeID),
			DealID:         string(e.DealID),
			OriginalUSD:    e.OriginalUSD.StringFixed(2),
			RecoveredUSD:   e.RecoveredUSD.StringFixed(2),
			OutstandingUSD: e.OutstandingUSD().StringFixed(2),
			Status:         string(e.Status),
			CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// CreatePlan creates a compensation plan from JSON config.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	plan, err := h.PlanFactory.FromJSON(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan config", err)
		return
	}

	if err := h.Store.SavePlan(r.Context(), plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, PlanDTO{
		ID:     string(plan.ID),
		Name:   plan.Name,
		Year:   plan.Year,
		Config: h.PlanFactory.ToJSON(plan),
	})
}

// GetPlan returns a plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Store.GetPlan(r.Context(), engine.PlanID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, PlanDTO{
		ID:     string(plan.ID),
		Name:   plan.Name,
		Year:   plan.Year,
		Config: h.PlanFactory.ToJSON(plan),
	})
}

// =============================================================================
// ADMIN HANDLERS - Reference data
// =============================================================================

// CreateSegment creates an assignment segment.
func (h *Handler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var req SegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from format (use YYYY-MM-DD)", err)
		return
	}

	seg := engine.AssignmentSegment{
		ID:             req.ID,
		EmployeeID:     engine.EmployeeID(req.EmployeeID),
		PlanID:         engine.PlanID(req.PlanID),
		From:           from,
		TargetBonusUSD: decimal.NewFromFloat(req.TargetBonusUSD),
		CompRate:       decimal.NewFromFloat(req.CompRate),
	}
	if seg.ID == "" {
		seg.ID = req.EmployeeID + "-" + req.From
	}
	if seg.CompRate.IsZero() {
		seg.CompRate = decimal.NewFromInt(1)
	}
	if req.To != nil {
		t, err := time.Parse(dateLayout, *req.To)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to format (use YYYY-MM-DD)", err)
			return
		}
		seg.To = &t
	}

	if err := h.Store.SaveSegment(r.Context(), seg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save segment", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": seg.ID})
}

// CreateTarget creates a performance target.
func (h *Handler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	target := payout.PerformanceTarget{
		EmployeeID: engine.EmployeeID(req.EmployeeID),
		MetricName: req.MetricName,
		Year:       req.Year,
		AnnualUSD:  decimal.NewFromFloat(req.AnnualUSD),
	}
	if err := h.Store.SaveTarget(r.Context(), target); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save target", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// CreateDeal records a sales deal.
func (h *Handler) CreateDeal(w http.ResponseWriter, r *http.Request) {
	var req DealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	closedAt, err := time.Parse(dateLayout, req.ClosedAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid closed_at format (use YYYY-MM-DD)", err)
		return
	}
	dueAt, err := time.Parse(dateLayout, req.CollectionDueAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid collection_due_at format (use YYYY-MM-DD)", err)
		return
	}

	deal := engine.Deal{
		ID:              engine.DealID(req.ID),
		CustomerID:      req.CustomerID,
		ClosedAt:        closedAt,
		Revenue:         make(map[engine.RevenueType]decimal.Decimal, len(req.Revenue)),
		GPMarginPct:     decimal.NewFromFloat(req.GPMarginPct),
		Participants:    make(map[engine.ParticipantRole]engine.EmployeeID, len(req.Participants)),
		Collection:      engine.CollectionStatus(req.Collection),
		CollectionDueAt: dueAt,
	}
	if deal.Collection == "" {
		deal.Collection = engine.CollectionPending
	}
	for rt, v := range req.Revenue {
		deal.Revenue[engine.RevenueType(rt)] = decimal.NewFromFloat(v)
	}
	for role, emp := range req.Participants {
		deal.Participants[engine.ParticipantRole(role)] = engine.EmployeeID(emp)
	}
	if req.CollectedAt != nil {
		t, err := time.Parse(dateLayout, *req.CollectedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid collected_at format (use YYYY-MM-DD)", err)
			return
		}
		deal.CollectedAt = &t
	}

	if err := h.Store.SaveDeal(r.Context(), deal); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save deal", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(deal.ID)})
}

// CreateSnapshot records a closing ARR snapshot.
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	month, err := engine.ParseMonthYear(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	snap := engine.ARRSnapshot{
		OwnerID:    engine.EmployeeID(req.OwnerID),
		CustomerID: req.CustomerID,
		ProjectID:  req.ProjectID,
		Month:      month,
		ValueUSD:   decimal.NewFromFloat(req.ValueUSD),
		EndDate:    endDate,
	}
	if err := h.Store.SaveSnapshot(r.Context(), snap); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save snapshot", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// SetRate records one market exchange rate for a month.
func (h *Handler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	month, err := engine.ParseMonthYear(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}

	if err := h.Store.SaveRate(r.Context(), month, req.Currency, decimal.NewFromFloat(req.Rate)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rate", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADJUSTMENT HANDLERS
// =============================================================================

// ListAdjustments returns adjustments, optionally filtered by status.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	status := payout.AdjustmentStatus(r.URL.Query().Get("status"))
	adjustments, err := h.Store.ListAdjustments(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list adjustments", err)
		return
	}

	dtos := make([]AdjustmentDTO, len(adjustments))
	for i, adj := range adjustments {
		dtos[i] = adjustmentDTO(adj)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAdjustment records a pending correction.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	month, err := engine.ParseMonthYear(req.TargetMonth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid target_month format (use YYYY-MM)", err)
		return
	}

	adj, err := h.Adjustments.Create(r.Context(), engine.EmployeeID(req.EmployeeID),
		decimal.NewFromFloat(req.AmountUSD), req.Reason, month, req.ActorID)
	if err != nil {
		writeDomainError(w, "Failed to create adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, adjustmentDTO(adj))
}

// ApproveAdjustment moves a pending adjustment to approved.
func (h *Handler) ApproveAdjustment(w http.ResponseWriter, r *http.Request) {
	h.reviewAdjustment(w, r, h.Adjustments.Approve)
}

// RejectAdjustment moves a pending adjustment to rejected.
func (h *Handler) RejectAdjustment(w http.ResponseWriter, r *http.Request) {
	h.reviewAdjustment(w, r, h.Adjustments.Reject)
}

func (h *Handler) reviewAdjustment(w http.ResponseWriter, r *http.Request,
	review func(ctx context.Context, id, reviewerID string) (*payout.Adjustment, error)) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	adj, err := review(r.Context(), chi.URLParam(r, "id"), req.ReviewerID)
	if err != nil {
		writeDomainError(w, "Failed to review adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, adjustmentDTO(adj))
}

// ApplyAdjustment materializes an approved adjustment into its target run.
func (h *Handler) ApplyAdjustment(w http.ResponseWriter, r *http.Request) {
	adj, err := h.Adjustments.Apply(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to apply adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, adjustmentDTO(adj))
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// OpenSettlement opens a Full & Final settlement.
func (h *Handler) OpenSettlement(w http.ResponseWriter, r *http.Request) {
	var req OpenSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	departure, err := time.Parse(dateLayout, req.DepartureDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid departure_date format (use YYYY-MM-DD)", err)
		return
	}

	s, err := h.Settlements.Open(r.Context(), engine.EmployeeID(req.EmployeeID), departure)
	if err != nil {
		writeDomainError(w, "Failed to open settlement", err)
		return
	}
	writeJSON(w, http.StatusCreated, settlementDTO(s))
}

// GetSettlement returns a settlement with its lines.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.GetSettlement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, settlementDTO(s))
}

// CalculateTranche1 computes the immediate settlement tranche.
func (h *Handler) CalculateTranche1(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settlements.CalculateTranche1(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to calculate tranche 1", err)
		return
	}
	writeJSON(w, http.StatusOK, settlementDTO(s))
}

// CalculateTranche2 computes the deferred settlement tranche.
func (h *Handler) CalculateTranche2(w http.ResponseWriter, r *http.Request) {
	var req Tranche2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		t, err := time.Parse(dateLayout, req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = t
	}

	s, err := h.Settlements.CalculateTranche2(r.Context(), chi.URLParam(r, "id"), asOf)
	if err != nil {
		writeDomainError(w, "Failed to calculate tranche 2", err)
		return
	}
	writeJSON(w, http.StatusOK, settlementDTO(s))
}

// =============================================================================
// DTO CONVERSIONS
// =============================================================================

func runDTO(run *payout.Run) RunDTO {
	dto := RunDTO{
		ID:             string(run.ID),
		Month:          run.MonthYear.String(),
		Status:         string(run.Status),
		IsLocked:       run.IsLocked,
		TotalEmployees: run.TotalEmployees,
		TotalPayoutUSD: run.TotalPayoutUSD.StringFixed(2),
		CreatedAt:      run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      run.UpdatedAt.Format(time.RFC3339),
		FinalizedBy:    run.FinalizedBy,
	}
	if run.FinalizedAt != nil {
		s := run.FinalizedAt.Format(time.RFC3339)
		dto.FinalizedAt = &s
	}
	return dto
}

func employeeDTO(e payout.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:                   string(e.ID),
		Name:                 e.Name,
		ManagerID:            string(e.ManagerID),
		HireDate:             e.HireDate.Format(dateLayout),
		TargetVariablePayUSD: e.TargetVariablePayUSD.StringFixed(2),
		Currency:             e.Currency,
		Active:               e.Active,
	}
	if e.DepartureDate != nil {
		s := e.DepartureDate.Format(dateLayout)
		dto.DepartureDate = &s
	}
	return dto
}

func payoutDTOs(rows []payout.MonthlyPayout) []PayoutDTO {
	dtos := make([]PayoutDTO, len(rows))
	for i, row := range rows {
		dtos[i] = PayoutDTO{
			ID:            row.ID,
			RunID:         string(row.RunID),
			EmployeeID:    string(row.EmployeeID),
			Type:          string(row.Type),
			GrossUSD:      row.GrossUSD.StringFixed(2),
			GrossLocal:    row.GrossLocal.StringFixed(2),
			Currency:      row.Currency,
			FXRate:        row.FXRate.String(),
			RateSource:    string(row.RateSource),
			BookingUSD:    row.BookingUSD.StringFixed(2),
			CollectionUSD: row.CollectionUSD.StringFixed(2),
			YearEndUSD:    row.YearEndUSD.StringFixed(2),
			CreatedAt:     row.CreatedAt.Format(time.RFC3339),
		}
		if row.CollectionReleasedAt != nil {
			s := row.CollectionReleasedAt.Format(time.RFC3339)
			dtos[i].CollectionReleasedAt = &s
		}
	}
	return dtos
}

func adjustmentDTO(adj *payout.Adjustment) AdjustmentDTO {
	dto := AdjustmentDTO{
		ID:          adj.ID,
		EmployeeID:  string(adj.EmployeeID),
		AmountUSD:   adj.AmountUSD.StringFixed(2),
		Reason:      adj.Reason,
		TargetMonth: adj.TargetMonth.String(),
		Status:      string(adj.Status),
		CreatedBy:   adj.CreatedBy,
		ReviewedBy:  adj.ReviewedBy,
		AppliedRun:  string(adj.AppliedRun),
		CreatedAt:   adj.CreatedAt.Format(time.RFC3339),
	}
	if adj.ReviewedAt != nil {
		s := adj.ReviewedAt.Format(time.RFC3339)
		dto.ReviewedAt = &s
	}
	if adj.AppliedAt != nil {
		s := adj.AppliedAt.Format(time.RFC3339)
		dto.AppliedAt = &s
	}
	return dto
}

func settlementDTO(s *payout.Settlement) SettlementDTO {
	dto := SettlementDTO{
		ID:               s.ID,
		EmployeeID:       string(s.EmployeeID),
		DepartureDate:    s.DepartureDate.Format(dateLayout),
		Status:           string(s.Status),
		ClawbackCarryUSD: s.ClawbackCarryUSD.StringFixed(2),
	}
	for _, line := range s.Lines {
		dto.Lines = append(dto.Lines, SettlementLineDTO{
			ID:          line.ID,
			Tranche:     line.Tranche,
			Description: line.Description,
			AmountUSD:   line.AmountUSD.StringFixed(2),
		})
	}
	return dto
}

func issueDTO(issue engine.ValidationIssue) IssueDTO {
	return IssueDTO{
		Code:       string(issue.Code),
		EmployeeID: string(issue.EmployeeID),
		Message:    issue.Message,
	}
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps sentinel errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrRunNotFound), errors.Is(err, payout.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateRun),
		errors.Is(err, engine.ErrConcurrentModification),
		errors.Is(err, engine.ErrRunLocked):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrRunNotDraft),
		errors.Is(err, engine.ErrRunNotFinalized),
		errors.Is(err, engine.ErrAdjustmentNotApproved),
		errors.Is(err, engine.ErrOverlappingSegments):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrValidationFailed):
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, message, err)
}
