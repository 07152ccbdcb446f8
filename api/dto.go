/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Runs:
    RunDTO, CreateRunRequest, TransitionRequest, RunSummaryDTO

  Validation:
    ValidationReportDTO, IssueDTO

  Ledger:
    PayoutDTO, ClawbackDTO

  Employees / reference data:
    EmployeeDTO, CreateEmployeeRequest, SegmentRequest, TargetRequest,
    DealRequest, SnapshotRequest, RateRequest

  Plans:
    PlanDTO (wraps factory.PlanJSON)

  Adjustments / settlements:
    AdjustmentDTO, CreateAdjustmentRequest, SettlementDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"github.com/warp/payout-engine/factory"
)

// =============================================================================
// RUN TYPES
// =============================================================================

// RunDTO represents a payout run in API responses.
type RunDTO struct {
	ID             string  `json:"id"`
	Month          string  `json:"month"`
	Status         string  `json:"status"`
	IsLocked       bool    `json:"is_locked"`
	TotalEmployees int     `json:"total_employees"`
	TotalPayoutUSD string  `json:"total_payout_usd"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	FinalizedAt    *string `json:"finalized_at,omitempty"`
	FinalizedBy    string  `json:"finalized_by,omitempty"`
}

// CreateRunRequest is the request to create a run for a month.
type CreateRunRequest struct {
	Month string `json:"month"` // YYYY-MM
}

// TransitionRequest advances the run one lifecycle step.
type TransitionRequest struct {
	To      string `json:"to"` // review, approved, finalized
	ActorID string `json:"actor_id"`
}

// RunSummaryDTO reports a calculate pass.
type RunSummaryDTO struct {
	RunID          string       `json:"run_id"`
	Month          string       `json:"month"`
	TotalEmployees int          `json:"total_employees"`
	Succeeded      int          `json:"succeeded"`
	TotalPayoutUSD string       `json:"total_payout_usd"`
	Failures       []FailureDTO `json:"failures,omitempty"`
}

// FailureDTO is one isolated per-employee failure in a batch.
type FailureDTO struct {
	EmployeeID string `json:"employee_id"`
	Error      string `json:"error"`
}

// =============================================================================
// VALIDATION TYPES
// =============================================================================

// ValidationReportDTO is the prerequisite check result for a month.
type ValidationReportDTO struct {
	Month   string     `json:"month"`
	IsValid bool       `json:"is_valid"`
	Issues  []IssueDTO `json:"issues,omitempty"`
}

// IssueDTO is one blocking validation problem.
type IssueDTO struct {
	Code       string `json:"code"`
	EmployeeID string `json:"employee_id,omitempty"`
	Message    string `json:"message"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// PayoutDTO is one monthly payout ledger row.
type PayoutDTO struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	EmployeeID string `json:"employee_id"`
	Type       string `json:"type"`

	GrossUSD   string `json:"gross_usd"`
	GrossLocal string `json:"gross_local"`
	Currency   string `json:"currency"`
	FXRate     string `json:"fx_rate"`
	RateSource string `json:"rate_source"`

	BookingUSD    string `json:"booking_usd"`
	CollectionUSD string `json:"collection_usd"`
	YearEndUSD    string `json:"year_end_usd"`

	CollectionReleasedAt *string `json:"collection_released_at,omitempty"`

	CreatedAt string `json:"created_at"`
}

// ReleaseCollectionsRequest releases a finalized run's held collection
// tranches.
type ReleaseCollectionsRequest struct {
	AsOf string `json:"as_of,omitempty"` // YYYY-MM-DD, defaults to today
}

// ReleaseSummaryDTO reports one collection release pass.
type ReleaseSummaryDTO struct {
	RunID        string `json:"run_id"`
	ReleasedRows int    `json:"released_rows"`
	ReleasedUSD  string `json:"released_usd"`
	HeldRows     int    `json:"held_rows"`
	HeldUSD      string `json:"held_usd"`
}

// ClawbackDTO is one clawback ledger entry.
type ClawbackDTO struct {
	ID             string `json:"id"`
	EmployeeID     string `json:"employee_id"`
	DealID         string `json:"deal_id"`
	OriginalUSD    string `json:"original_usd"`
	RecoveredUSD   string `json:"recovered_usd"`
	OutstandingUSD string `json:"outstanding_usd"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// =============================================================================
// EMPLOYEE AND REFERENCE DATA TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	ManagerID            string  `json:"manager_id,omitempty"`
	HireDate             string  `json:"hire_date"`
	DepartureDate        *string `json:"departure_date,omitempty"`
	TargetVariablePayUSD string  `json:"target_variable_pay_usd"`
	Currency             string  `json:"currency"`
	Active               bool    `json:"active"`
}

// CreateEmployeeRequest is the request to create or update an employee.
type CreateEmployeeRequest struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	ManagerID            string  `json:"manager_id,omitempty"`
	HireDate             string  `json:"hire_date"` // YYYY-MM-DD
	DepartureDate        *string `json:"departure_date,omitempty"`
	TargetVariablePayUSD float64 `json:"target_variable_pay_usd"`
	Currency             string  `json:"currency,omitempty"`
	Active               *bool   `json:"active,omitempty"`
}

// SegmentRequest creates an assignment segment.
type SegmentRequest struct {
	ID             string  `json:"id,omitempty"`
	EmployeeID     string  `json:"employee_id"`
	PlanID         string  `json:"plan_id"`
	From           string  `json:"from"` // YYYY-MM-DD
	To             *string `json:"to,omitempty"`
	TargetBonusUSD float64 `json:"target_bonus_usd"`
	CompRate       float64 `json:"comp_rate,omitempty"` // defaults to 1
}

// TargetRequest creates a performance target.
type TargetRequest struct {
	EmployeeID string  `json:"employee_id"`
	MetricName string  `json:"metric_name"`
	Year       int     `json:"year"`
	AnnualUSD  float64 `json:"annual_usd"`
}

// DealRequest creates a sales deal.
type DealRequest struct {
	ID              string             `json:"id,omitempty"`
	CustomerID      string             `json:"customer_id"`
	ClosedAt        string             `json:"closed_at"` // YYYY-MM-DD
	Revenue         map[string]float64 `json:"revenue"`   // revenue type -> USD
	GPMarginPct     float64            `json:"gp_margin_pct"`
	Participants    map[string]string  `json:"participants"` // role -> employee id
	Collection      string             `json:"collection,omitempty"`
	CollectionDueAt string             `json:"collection_due_at"`
	CollectedAt     *string            `json:"collected_at,omitempty"`
}

// SnapshotRequest records a closing ARR snapshot.
type SnapshotRequest struct {
	OwnerID    string  `json:"owner_id"`
	CustomerID string  `json:"customer_id"`
	ProjectID  string  `json:"project_id"`
	Month      string  `json:"month"` // YYYY-MM
	ValueUSD   float64 `json:"value_usd"`
	EndDate    string  `json:"end_date"` // YYYY-MM-DD
}

// RateRequest records one market exchange rate for a month.
type RateRequest struct {
	Month    string  `json:"month"` // YYYY-MM
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"` // local per USD
}

// =============================================================================
// PLAN TYPES
// =============================================================================

// PlanDTO represents a compensation plan in API responses.
type PlanDTO struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Year   int              `json:"year"`
	Config factory.PlanJSON `json:"config"`
}

// CreatePlanRequest is the request to create a plan from JSON config.
type CreatePlanRequest struct {
	Config factory.PlanJSON `json:"config"`
}

// =============================================================================
// ADJUSTMENT AND SETTLEMENT TYPES
// =============================================================================

// AdjustmentDTO represents an adjustment in API responses.
type AdjustmentDTO struct {
	ID          string  `json:"id"`
	EmployeeID  string  `json:"employee_id"`
	AmountUSD   string  `json:"amount_usd"`
	Reason      string  `json:"reason,omitempty"`
	TargetMonth string  `json:"target_month"`
	Status      string  `json:"status"`
	CreatedBy   string  `json:"created_by,omitempty"`
	ReviewedBy  string  `json:"reviewed_by,omitempty"`
	AppliedRun  string  `json:"applied_run,omitempty"`
	CreatedAt   string  `json:"created_at"`
	ReviewedAt  *string `json:"reviewed_at,omitempty"`
	AppliedAt   *string `json:"applied_at,omitempty"`
}

// CreateAdjustmentRequest records a pending correction.
type CreateAdjustmentRequest struct {
	EmployeeID  string  `json:"employee_id"`
	AmountUSD   float64 `json:"amount_usd"` // negative = recovery
	Reason      string  `json:"reason"`
	TargetMonth string  `json:"target_month"` // YYYY-MM
	ActorID     string  `json:"actor_id"`
}

// ReviewRequest approves or rejects a pending adjustment.
type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id"`
}

// SettlementDTO represents a Full & Final settlement.
type SettlementDTO struct {
	ID               string              `json:"id"`
	EmployeeID       string              `json:"employee_id"`
	DepartureDate    string              `json:"departure_date"`
	Status           string              `json:"status"`
	ClawbackCarryUSD string              `json:"clawback_carry_usd"`
	Lines            []SettlementLineDTO `json:"lines,omitempty"`
}

// SettlementLineDTO is one computed settlement component.
type SettlementLineDTO struct {
	ID          string `json:"id"`
	Tranche     int    `json:"tranche"`
	Description string `json:"description"`
	AmountUSD   string `json:"amount_usd"`
}

// OpenSettlementRequest opens a settlement for a departing employee.
type OpenSettlementRequest struct {
	EmployeeID    string `json:"employee_id"`
	DepartureDate string `json:"departure_date"` // YYYY-MM-DD
}

// Tranche2Request computes the deferred settlement tranche.
type Tranche2Request struct {
	AsOf string `json:"as_of,omitempty"` // YYYY-MM-DD, defaults to today
}

// =============================================================================
// SHARED TYPES
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string     `json:"error"`
	Details string     `json:"details,omitempty"`
	Issues  []IssueDTO `json:"issues,omitempty"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
