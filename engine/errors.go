/*
errors.go - Centralized error types for the payout engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The payout package wraps these with run/employee context.

ERROR CATEGORIES:
  1. Validation errors - Block an operation entirely; always surfaced as a
     structured list so a caller can report every problem at once.
  2. Lifecycle errors - Illegal run state transitions, locked runs.
  3. Configuration gaps - NOT errors. A missing plan metric or empty grid
     bucket degrades to a zero-amount result (pay nothing).

USAGE:
  issues := engine.ValidationIssues{}
  issues.Add(engine.IssueMissingExchangeRate, "no EUR rate for 2025-04")
  if issues.Blocking() { return issues }
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRunLocked is returned when mutating a finalized (locked) run.
	ErrRunLocked = errors.New("payout run is locked")

	// ErrInvalidTransition is returned for a backward or skipped run
	// status transition. The lifecycle is strictly monotonic.
	ErrInvalidTransition = errors.New("invalid run status transition")

	// ErrConcurrentModification is returned when a compare-and-set status
	// transition loses a race.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrRunNotFound is returned when a referenced run doesn't exist.
	ErrRunNotFound = errors.New("payout run not found")

	// ErrDuplicateRun is returned when a run already exists for a month.
	ErrDuplicateRun = errors.New("payout run already exists for month")

	// ErrRunNotDraft is returned when deleting a run past draft.
	ErrRunNotDraft = errors.New("payout run is not in draft")

	// ErrRunNotFinalized is returned when releasing collection tranches
	// for a run that has not been finalized yet.
	ErrRunNotFinalized = errors.New("payout run is not finalized")

	// ErrAdjustmentNotApproved is returned when applying an adjustment
	// that has not passed review.
	ErrAdjustmentNotApproved = errors.New("adjustment is not approved")

	// ErrOverlappingSegments is returned when two assignment segments for
	// one employee overlap inside the same fiscal year.
	ErrOverlappingSegments = errors.New("overlapping assignment segments")

	// ErrValidationFailed wraps a non-empty ValidationIssues list.
	ErrValidationFailed = errors.New("prerequisite validation failed")
)

// =============================================================================
// VALIDATION ISSUES - Structured, reported all at once
// =============================================================================

type IssueCode string

const (
	IssueMissingExchangeRate IssueCode = "missing_exchange_rate"
	IssueMissingAssignment   IssueCode = "missing_assignment"
	IssueMissingTarget       IssueCode = "missing_performance_target"
	IssueOverlappingSegments IssueCode = "overlapping_segments"
	IssueNegativeSplit       IssueCode = "negative_split_percent"
)

// ValidationIssue is one blocking problem found during prerequisite checks.
type ValidationIssue struct {
	Code       IssueCode
	EmployeeID EmployeeID // empty for run-level issues (e.g. FX rates)
	Message    string
}

func (v ValidationIssue) Error() string {
	if v.EmployeeID != "" {
		return fmt.Sprintf("%s [%s]: %s", v.Code, v.EmployeeID, v.Message)
	}
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// ValidationIssues collects every problem before the caller decides to stop.
type ValidationIssues struct {
	Issues []ValidationIssue
}

func (vi *ValidationIssues) Add(code IssueCode, message string) {
	vi.Issues = append(vi.Issues, ValidationIssue{Code: code, Message: message})
}

func (vi *ValidationIssues) AddFor(employee EmployeeID, code IssueCode, message string) {
	vi.Issues = append(vi.Issues, ValidationIssue{Code: code, EmployeeID: employee, Message: message})
}

func (vi *ValidationIssues) Blocking() bool { return len(vi.Issues) > 0 }

func (vi *ValidationIssues) Error() string {
	msgs := make([]string, len(vi.Issues))
	for i, issue := range vi.Issues {
		msgs[i] = issue.Error()
	}
	return fmt.Sprintf("%d validation issue(s): %s", len(vi.Issues), strings.Join(msgs, "; "))
}

func (vi *ValidationIssues) Unwrap() error { return ErrValidationFailed }
