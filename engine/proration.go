/*
proration.go - Target-bonus pro-ration across assignment segments

PURPOSE:
  An employee's annual target bonus scales by the fraction of the fiscal
  year their plan assignment was actually active, clipped to their tenure
  window. When an employee holds two or more assignment segments in one
  year (plan change, promotion), each segment contributes its own target
  times its own factor and the results blend into one number.

INVARIANTS:
  - factor = overlap(segment, tenure, fiscal year) days / days in FY
  - Segments in one year must not overlap; overlap is a validation error,
    never a silent merge.
  - An open-ended segment or tenure (nil end) runs to fiscal-year end.

EXAMPLE:
  Hire April 1, fiscal year Apr 1 - Mar 31, target 40,000:
  factor = 365/365 = 1. Hire Oct 1 of the same fiscal year:
  factor = 182/365, prorated ~= 19,945.
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ASSIGNMENT SEGMENT - One time-boxed plan binding
// =============================================================================

// AssignmentSegment binds an employee to one plan for part of a year.
type AssignmentSegment struct {
	ID         string
	EmployeeID EmployeeID
	PlanID     PlanID

	From time.Time
	To   *time.Time // nil = open-ended

	TargetBonusUSD decimal.Decimal

	// CompRate is the compensation FX rate frozen when the assignment was
	// created. Variable pay for this segment converts with it.
	CompRate decimal.Decimal
}

// effectiveEnd clips the segment to the fiscal year when open-ended.
func (s AssignmentSegment) effectiveEnd(fy FiscalYear) time.Time {
	if s.To == nil || s.To.After(fy.End) {
		return fy.End
	}
	return *s.To
}

// ActiveIn reports whether the segment overlaps the given month at all.
func (s AssignmentSegment) ActiveIn(month MonthYear) bool {
	end := s.To
	if end != nil && end.Before(month.Start()) {
		return false
	}
	return !s.From.After(month.End())
}

// =============================================================================
// TENURE WINDOW
// =============================================================================

// Tenure is the employment window used to clip assignment overlap.
type Tenure struct {
	HireDate      time.Time
	DepartureDate *time.Time // nil = still employed
}

func (t Tenure) end(fy FiscalYear) time.Time {
	if t.DepartureDate == nil || t.DepartureDate.After(fy.End) {
		return fy.End
	}
	return *t.DepartureDate
}

// =============================================================================
// PRO-RATION
// =============================================================================

// ProrationFactor computes the fraction of the fiscal year one segment is
// simultaneously inside the segment window, the tenure window and the
// fiscal year itself.
func ProrationFactor(seg AssignmentSegment, tenure Tenure, fy FiscalYear) decimal.Decimal {
	segStart := seg.From
	if tenure.HireDate.After(segStart) {
		segStart = tenure.HireDate
	}
	if fy.Start.After(segStart) {
		segStart = fy.Start
	}

	segEnd := seg.effectiveEnd(fy)
	if tEnd := tenure.end(fy); tEnd.Before(segEnd) {
		segEnd = tEnd
	}

	overlap := DaysBetween(segStart, segEnd)
	if overlap <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(overlap)).Div(decimal.NewFromInt(int64(fy.Days())))
}

// BlendedTarget is the pro-rated target bonus across all of an employee's
// segments in one fiscal year.
type BlendedTarget struct {
	TotalUSD decimal.Decimal
	Segments []SegmentTarget
}

// SegmentTarget is one segment's contribution to the blended target.
type SegmentTarget struct {
	Segment  AssignmentSegment
	Factor   decimal.Decimal
	TargetUSD decimal.Decimal
}

// BlendTargetBonus validates that segments do not overlap, then sums
// segment_target x segment_factor into the blended target bonus.
func BlendTargetBonus(segments []AssignmentSegment, tenure Tenure, fy FiscalYear) (BlendedTarget, error) {
	if err := CheckSegmentOverlap(segments, fy); err != nil {
		return BlendedTarget{}, err
	}

	blended := BlendedTarget{TotalUSD: decimal.Zero}
	for _, seg := range segments {
		factor := ProrationFactor(seg, tenure, fy)
		contribution := seg.TargetBonusUSD.Mul(factor)
		blended.Segments = append(blended.Segments, SegmentTarget{
			Segment:  seg,
			Factor:   factor,
			TargetUSD: contribution,
		})
		blended.TotalUSD = blended.TotalUSD.Add(contribution)
	}
	return blended, nil
}

// CheckSegmentOverlap rejects any two segments sharing a day inside the
// fiscal year.
func CheckSegmentOverlap(segments []AssignmentSegment, fy FiscalYear) error {
	for i := 0; i < len(segments); i++ {
		for j := i + 1; j < len(segments); j++ {
			a, b := segments[i], segments[j]
			if OverlapDays(a.From, a.effectiveEnd(fy), b.From, b.effectiveEnd(fy)) > 0 {
				return fmt.Errorf("%w: segments %s and %s", ErrOverlappingSegments, a.ID, b.ID)
			}
		}
	}
	return nil
}
