/*
deal.go - Sales deals, participant roles and revenue classification

PURPOSE:
  A Deal is one sales event. It carries monetary fields per revenue type
  and up to eight participant-role slots. The slots are a fixed
  enumeration iterated generically, so consumers never repeat an
  eight-way role list.

PARTICIPANT ROLES:
  sales_rep, sales_head, sales_engineering x2, product_specialist x2,
  solution_manager x2. A deal can credit 0-8 employees simultaneously.

IMMUTABILITY:
  A deal consumed by a finalized run must not change. Caller convention;
  the engine treats deals as read-only input.
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REVENUE TYPES
// =============================================================================

type RevenueType string

const (
	RevenueNewARR           RevenueType = "new_arr"
	RevenueManagedServices  RevenueType = "managed_services"
	RevenueCR               RevenueType = "contract_renewal"
	RevenueER               RevenueType = "enhancement"
	RevenueImplementation   RevenueType = "implementation"
	RevenuePerpetualLicense RevenueType = "perpetual_license"
)

// CommissionType buckets deal revenue for commission aggregation.
// CR and ER fold into a single bucket.
type CommissionType string

const (
	CommissionNewARR           CommissionType = "new_arr"
	CommissionManagedServices  CommissionType = "managed_services"
	CommissionCRER             CommissionType = "cr_er"
	CommissionImplementation   CommissionType = "implementation"
	CommissionPerpetualLicense CommissionType = "perpetual_license"
)

// CommissionBucket maps a revenue type to its commission bucket.
func CommissionBucket(rt RevenueType) CommissionType {
	switch rt {
	case RevenueCR, RevenueER:
		return CommissionCRER
	case RevenueManagedServices:
		return CommissionManagedServices
	case RevenueImplementation:
		return CommissionImplementation
	case RevenuePerpetualLicense:
		return CommissionPerpetualLicense
	default:
		return CommissionNewARR
	}
}

// =============================================================================
// PARTICIPANT ROLES - Fixed enumeration of the 8 crediting slots
// =============================================================================

type ParticipantRole string

const (
	RoleSalesRep          ParticipantRole = "sales_rep"
	RoleSalesHead         ParticipantRole = "sales_head"
	RoleSalesEngineering1 ParticipantRole = "sales_engineering_1"
	RoleSalesEngineering2 ParticipantRole = "sales_engineering_2"
	RoleProductSpecialist1 ParticipantRole = "product_specialist_1"
	RoleProductSpecialist2 ParticipantRole = "product_specialist_2"
	RoleSolutionManager1  ParticipantRole = "solution_manager_1"
	RoleSolutionManager2  ParticipantRole = "solution_manager_2"
)

// AllRoles is the canonical iteration order for the 8 slots.
var AllRoles = []ParticipantRole{
	RoleSalesRep,
	RoleSalesHead,
	RoleSalesEngineering1,
	RoleSalesEngineering2,
	RoleProductSpecialist1,
	RoleProductSpecialist2,
	RoleSolutionManager1,
	RoleSolutionManager2,
}

// =============================================================================
// COLLECTION STATUS
// =============================================================================

type CollectionStatus string

const (
	CollectionPending   CollectionStatus = "pending"
	CollectionCollected CollectionStatus = "collected"
	CollectionWrittenOff CollectionStatus = "written_off"
)

// =============================================================================
// DEAL
// =============================================================================

// Deal is one sales event with per-revenue-type amounts (USD) and up to
// eight participant slots.
type Deal struct {
	ID         DealID
	CustomerID string
	ClosedAt   time.Time

	// Revenue by type, USD. Absent types are zero.
	Revenue map[RevenueType]decimal.Decimal

	// GPMarginPct gates margin-sensitive commission and NRR aggregation.
	GPMarginPct decimal.Decimal

	// Participants maps role slot -> employee. Nil/absent slots are
	// uncredited. One employee may hold several slots on the same deal.
	Participants map[ParticipantRole]EmployeeID

	// Collection tracking for tranche release and clawback.
	Collection      CollectionStatus
	CollectionDueAt time.Time
	CollectedAt     *time.Time
}

// RevenueOf returns the deal's amount for one revenue type.
func (d *Deal) RevenueOf(rt RevenueType) decimal.Decimal {
	if v, ok := d.Revenue[rt]; ok {
		return v
	}
	return decimal.Zero
}

// PrimaryValue is the deal's headline value used for achievement
// crediting and SPIFF qualification: the sum across revenue types.
func (d *Deal) PrimaryValue() decimal.Decimal {
	total := decimal.Zero
	for _, v := range d.Revenue {
		total = total.Add(v)
	}
	return total
}

// Participant returns the employee in a slot, if any.
func (d *Deal) Participant(role ParticipantRole) (EmployeeID, bool) {
	id, ok := d.Participants[role]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Involves reports whether the employee holds any slot on this deal.
func (d *Deal) Involves(emp EmployeeID) bool {
	for _, role := range AllRoles {
		if id, ok := d.Participant(role); ok && id == emp {
			return true
		}
	}
	return false
}

// PastDue reports whether collection is still pending after the due date.
func (d *Deal) PastDue(asOf time.Time) bool {
	return d.Collection == CollectionPending && asOf.After(d.CollectionDueAt)
}

// MeetsMargin applies an optional per-deal GP-margin gate. A nil gate
// always passes; the boundary is inclusive (margin == gate qualifies).
func (d *Deal) MeetsMargin(minPct *decimal.Decimal) bool {
	if minPct == nil {
		return true
	}
	return !d.GPMarginPct.LessThan(*minPct)
}

// =============================================================================
// CLOSING ARR SNAPSHOT - Point-in-time, never cumulative
// =============================================================================

// ARRSnapshot is a monthly portfolio snapshot per customer/project. The
// value is a point-in-time reading: only the latest month in a period
// counts toward achievement. Summing snapshots across months is a bug.
type ARRSnapshot struct {
	OwnerID    EmployeeID // portfolio owner credited with the ARR
	CustomerID string
	ProjectID  string
	Month      MonthYear
	ValueUSD   decimal.Decimal

	// EndDate must fall after fiscal-year-end for the snapshot to be
	// eligible at all.
	EndDate time.Time
}

// Eligible applies the end-date filter against the fiscal year.
func (s ARRSnapshot) Eligible(fy FiscalYear) bool {
	return s.EndDate.After(fy.End)
}

// LatestARR selects, per customer/project, the most recent eligible
// snapshot at or before the given month, and totals their values. This is
// the only supported way to turn snapshots into a YTD achievement number.
func LatestARR(snapshots []ARRSnapshot, upTo MonthYear, fy FiscalYear) decimal.Decimal {
	type key struct{ customer, project string }
	latest := make(map[key]ARRSnapshot)

	for _, s := range snapshots {
		if !s.Eligible(fy) {
			continue
		}
		if s.Month.Start().After(upTo.Start()) {
			continue
		}
		k := key{s.CustomerID, s.ProjectID}
		if cur, ok := latest[k]; !ok || cur.Month.Before(s.Month) {
			latest[k] = s
		}
	}

	total := decimal.Zero
	for _, s := range latest {
		total = total.Add(s.ValueUSD)
	}
	return total
}
