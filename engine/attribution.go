/*
attribution.go - Multi-participant deal crediting

PURPOSE:
  A deal names up to eight participants. Two attribution modes coexist
  and deliberately disagree:

  ACHIEVEMENT CREDITING (target attainment %):
    Every distinct named participant receives FULL credit for the deal's
    primary value. This is not split, so the sum of everyone's
    achievement can exceed 100% of the same deal pool. Dashboards want
    it this way.

  VARIABLE-PAY SPLITTING (actual payout):
    One employee's share of a deal is that deal's revenue contribution
    divided by the employee's own YTD total revenue, applied against the
    employee's own eligible payout. The same dollar is never paid twice,
    while remaining un-deduplicated for attainment views.

CLAWBACK ELIGIBILITY:
  A deal's variable-pay share becomes clawback-eligible when its
  collection is still pending past the due date, unless the owning plan
  is clawback-exempt.
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACHIEVEMENT CREDITING - Full value to every participant
// =============================================================================

// CreditedEmployees returns the distinct employees a plan credits on a
// deal. An employee holding two slots is credited once.
func CreditedEmployees(deal *Deal, plan *CompPlan) []EmployeeID {
	seen := make(map[EmployeeID]bool)
	var out []EmployeeID
	for _, role := range AllRoles {
		emp, ok := deal.Participant(role)
		if !ok || seen[emp] {
			continue
		}
		if plan != nil && !plan.CreditsRole(role) {
			continue
		}
		seen[emp] = true
		out = append(out, emp)
	}
	return out
}

// AchievementCredit totals the primary value of every deal crediting the
// employee. Deliberately not split across participants.
func AchievementCredit(deals []Deal, emp EmployeeID, plan *CompPlan) decimal.Decimal {
	total := decimal.Zero
	for i := range deals {
		deal := &deals[i]
		for _, credited := range CreditedEmployees(deal, plan) {
			if credited == emp {
				total = total.Add(deal.PrimaryValue())
				break
			}
		}
	}
	return total
}

// =============================================================================
// VARIABLE-PAY SPLITTING - Proportional share of one deal
// =============================================================================

// DealShare is one deal's slice of an employee's variable pay.
type DealShare struct {
	DealID   DealID
	ShareUSD decimal.Decimal
	Fraction decimal.Decimal // deal revenue / employee YTD revenue

	// ClawbackEligible marks shares whose booking tranche must be
	// recovered if the deal stays uncollected.
	ClawbackEligible bool
}

// SplitVariablePay distributes an employee's eligible payout across
// their deals in proportion to each deal's contribution to the
// employee's own YTD total. The shares of one deal across all its
// participants can never exceed the deal's revenue, because every
// participant divides by their own (>= deal value) YTD total.
func SplitVariablePay(eligibleUSD decimal.Decimal, deals []Deal, emp EmployeeID, plan *CompPlan, asOf time.Time) []DealShare {
	ytdTotal := decimal.Zero
	var involved []*Deal
	for i := range deals {
		deal := &deals[i]
		if !deal.Involves(emp) {
			continue
		}
		involved = append(involved, deal)
		ytdTotal = ytdTotal.Add(deal.PrimaryValue())
	}
	if ytdTotal.IsZero() {
		return nil
	}

	exempt := plan != nil && plan.ClawbackExempt
	shares := make([]DealShare, 0, len(involved))
	for _, deal := range involved {
		fraction := deal.PrimaryValue().Div(ytdTotal)
		shares = append(shares, DealShare{
			DealID:           deal.ID,
			Fraction:         fraction,
			ShareUSD:         eligibleUSD.Mul(fraction),
			ClawbackEligible: !exempt && deal.PastDue(asOf),
		})
	}
	return shares
}
