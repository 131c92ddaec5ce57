/*
plans.go - Payment plans, debt classification, and the discount calculation

PURPOSE:
  Defines the fixed plan enumeration and the pure calculation that turns a debt,
  a plan, and an installment count into a Breakdown.

PLANS:
  ID        Name      Discount on capital   Installments
  contado   Contado   30%                   1
  6meses    6 Meses   20%                   2-6
  1año      1 Año     10%                   7-12
  2años     2 Años     0%                   13-24
  custom    -          0%                   1-36 (small debts only)

CLASSIFICATION:
  total >= 1,000,000  -> large: user must pick one of the four discounted plans
  total <  1,000,000  -> small: plan "custom" with a free installment slider

CALCULATION:
  discountAmount   = capital x rate
  capitalToPay     = capital - discountAmount
  installmentValue = capitalToPay / installments   (capitalToPay when installments == 0)
  totalCondoned    = interest + costs              (always fully waived)
  totalSaved       = discountAmount + totalCondoned

  All arithmetic is decimal. The rates have at most two decimal places, so
  capitalToPay + discountAmount == capital holds exactly.

SEE ALSO:
  - engine.go: Recomputes the breakdown after every action
*/
package quote

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PLAN ENUMERATION
// =============================================================================

type PlanID string

const (
	PlanCash      PlanID = "contado"
	PlanSixMonths PlanID = "6meses"
	PlanOneYear   PlanID = "1año"
	PlanTwoYears  PlanID = "2años"
	PlanCustom    PlanID = "custom"
)

// Plan is a discount/installment-range policy applied to the capital of a debt.
type Plan struct {
	ID              PlanID
	Name            string
	DiscountRate    decimal.Decimal
	MinInstallments int
	MaxInstallments int
}

// CustomMaxInstallments bounds the free slider offered to small debts.
const CustomMaxInstallments = 36

var plans = map[PlanID]Plan{
	PlanCash:      {ID: PlanCash, Name: "Contado", DiscountRate: decimal.RequireFromString("0.30"), MinInstallments: 1, MaxInstallments: 1},
	PlanSixMonths: {ID: PlanSixMonths, Name: "6 Meses", DiscountRate: decimal.RequireFromString("0.20"), MinInstallments: 2, MaxInstallments: 6},
	PlanOneYear:   {ID: PlanOneYear, Name: "1 Año", DiscountRate: decimal.RequireFromString("0.10"), MinInstallments: 7, MaxInstallments: 12},
	PlanTwoYears:  {ID: PlanTwoYears, Name: "2 Años", DiscountRate: decimal.Zero, MinInstallments: 13, MaxInstallments: 24},
	PlanCustom:    {ID: PlanCustom, Name: "custom", DiscountRate: decimal.Zero, MinInstallments: 1, MaxInstallments: CustomMaxInstallments},
}

// discountedOrder is the display order of the large-debt plans.
var discountedOrder = []PlanID{PlanCash, PlanSixMonths, PlanOneYear, PlanTwoYears}

// LookupPlan returns the plan for id.
func LookupPlan(id PlanID) (Plan, error) {
	p, ok := plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return p, nil
}

// Allows reports whether n installments are permitted by the plan.
func (p Plan) Allows(n int) bool {
	return n >= p.MinInstallments && n <= p.MaxInstallments
}

// FixedInstallments is true when the plan has no installment choice (cash).
func (p Plan) FixedInstallments() bool {
	return p.MinInstallments == p.MaxInstallments
}

// Label is the human-readable plan sent with the agreement, e.g. "6 Meses (4 cuotas)".
// The custom plan is always labelled "custom".
func (p Plan) Label(installments int) string {
	if p.ID == PlanCustom {
		return string(PlanCustom)
	}
	return fmt.Sprintf("%s (%d cuotas)", p.Name, installments)
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

type DebtClass string

const (
	DebtLarge DebtClass = "large"
	DebtSmall DebtClass = "small"
)

// LargeDebtThreshold is the total from which discounted plans are offered.
var LargeDebtThreshold = decimal.NewFromInt(1_000_000)

func Classify(total decimal.Decimal) DebtClass {
	if total.GreaterThanOrEqual(LargeDebtThreshold) {
		return DebtLarge
	}
	return DebtSmall
}

// OfferedPlans returns the plans a debt of the given class may choose from.
func OfferedPlans(class DebtClass) []Plan {
	if class == DebtSmall {
		return []Plan{plans[PlanCustom]}
	}
	out := make([]Plan, 0, len(discountedOrder))
	for _, id := range discountedOrder {
		out = append(out, plans[id])
	}
	return out
}

// Offers reports whether plan id is available to the class.
func Offers(class DebtClass, id PlanID) bool {
	for _, p := range OfferedPlans(class) {
		if p.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// BREAKDOWN
// =============================================================================

// InstallmentPlaces is the rounding applied to the per-installment value.
const InstallmentPlaces = 2

// Breakdown is the derived result of applying a plan to a debt.
type Breakdown struct {
	Plan             PlanID          `json:"plan"`
	Installments     int             `json:"installments"`
	Capital          decimal.Decimal `json:"capital"`
	Interest         decimal.Decimal `json:"interest"`
	Costs            decimal.Decimal `json:"costs"`
	Total            decimal.Decimal `json:"total"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	CapitalToPay     decimal.Decimal `json:"capital_to_pay"`
	InstallmentValue decimal.Decimal `json:"installment_value"`
	TotalCondoned    decimal.Decimal `json:"total_condoned"`
	TotalSaved       decimal.Decimal `json:"total_saved"`
}

// Compute applies plan to debt with the given installment count. It never
// divides by zero: installments <= 0 charges the full capitalToPay once.
func Compute(debt DebtRecord, plan Plan, installments int) Breakdown {
	discount := debt.Capital.Mul(plan.DiscountRate)
	toPay := debt.Capital.Sub(discount)

	value := toPay
	if installments > 0 {
		value = toPay.DivRound(decimal.NewFromInt(int64(installments)), InstallmentPlaces)
	}

	condoned := debt.Interest.Add(debt.Costs)

	return Breakdown{
		Plan:             plan.ID,
		Installments:     installments,
		Capital:          debt.Capital,
		Interest:         debt.Interest,
		Costs:            debt.Costs,
		Total:            debt.Total(),
		DiscountAmount:   discount,
		CapitalToPay:     toPay,
		InstallmentValue: value,
		TotalCondoned:    condoned,
		TotalSaved:       discount.Add(condoned),
	}
}
