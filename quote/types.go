/*
Package quote is the debt-settlement quote engine.

PURPOSE:
  Turns debt parameters read from a URL into a payment plan the debtor can
  accept, and assembles the agreement sent to the webhook. Everything in this
  package is pure: no I/O, no clock reads, no globals that change.

KEY CONCEPTS:
  - DebtRecord:       Capital, interest and costs plus pass-through info fields
  - Plan / Breakdown: Discount policy and its computed result (plans.go)
  - State / Action:   Session state and the reducer that mutates it (engine.go)
  - AgreementPayload: The webhook body built on confirmation (payload.go)

DESIGN PRINCIPLES:
  1. Precision: Amounts are decimal.Decimal, never float64
  2. Explicit state: Update(state, action, env) returns a new State
  3. Derived values are recomputed, never stored next to their inputs

SEE ALSO:
  - params.go: Builds a DebtRecord from query parameters
  - calendar/: First-payment date rules
*/
package quote

import (
	"github.com/shopspring/decimal"
)

// DebtRecord is built once from the query parameters and never changes.
type DebtRecord struct {
	Capital  decimal.Decimal `json:"capital"`
	Interest decimal.Decimal `json:"interest"`
	Costs    decimal.Decimal `json:"costs"`

	// Informational fields, passed through unvalidated. nil when absent.
	OverdueStartDate    *string `json:"overdue_start_date,omitempty"`
	OverdueDays         *string `json:"overdue_days,omitempty"`
	PreviousInstallment *string `json:"previous_installment,omitempty"`
	DebtorID            *string `json:"debtor_id,omitempty"`
}

// Total is capital + interest + costs.
func (d DebtRecord) Total() decimal.Decimal {
	return d.Capital.Add(d.Interest).Add(d.Costs)
}

func (d DebtRecord) Class() DebtClass {
	return Classify(d.Total())
}
