/*
errors.go - Centralized error types for the quote engine

PURPOSE:
  All error kinds the engine can report, in one place. Callers classify them
  with errors.Is / errors.As and decide how to surface them (HTTP status,
  inline message, log line).

ERROR CATEGORIES:
  1. Input errors      - Missing or invalid query parameters (blocks the session)
  2. Rule violations   - Plan/installment/date changes the rules do not allow
  3. Date errors       - Incomplete or past first-payment date (blocks confirm)
  4. Submission phase  - Confirming twice, or while a submission is in flight

SEE ALSO:
  - calendar/picker.go: Date error sentinels re-exported here
  - webhook/errors.go: Submission and configuration failures
*/
package quote

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/settlement-quoter/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingParameter is returned when required debt parameters are absent or invalid.
	ErrMissingParameter = errors.New("missing or invalid parameters")

	// ErrPlanNotOffered is returned when a plan is not available for the debt size.
	ErrPlanNotOffered = errors.New("plan not offered for this debt")

	// ErrUnknownPlan is returned for a plan identifier outside the enumeration.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrNoPlanSelected is returned when an action needs a plan and none is chosen.
	ErrNoPlanSelected = errors.New("no payment plan selected")

	// ErrInstallmentsOutOfRange is returned when the count is outside the plan range.
	ErrInstallmentsOutOfRange = errors.New("installments out of range for plan")

	// ErrAlreadyConfirmed is returned for any change after the agreement was accepted.
	ErrAlreadyConfirmed = errors.New("agreement already confirmed")

	// ErrSubmissionInFlight is returned when a submission is already running.
	ErrSubmissionInFlight = errors.New("submission already in progress")

	// ErrNotSubmitting is returned when a submission outcome arrives with nothing in flight.
	ErrNotSubmitting = errors.New("no submission in progress")

	// ErrUnknownAction is returned by Update for an action type it does not handle.
	ErrUnknownAction = errors.New("unknown action")

	// Date errors live in the calendar package.
	ErrIncompleteDate   = calendar.ErrIncompleteDate
	ErrPastDate         = calendar.ErrPastDate
	ErrInvalidDateField = calendar.ErrInvalidDateField
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingParamsError lists every required parameter that is absent or invalid.
type MissingParamsError struct {
	Params []string
}

func (e *MissingParamsError) Error() string {
	return fmt.Sprintf("missing or invalid parameters: %s", strings.Join(e.Params, ", "))
}

func (e *MissingParamsError) Unwrap() error {
	return ErrMissingParameter
}

// InstallmentsRangeError reports the allowed range for the active plan.
type InstallmentsRangeError struct {
	Plan      PlanID
	Requested int
	Min       int
	Max       int
}

func (e *InstallmentsRangeError) Error() string {
	return fmt.Sprintf("installments %d out of range %d-%d for plan %s", e.Requested, e.Min, e.Max, e.Plan)
}

func (e *InstallmentsRangeError) Unwrap() error {
	return ErrInstallmentsOutOfRange
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDateError returns true if the error blocks confirmation until the picker is fixed.
func IsDateError(err error) bool {
	return errors.Is(err, ErrIncompleteDate) ||
		errors.Is(err, ErrPastDate) ||
		errors.Is(err, ErrInvalidDateField)
}

// IsRuleViolation returns true if the error is an action the rules do not allow.
func IsRuleViolation(err error) bool {
	return errors.Is(err, ErrPlanNotOffered) ||
		errors.Is(err, ErrUnknownPlan) ||
		errors.Is(err, ErrNoPlanSelected) ||
		errors.Is(err, ErrInstallmentsOutOfRange) ||
		errors.Is(err, ErrUnknownAction) ||
		IsDateError(err)
}

// IsPhaseConflict returns true if the error comes from the submission lifecycle.
func IsPhaseConflict(err error) bool {
	return errors.Is(err, ErrAlreadyConfirmed) ||
		errors.Is(err, ErrSubmissionInFlight) ||
		errors.Is(err, ErrNotSubmitting)
}
