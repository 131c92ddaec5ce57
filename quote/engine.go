/*
engine.go - Session state and the action reducer

PURPOSE:
  All form state of one quoting session lives in State. Every user interaction
  is an Action, and Update is the only function that changes State. Derived
  values (breakdown, confirm availability) are computed from State on demand.

ACTIONS:
  PlanSelected         Pick a plan (large debts) - resets installments to plan min
  InstallmentsChanged  Move the installment slider
  DateFieldChanged     Change the day, month or year picker
  ConfirmPressed       Validate and move to Submitting
  SubmissionSucceeded  Webhook accepted the agreement -> Confirmed (terminal)
  SubmissionFailed     Webhook failed -> back to Editing for a manual retry

PHASES:
  Editing --ConfirmPressed--> Submitting --SubmissionSucceeded--> Confirmed
                                  |
                                  +------SubmissionFailed------> Editing

  The Editing -> Submitting transition is the double-submission guard: a second
  ConfirmPressed while Submitting is rejected with ErrSubmissionInFlight. The
  caller must apply Update under the session lock for this to be atomic.

ERRORS:
  On error Update returns the input state unchanged, except for ConfirmPressed
  date errors, which record the inline validation message.

SEE ALSO:
  - plans.go: Compute
  - calendar/picker.go: Rules.Set / Rules.Validate
  - session/service.go: Applies actions under a per-session lock
*/
package quote

import (
	"fmt"

	"github.com/warp/settlement-quoter/calendar"
)

// =============================================================================
// STATE
// =============================================================================

type Phase string

const (
	PhaseEditing    Phase = "editing"
	PhaseSubmitting Phase = "submitting"
	PhaseConfirmed  Phase = "confirmed"
)

// StatusKind classifies the last message shown to the user.
type StatusKind string

const (
	StatusNone    StatusKind = ""
	StatusInfo    StatusKind = "info"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// Status is the message area under the confirm control.
type Status struct {
	Kind StatusKind `json:"kind,omitempty"`
	Text string     `json:"text,omitempty"`
}

// State is the mutable form state of one session.
type State struct {
	Debt         DebtRecord         `json:"debt"`
	Plan         PlanID             `json:"plan,omitempty"` // empty until chosen for large debts
	Installments int                `json:"installments"`
	Date         calendar.Selection `json:"date"`
	Phase        Phase              `json:"phase"`
	Status       Status             `json:"status"`
	DateMessage  string             `json:"date_message,omitempty"`
	Attempts     int                `json:"attempts"`
}

// NewState starts a session. Small debts get the custom plan with one installment;
// large debts start with no plan until the user picks one.
func NewState(debt DebtRecord) State {
	s := State{
		Debt:         debt,
		Installments: 1,
		Phase:        PhaseEditing,
	}
	if debt.Class() == DebtSmall {
		s.Plan = PlanCustom
	}
	return s
}

// Class is the debt classification, derived from the record.
func (s State) Class() DebtClass { return s.Debt.Class() }

// PickerTarget is where the date picker is rendered for this debt.
func (s State) PickerTarget() calendar.Target {
	if s.Class() == DebtLarge {
		return calendar.TargetLargeDebt
	}
	return calendar.TargetSmallDebt
}

// Breakdown recomputes the quote. ok is false while no plan is selected.
func (s State) Breakdown() (Breakdown, bool) {
	if s.Plan == "" {
		return Breakdown{}, false
	}
	plan, err := LookupPlan(s.Plan)
	if err != nil {
		return Breakdown{}, false
	}
	return Compute(s.Debt, plan, s.Installments), true
}

// CanConfirm reports whether the confirm control is enabled.
func (s State) CanConfirm(rules calendar.Rules) bool {
	if s.Phase != PhaseEditing || s.Plan == "" {
		return false
	}
	_, err := rules.Validate(s.Date)
	return err == nil
}

// =============================================================================
// ACTIONS
// =============================================================================

// Action is one user or system event consumed by Update.
type Action interface {
	actionName() string
}

type PlanSelected struct{ Plan PlanID }

type InstallmentsChanged struct{ Count int }

type DateFieldChanged struct {
	Field calendar.Field
	Value int
}

type ConfirmPressed struct{}

type SubmissionSucceeded struct{}

type SubmissionFailed struct{ Err error }

func (PlanSelected) actionName() string        { return "plan_selected" }
func (InstallmentsChanged) actionName() string { return "installments_changed" }
func (DateFieldChanged) actionName() string    { return "date_field_changed" }
func (ConfirmPressed) actionName() string      { return "confirm_pressed" }
func (SubmissionSucceeded) actionName() string { return "submission_succeeded" }
func (SubmissionFailed) actionName() string    { return "submission_failed" }

// ActionName returns the wire name of a, used in logs and metrics.
func ActionName(a Action) string {
	if a == nil {
		return "nil"
	}
	return a.actionName()
}

// =============================================================================
// REDUCER
// =============================================================================

// Update applies a to s. rules anchors the date picker on the current day.
func Update(s State, a Action, rules calendar.Rules) (State, error) {
	switch act := a.(type) {
	case PlanSelected:
		return selectPlan(s, act.Plan)
	case InstallmentsChanged:
		return changeInstallments(s, act.Count)
	case DateFieldChanged:
		return changeDate(s, act, rules)
	case ConfirmPressed:
		return confirm(s, rules)
	case SubmissionSucceeded:
		if s.Phase != PhaseSubmitting {
			return s, ErrNotSubmitting
		}
		s.Phase = PhaseConfirmed
		s.Status = Status{Kind: StatusSuccess, Text: MsgSubmitted}
		return s, nil
	case SubmissionFailed:
		if s.Phase != PhaseSubmitting {
			return s, ErrNotSubmitting
		}
		s.Phase = PhaseEditing
		s.Status = Status{Kind: StatusError, Text: "Error: " + errText(act.Err)}
		return s, nil
	default:
		return s, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
}

func editable(s State) error {
	switch s.Phase {
	case PhaseConfirmed:
		return ErrAlreadyConfirmed
	case PhaseSubmitting:
		return ErrSubmissionInFlight
	}
	return nil
}

func selectPlan(s State, id PlanID) (State, error) {
	if err := editable(s); err != nil {
		return s, err
	}
	plan, err := LookupPlan(id)
	if err != nil {
		return s, err
	}
	if !Offers(s.Class(), id) {
		return s, fmt.Errorf("%w: %s for %s debt", ErrPlanNotOffered, id, s.Class())
	}
	s.Plan = plan.ID
	s.Installments = plan.MinInstallments
	return s, nil
}

func changeInstallments(s State, n int) (State, error) {
	if err := editable(s); err != nil {
		return s, err
	}
	if s.Plan == "" {
		return s, ErrNoPlanSelected
	}
	plan, err := LookupPlan(s.Plan)
	if err != nil {
		return s, err
	}
	if !plan.Allows(n) {
		return s, &InstallmentsRangeError{Plan: plan.ID, Requested: n, Min: plan.MinInstallments, Max: plan.MaxInstallments}
	}
	s.Installments = n
	return s, nil
}

// Refresh re-anchors an editable state on the current day. Picker fields that
// are no longer offered are cleared and the past-date message is set, so a
// selection made before the day rolled over cannot be confirmed silently.
func Refresh(s State, rules calendar.Rules) State {
	if s.Phase != PhaseEditing {
		return s
	}
	sel := rules.Normalize(s.Date)
	if sel != s.Date {
		s.Date = sel
		s.DateMessage = MsgPastDate
		return s
	}
	if sel.Complete() {
		if _, err := rules.Validate(sel); err != nil {
			s.DateMessage = dateMessage(err)
		}
	}
	return s
}

func changeDate(s State, act DateFieldChanged, rules calendar.Rules) (State, error) {
	if err := editable(s); err != nil {
		return s, err
	}
	s = Refresh(s, rules)
	sel, err := rules.Set(s.Date, act.Field, act.Value)
	if err != nil {
		return s, err
	}
	s.Date = sel
	s.DateMessage = ""
	if sel.Complete() {
		if _, err := rules.Validate(sel); err != nil {
			s.DateMessage = dateMessage(err)
		}
	}
	return s, nil
}

func confirm(s State, rules calendar.Rules) (State, error) {
	if err := editable(s); err != nil {
		return s, err
	}
	if s.Plan == "" {
		return s, ErrNoPlanSelected
	}
	if _, err := rules.Validate(s.Date); err != nil {
		s.DateMessage = dateMessage(err)
		return s, err
	}
	s.DateMessage = ""
	s.Phase = PhaseSubmitting
	s.Attempts++
	s.Status = Status{Kind: StatusInfo, Text: MsgSending}
	return s, nil
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
