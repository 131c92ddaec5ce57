/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. The quote view model
  (quote.View) is embedded as is; everything around it is shaped here.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Sessions:   SessionDTO, ActionRequest
  Quote:      QuoteResponse
  Config:     webhook.ConfigResponse, ConfigErrorResponse
  Deliveries: DeliveryDTO
  Errors:     ErrorResponse, MissingParamsDetails

VALIDATION:
  Validation is done in handlers and the quote engine, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - quote/view.go: View
*/
package api

import (
	"fmt"
	"time"

	"github.com/warp/settlement-quoter/calendar"
	"github.com/warp/settlement-quoter/quote"
	"github.com/warp/settlement-quoter/session"
	"github.com/warp/settlement-quoter/webhook"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SessionDTO is a session with its rendered view.
type SessionDTO struct {
	ID        string     `json:"id"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	View      quote.View `json:"view"`
}

// QuoteResponse is the stateless quote.
type QuoteResponse struct {
	View quote.View `json:"view"`
}

// Action types accepted by POST /api/sessions/{id}/actions.
const (
	ActionPlanSelected        = "plan_selected"
	ActionInstallmentsChanged = "installments_changed"
	ActionDateFieldChanged    = "date_field_changed"
)

// ActionRequest is one user action. Only the fields of Type are read.
type ActionRequest struct {
	Type  string `json:"type"`
	Plan  string `json:"plan,omitempty"`  // plan_selected
	Count int    `json:"count,omitempty"` // installments_changed
	Field string `json:"field,omitempty"` // date_field_changed: day|month|year
	Value int    `json:"value"`           // date_field_changed: 0 clears
}

// ConfigErrorResponse is the 500 body of /api/config when no URL is set.
type ConfigErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DeliveryDTO is one webhook attempt in the delivery log.
type DeliveryDTO struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	TargetHost  string    `json:"target_host,omitempty"`
	StatusCode  int       `json:"status_code,omitempty"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// MissingParamsDetails lists every absent or invalid query parameter.
type MissingParamsDetails struct {
	Missing []string `json:"missing"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toSessionDTO(s *session.Session, rules calendar.Rules) SessionDTO {
	return SessionDTO{
		ID:        s.ID,
		Attempts:  s.State.Attempts,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		View:      quote.Render(s.State, rules),
	}
}

func toDeliveryDTOs(ds []webhook.Delivery) []DeliveryDTO {
	dtos := make([]DeliveryDTO, len(ds))
	for i, d := range ds {
		dtos[i] = DeliveryDTO{
			ID:          d.ID,
			SessionID:   d.SessionID,
			TargetHost:  d.TargetHost,
			StatusCode:  d.StatusCode,
			Outcome:     d.Outcome,
			Error:       d.Error,
			DurationMs:  d.Duration.Milliseconds(),
			AttemptedAt: d.AttemptedAt,
		}
	}
	return dtos
}

// toAction maps the wire form to a reducer action.
func (r ActionRequest) toAction() (quote.Action, error) {
	switch r.Type {
	case ActionPlanSelected:
		return quote.PlanSelected{Plan: quote.PlanID(r.Plan)}, nil
	case ActionInstallmentsChanged:
		return quote.InstallmentsChanged{Count: r.Count}, nil
	case ActionDateFieldChanged:
		return quote.DateFieldChanged{Field: calendar.Field(r.Field), Value: r.Value}, nil
	default:
		return nil, fmt.Errorf("%w: %q", quote.ErrUnknownAction, r.Type)
	}
}
