/*
handlers.go - HTTP API handlers for the settlement quoter

PURPOSE:
  Exposes the quote engine and session service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Config:
    GET    /api/config                     Webhook URL for browser clients

  Quotes:
    GET    /api/quote?<params>             Stateless quote view

  Sessions:
    POST   /api/sessions?<params>          Create session
    GET    /api/sessions/{id}              Current view
    POST   /api/sessions/{id}/actions      Apply plan / installments / date change
    POST   /api/sessions/{id}/confirm      Submit the agreement

  Operations:
    GET    /api/deliveries                 Recent webhook attempts
    GET    /healthz                        Liveness and dependency checks
    GET    /metrics                        Prometheus exposition

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Missing parameters, malformed body, unknown action
  - 404: Session not found
  - 409: Already confirmed, submission in flight
  - 422: Rule violations (plan, installments, date)
  - 502: Webhook rejected the agreement or was unreachable
  - 503: Webhook URL not configured
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Debt parameters come from the URL by design.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/settlement-quoter/metrics"
	"github.com/warp/settlement-quoter/quote"
	"github.com/warp/settlement-quoter/session"
	"github.com/warp/settlement-quoter/webhook"
)

const (
	msgMethodNotAllowed    = "Method not allowed"
	msgWebhookUnconfigured = "WEBHOOK_URL not configured"
	msgWebhookEnvMissing   = "La variable de entorno WEBHOOK_URL no está configurada"

	// originHeader lets a front end pass the page URL the debtor opened.
	originHeader = "X-Origin-URL"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// DeliveryLister reads the webhook delivery log.
type DeliveryLister interface {
	ListDeliveries(ctx context.Context, limit int) ([]webhook.Delivery, error)
	ListSessionDeliveries(ctx context.Context, sessionID string) ([]webhook.Delivery, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Sessions   *session.Service
	Deliveries DeliveryLister // optional
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	// WebhookURL is what /api/config advertises. Empty means unset.
	WebhookURL string
	// ServePlaceholder answers /api/config with the placeholder instead of 500.
	ServePlaceholder bool

	Checks map[string]HealthCheck
}

// NewHandler creates a new handler around the session service.
func NewHandler(sessions *session.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Sessions: sessions,
		Logger:   logger,
		Checks:   make(map[string]HealthCheck),
	}
}

// =============================================================================
// CONFIG
// =============================================================================

// GetConfig exposes the webhook URL so it is not baked into client code.
// GET /api/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": msgMethodNotAllowed})
		return
	}

	target := h.WebhookURL
	if target == "" {
		if !h.ServePlaceholder {
			writeJSON(w, http.StatusInternalServerError, ConfigErrorResponse{
				Error:   msgWebhookUnconfigured,
				Message: msgWebhookEnvMissing,
			})
			return
		}
		target = webhook.PlaceholderURL
	}

	writeJSON(w, http.StatusOK, webhook.ConfigResponse{WebhookURL: target})
}

// =============================================================================
// QUOTES
// =============================================================================

// GetQuote computes a quote without creating a session. Optional plan and
// cuotas parameters apply a plan choice and an installment count.
// GET /api/quote
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	debt, err := quote.ParseParams(query)
	if err != nil {
		h.writeDomainError(w, err, nil)
		return
	}

	rules := h.Sessions.Rules()
	s := quote.NewState(debt)

	if plan := query.Get("plan"); plan != "" {
		if s, err = quote.Update(s, quote.PlanSelected{Plan: quote.PlanID(plan)}, rules); err != nil {
			h.writeDomainError(w, err, nil)
			return
		}
	}
	if raw := query.Get("cuotas"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid cuotas", err)
			return
		}
		if s, err = quote.Update(s, quote.InstallmentsChanged{Count: n}, rules); err != nil {
			h.writeDomainError(w, err, nil)
			return
		}
	}

	writeJSON(w, http.StatusOK, QuoteResponse{View: quote.Render(s, rules)})
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSession opens a session from the debt query parameters.
// POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Create(r.Context(), r.URL.Query(), originURL(r))
	if err != nil {
		h.writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(sess, h.Sessions.Rules()))
}

// GetSession returns the current view of a session.
// GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess, h.Sessions.Rules()))
}

// ApplyAction applies one edit to a session.
// POST /api/sessions/{id}/actions
func (h *Handler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	action, err := req.toAction()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown action type", err)
		return
	}

	sess, err := h.Sessions.Apply(r.Context(), chi.URLParam(r, "id"), action)
	if err != nil {
		h.writeDomainError(w, err, sess)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess, h.Sessions.Rules()))
}

// ConfirmSession validates the session and submits the agreement.
// POST /api/sessions/{id}/confirm
func (h *Handler) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err, sess)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess, h.Sessions.Rules()))
}

// =============================================================================
// OPERATIONS
// =============================================================================

// ListDeliveries returns recent webhook attempts.
// GET /api/deliveries?limit=N
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.Deliveries == nil {
		writeError(w, http.StatusNotFound, "Delivery log disabled", nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	deliveries, err := h.Deliveries.ListDeliveries(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list deliveries", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryDTOs(deliveries))
}

// ListSessionDeliveries returns the webhook attempts of one session, oldest first.
// GET /api/sessions/{id}/deliveries
func (h *Handler) ListSessionDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.Deliveries == nil {
		writeError(w, http.StatusNotFound, "Delivery log disabled", nil)
		return
	}

	sess, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err, nil)
		return
	}

	deliveries, err := h.Deliveries.ListSessionDeliveries(r.Context(), sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list deliveries", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeliveryDTOs(deliveries))
}

// Health runs every registered check.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if len(h.Checks) > 0 {
		resp.Checks = make(map[string]string, len(h.Checks))
	}
	for name, check := range h.Checks {
		if err := check(r.Context()); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine, session and webhook errors to HTTP. When the
// session is known its current view travels in details.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, sess *session.Session) {
	status, code := classify(err)

	resp := ErrorResponse{Error: err.Error(), Code: code}
	var missing *quote.MissingParamsError
	switch {
	case errors.As(err, &missing):
		resp.Details = MissingParamsDetails{Missing: missing.Params}
	case sess != nil:
		resp.Details = toSessionDTO(sess, h.Sessions.Rules())
	}

	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.String("code", code), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, quote.ErrMissingParameter):
		return http.StatusBadRequest, "MISSING_PARAMETERS"
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, quote.ErrUnknownAction):
		return http.StatusBadRequest, "UNKNOWN_ACTION"
	case quote.IsDateError(err):
		return http.StatusUnprocessableEntity, "INVALID_DATE"
	case quote.IsRuleViolation(err):
		return http.StatusUnprocessableEntity, "RULE_VIOLATION"
	case quote.IsPhaseConflict(err):
		return http.StatusConflict, "PHASE_CONFLICT"
	case errors.Is(err, webhook.ErrWebhookUnconfigured):
		return http.StatusServiceUnavailable, "WEBHOOK_UNCONFIGURED"
	case errors.Is(err, webhook.ErrSubmissionFailed):
		return http.StatusBadGateway, "SUBMISSION_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// originURL is the page the debtor opened: the X-Origin-URL header, then the
// Referer, then the request itself.
func originURL(r *http.Request) string {
	for _, candidate := range []string{r.Header.Get(originHeader), r.Referer()} {
		if u, err := url.Parse(candidate); err == nil && u.IsAbs() {
			return candidate
		}
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
