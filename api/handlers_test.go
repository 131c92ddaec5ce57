/*
handlers_test.go - HTTP tests for the quoter API

Tests for:
- /api/config contract (200, 405, 500, placeholder)
- Stateless quotes
- Session lifecycle through confirm, including webhook failure and retry
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-quoter/metrics"
	"github.com/warp/settlement-quoter/quote"
	"github.com/warp/settlement-quoter/session"
	"github.com/warp/settlement-quoter/store/sqlite"
	"github.com/warp/settlement-quoter/webhook"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2026, time.October, 16, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	router     *chi.Mux
	handler    *Handler
	target     *webhook.Target
	hookStatus atomic.Int32
	hookHits   atomic.Int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}
	env.hookStatus.Store(http.StatusOK)

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.hookHits.Add(1)
		w.WriteHeader(int(env.hookStatus.Load()))
	}))
	t.Cleanup(hook.Close)

	deliveries, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { deliveries.Close() })

	m := metrics.New()
	env.target = webhook.NewTarget(hook.URL)
	sub := webhook.NewSubmitter(env.target, time.Second, nil)
	sub.Recorder = deliveries
	sub.Metrics = m

	svc := session.NewService(session.NewMemoryStore(), sub, session.Options{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
		Metrics:  m,
	})

	env.handler = NewHandler(svc, nil)
	env.handler.Deliveries = deliveries
	env.handler.Metrics = m
	env.handler.WebhookURL = hook.URL
	env.router = NewRouter(env.handler, RouterOptions{})
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

type errorBody struct {
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

func (e errorBody) session(t *testing.T) SessionDTO {
	t.Helper()
	var s SessionDTO
	require.NoError(t, json.Unmarshal(e.Details, &s))
	return s
}

const (
	smallDebtQuery = "capital=500000&intereses=80000&costos=20000"
	largeDebtQuery = "capital=2000000&intereses=300000&costos=100000"
)

func (env *testEnv) createSession(t *testing.T, query string) SessionDTO {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/sessions?"+query, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SessionDTO](t, rec)
}

func (env *testEnv) act(t *testing.T, id string, req ActionRequest) *httptest.ResponseRecorder {
	t.Helper()
	return env.do(t, http.MethodPost, "/api/sessions/"+id+"/actions", req)
}

func (env *testEnv) pickDate(t *testing.T, id string, y, m, d int) {
	t.Helper()
	for _, req := range []ActionRequest{
		{Type: ActionDateFieldChanged, Field: "year", Value: y},
		{Type: ActionDateFieldChanged, Field: "month", Value: m},
		{Type: ActionDateFieldChanged, Field: "day", Value: d},
	} {
		rec := env.act(t, id, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t)
	env.handler.WebhookURL = "https://hooks.example/acuerdos"

	rec := env.do(t, http.MethodGet, "/api/config", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"webhookUrl":"https://hooks.example/acuerdos"}`, rec.Body.String())
}

func TestGetConfig_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := env.do(t, method, "/api/config", nil)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, rec.Body.String(), method)
	}
}

func TestGetConfig_Unset(t *testing.T) {
	env := newTestEnv(t)
	env.handler.WebhookURL = ""

	rec := env.do(t, http.MethodGet, "/api/config", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ConfigErrorResponse](t, rec)
	assert.Equal(t, "WEBHOOK_URL not configured", body.Error)
	assert.NotEmpty(t, body.Message)
}

func TestGetConfig_ServePlaceholder(t *testing.T) {
	env := newTestEnv(t)
	env.handler.WebhookURL = ""
	env.handler.ServePlaceholder = true

	rec := env.do(t, http.MethodGet, "/api/config/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, webhook.PlaceholderURL, decode[webhook.ConfigResponse](t, rec).WebhookURL)
}

// =============================================================================
// QUOTES
// =============================================================================

func TestGetQuote_SmallDebt(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/quote?"+smallDebtQuery, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[QuoteResponse](t, rec).View
	assert.Equal(t, quote.DebtSmall, v.Class)
	require.Len(t, v.Plans, 1)
	assert.Equal(t, quote.PlanCustom, v.Plans[0].ID)
	require.NotNil(t, v.Results)
	assert.Equal(t, "$ 500.000", v.Results.InstallmentValue)
	assert.Equal(t, "$ 0", v.Results.DiscountAmount)
}

func TestGetQuote_LargeDebtCash(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/quote?"+largeDebtQuery+"&plan=contado", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[QuoteResponse](t, rec).View
	require.NotNil(t, v.Results)
	assert.Equal(t, "$ 600.000", v.Results.DiscountAmount)
	assert.Equal(t, "$ 1.400.000", v.Results.CapitalToPay)
	assert.Equal(t, "$ 1.400.000", v.Results.InstallmentValue)
	assert.Equal(t, "$ 1.000.000", v.Results.TotalSaved)
	assert.False(t, v.Installments.Visible)
}

func TestGetQuote_RuleViolations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/quote?"+largeDebtQuery+"&plan=6meses&cuotas=9", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/quote?"+smallDebtQuery+"&plan=contado", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/quote?"+smallDebtQuery+"&cuotas=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestCreateSession_MissingCostos(t *testing.T) {
	// GIVEN: capital and intereses but no costos
	// WHEN: A session is requested
	// THEN: 400 listing exactly ["costos"]
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/sessions?capital=500000&intereses=80000", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "MISSING_PARAMETERS", body.Code)
	var details MissingParamsDetails
	require.NoError(t, json.Unmarshal(body.Details, &details))
	assert.Equal(t, []string{"costos"}, details.Missing)
}

func TestCreateSession_OriginURL(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/sessions?"+smallDebtQuery, nil)
	req.Header.Set(originHeader, "https://pagos.example/?"+smallDebtQuery)
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[SessionDTO](t, rec)
	sess, err := env.handler.Sessions.Get(req.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://pagos.example/?"+smallDebtQuery, sess.OriginURL)
}

func TestGetSession_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/sessions/does-not-exist", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[errorBody](t, rec).Code)
}

func TestApplyAction_Validation(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSession(t, largeDebtQuery)

	rec := env.act(t, s.ID, ActionRequest{Type: "teleport"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/actions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty body")

	rec = env.act(t, s.ID, ActionRequest{Type: ActionInstallmentsChanged, Count: 3})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "no plan yet")

	rec = env.act(t, s.ID, ActionRequest{Type: ActionPlanSelected, Plan: "1año"})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[SessionDTO](t, rec).View
	assert.Equal(t, 7, v.Installments.Value)
	assert.Equal(t, "Cuotas (7-12):", v.Installments.Label)

	rec = env.act(t, s.ID, ActionRequest{Type: ActionDateFieldChanged, Field: "year", Value: 2026})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.act(t, s.ID, ActionRequest{Type: ActionDateFieldChanged, Field: "month", Value: 9})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "September 2026 is past")
}

func TestConfirm_WithoutDate(t *testing.T) {
	// GIVEN: Large debt with the cash plan and no date
	// WHEN: Confirm is pressed
	// THEN: 422 with the select-date message, nothing sent
	env := newTestEnv(t)
	s := env.createSession(t, largeDebtQuery)
	require.Equal(t, http.StatusOK, env.act(t, s.ID, ActionRequest{Type: ActionPlanSelected, Plan: "contado"}).Code)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/confirm", nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "INVALID_DATE", body.Code)
	view := body.session(t).View
	assert.Equal(t, quote.MsgSelectDate, view.DateMessage)
	assert.False(t, view.Confirm.Enabled)
	assert.Zero(t, env.hookHits.Load())
}

func TestConfirm_WebhookFailureThenRetry(t *testing.T) {
	// GIVEN: A complete small-debt session and a webhook answering 503
	// WHEN: Confirm is pressed
	// THEN: 502, status "Error: HTTP 503: Service Unavailable", confirm re-enabled;
	//       after the webhook recovers a retry confirms the agreement
	env := newTestEnv(t)
	env.hookStatus.Store(http.StatusServiceUnavailable)
	s := env.createSession(t, smallDebtQuery)
	env.pickDate(t, s.ID, 2026, 10, 20)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/confirm", nil)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "SUBMISSION_FAILED", body.Code)
	view := body.session(t).View
	require.NotNil(t, view.Status)
	assert.Equal(t, "Error: HTTP 503: Service Unavailable", view.Status.Text)
	assert.True(t, view.Confirm.Enabled)
	assert.Equal(t, quote.LabelRetry, view.Confirm.Label)

	env.hookStatus.Store(http.StatusOK)
	rec = env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/confirm", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	confirmed := decode[SessionDTO](t, rec)
	assert.Equal(t, quote.PhaseConfirmed, confirmed.View.Phase)
	assert.Equal(t, quote.LabelConfirmed, confirmed.View.Confirm.Label)
	assert.Equal(t, 2, confirmed.Attempts)
	assert.Equal(t, int32(2), env.hookHits.Load())

	rec = env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/deliveries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deliveries := decode[[]DeliveryDTO](t, rec)
	require.Len(t, deliveries, 2)
	outcomes := []string{deliveries[0].Outcome, deliveries[1].Outcome}
	assert.ElementsMatch(t, []string{"success", "failure"}, outcomes)

	rec = env.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/deliveries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	attempts := decode[[]DeliveryDTO](t, rec)
	require.Len(t, attempts, 2)
	assert.Equal(t, "failure", attempts[0].Outcome, "oldest first")
	assert.Equal(t, "success", attempts[1].Outcome)
}

func TestListSessionDeliveries(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSession(t, smallDebtQuery)

	rec := env.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/deliveries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]DeliveryDTO](t, rec))

	rec = env.do(t, http.MethodGet, "/api/sessions/missing/deliveries", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[errorBody](t, rec).Code)

	env.handler.Deliveries = nil
	rec = env.do(t, http.MethodGet, "/api/sessions/"+s.ID+"/deliveries", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirm_WebhookUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	env.target.Set("")
	s := env.createSession(t, smallDebtQuery)
	env.pickDate(t, s.ID, 2026, 12, 1)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+s.ID+"/confirm", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "WEBHOOK_UNCONFIGURED", decode[errorBody](t, rec).Code)
	assert.Zero(t, env.hookHits.Load())
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t, smallDebtQuery)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.handler.Checks["redis"] = func(_ context.Context) error { return errors.New("connection refused") }
	rec = env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "connection refused", decode[HealthResponse](t, rec).Checks["redis"])

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `quoter_sessions_created_total{class="small"} 1`))
}

func TestListDeliveries_Disabled(t *testing.T) {
	env := newTestEnv(t)
	env.handler.Deliveries = nil

	rec := env.do(t, http.MethodGet, "/api/deliveries", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env = newTestEnv(t)
	rec = env.do(t, http.MethodGet, "/api/deliveries?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
