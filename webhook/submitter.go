/*
submitter.go - Agreement delivery to the webhook

PURPOSE:
  Sends one agreement as a single JSON POST. There is no automatic retry and
  no backoff: a failed delivery is reported to the caller, who re-enables the
  confirm control so the user can resubmit by hand.

FAILURE SEMANTICS:
  - Target unset or placeholder -> ErrWebhookUnconfigured, nothing is sent
  - Transport error             -> *SubmissionError{Err}
  - Non-2xx response            -> *SubmissionError{StatusCode, StatusText}
                                   message "HTTP 503: Service Unavailable"

DELIVERY LOG:
  Every attempt (including unconfigured aborts) is handed to the optional
  DeliveryRecorder with metadata only: the agreement body is never stored.

SEE ALSO:
  - quote/payload.go: AgreementPayload
  - store/sqlite: DeliveryRecorder implementation
*/
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/settlement-quoter/metrics"
)

// =============================================================================
// DELIVERY RECORDS
// =============================================================================

// Delivery describes one submission attempt.
type Delivery struct {
	ID          string
	SessionID   string
	TargetHost  string
	StatusCode  int
	Outcome     string
	Error       string
	Duration    time.Duration
	AttemptedAt time.Time
}

// DeliveryRecorder persists delivery attempts.
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, d Delivery) error
}

// =============================================================================
// SUBMITTER
// =============================================================================

type Submitter struct {
	Target   *Target
	Client   *http.Client
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Recorder DeliveryRecorder // optional
	Now      func() time.Time
}

// NewSubmitter creates a submitter posting to target.
func NewSubmitter(target *Target, timeout time.Duration, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		Target: target,
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
		Now:    time.Now,
	}
}

// Submit posts payload to the current target.
func (s *Submitter) Submit(ctx context.Context, sessionID string, payload any) error {
	target := s.Target.URL()
	start := s.now()
	d := Delivery{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		TargetHost:  hostOf(target),
		AttemptedAt: start,
	}

	if !IsConfigured(target) {
		d.Outcome = metrics.OutcomeUnconfigured
		d.Error = ErrWebhookUnconfigured.Error()
		s.finish(ctx, d)
		return ErrWebhookUnconfigured
	}

	err := s.post(ctx, target, payload, &d)
	d.Duration = s.now().Sub(start)
	if err != nil {
		d.Outcome = metrics.OutcomeFailure
		d.Error = err.Error()
	} else {
		d.Outcome = metrics.OutcomeSuccess
	}
	s.finish(ctx, d)
	return err
}

func (s *Submitter) post(ctx context.Context, target string, payload any, d *Delivery) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode agreement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return &SubmissionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return &SubmissionError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	d.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &SubmissionError{StatusCode: resp.StatusCode, StatusText: statusText(resp)}
	}
	return nil
}

func (s *Submitter) finish(ctx context.Context, d Delivery) {
	s.Metrics.Submission(d.Outcome)

	fields := []zap.Field{
		zap.String("op", "webhook.submit"),
		zap.String("delivery_id", d.ID),
		zap.String("session_id", d.SessionID),
		zap.String("target_host", d.TargetHost),
		zap.String("outcome", d.Outcome),
		zap.Int("status", d.StatusCode),
		zap.Duration("duration", d.Duration),
	}
	if d.Outcome == metrics.OutcomeSuccess {
		s.Logger.Info("agreement delivered", fields...)
	} else {
		s.Logger.Error("agreement delivery failed", append(fields, zap.String("error", d.Error))...)
	}

	if s.Recorder == nil {
		return
	}
	if err := s.Recorder.RecordDelivery(ctx, d); err != nil {
		s.Logger.Warn("failed to record delivery",
			zap.String("op", "webhook.submit"),
			zap.String("delivery_id", d.ID),
			zap.Error(err),
		)
	}
}

func (s *Submitter) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *Submitter) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// statusText prefers the reason phrase sent by the server.
func statusText(resp *http.Response) string {
	if text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); text != "" && text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
