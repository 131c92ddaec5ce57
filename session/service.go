/*
service.go - Session lifecycle

PURPOSE:
  Creates sessions from query parameters and applies quote actions to them.
  Confirm drives the whole submission: validate, build the payload, post it,
  and record the outcome.

LOCKING:
  Every read-modify-write of a session holds that session's lock. Confirm
  holds it twice: once to move Editing -> Submitting and snapshot the
  payload, and again to apply the outcome. The webhook call itself runs
  unlocked, so a second Confirm during the call sees Submitting and fails
  with quote.ErrSubmissionInFlight without sending anything.

  Locks are striped by session ID and only serialise within one process.

RECOVERY:
  The webhook call runs detached from the request context and is bounded by
  SubmitLease. If the outcome cannot be stored, the session stays Submitting
  until the lease runs out; after that any action first moves it back to
  Editing with ErrSubmissionAbandoned as the status, so the user can retry.

SEE ALSO:
  - quote/engine.go: Update and the phase machine
  - webhook/submitter.go: Submitter
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/settlement-quoter/calendar"
	"github.com/warp/settlement-quoter/metrics"
	"github.com/warp/settlement-quoter/quote"
)

const (
	lockStripes = 64

	// DefaultSubmitLease bounds one webhook call plus storing its outcome.
	DefaultSubmitLease = time.Minute

	outcomeWriteAttempts = 3
)

// ErrSubmissionAbandoned is the status of a submission whose outcome was never
// stored before its lease ran out.
var ErrSubmissionAbandoned = errors.New("previous submission did not complete")

// Submitter delivers an agreement payload.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, payload any) error
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Location   *time.Location
	YearsAhead int
	Now        func() time.Time
	Logger     *zap.Logger
	Metrics    *metrics.Metrics

	// SubmitLease is how long a session may stay Submitting before it is
	// considered abandoned.
	SubmitLease time.Duration
}

type Service struct {
	store     Store
	submitter Submitter
	loc       *time.Location
	years     int
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics
	lease     time.Duration

	locks [lockStripes]sync.Mutex
}

func NewService(store Store, submitter Submitter, opts Options) *Service {
	svc := &Service{
		store:     store,
		submitter: submitter,
		loc:       opts.Location,
		years:     opts.YearsAhead,
		now:       opts.Now,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		lease:     opts.SubmitLease,
	}
	if svc.loc == nil {
		svc.loc = time.Local
	}
	if svc.years <= 0 {
		svc.years = calendar.DefaultYearsAhead
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.lease <= 0 {
		svc.lease = DefaultSubmitLease
	}
	return svc
}

// Rules anchors the date picker on today in the configured location.
func (svc *Service) Rules() calendar.Rules {
	return calendar.NewRules(svc.now(), svc.loc, svc.years)
}

func (svc *Service) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	mu := &svc.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// =============================================================================
// CREATE / GET
// =============================================================================

// Create validates the query parameters and opens a session.
func (svc *Service) Create(ctx context.Context, values url.Values, originURL string) (*Session, error) {
	debt, err := quote.ParseParams(values)
	if err != nil {
		return nil, err
	}

	now := svc.now()
	sess := &Session{
		ID:        uuid.NewString(),
		State:     quote.NewState(debt),
		OriginURL: originURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := svc.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	svc.metrics.SessionCreated(string(sess.State.Class()))
	svc.logger.Info("session created",
		zap.String("op", "session.create"),
		zap.String("session_id", sess.ID),
		zap.String("class", string(sess.State.Class())),
	)
	return sess, nil
}

func (svc *Service) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := svc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return svc.recoverAbandoned(sess), nil
}

// =============================================================================
// ACTIONS
// =============================================================================

// Apply runs one edit action. ConfirmPressed is routed to Confirm; submission
// outcomes are internal and rejected.
func (svc *Service) Apply(ctx context.Context, id string, action quote.Action) (*Session, error) {
	switch action.(type) {
	case quote.ConfirmPressed:
		return svc.Confirm(ctx, id)
	case quote.SubmissionSucceeded, quote.SubmissionFailed:
		return nil, fmt.Errorf("%w: %s", quote.ErrUnknownAction, quote.ActionName(action))
	}

	unlock := svc.lock(id)
	defer unlock()

	sess, err := svc.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess = svc.recoverAbandoned(sess)

	next, err := quote.Update(sess.State, action, svc.Rules())
	svc.metrics.ActionApplied(quote.ActionName(action), err)
	if err != nil {
		return sess, err
	}
	return svc.save(ctx, sess, next)
}

// =============================================================================
// CONFIRM
// =============================================================================

// Confirm validates the session, posts the agreement and records the outcome.
// The returned error is the submitter's, even when storing the outcome failed
// as well; that failure is logged and the returned session shows the outcome.
func (svc *Service) Confirm(ctx context.Context, id string) (*Session, error) {
	sess, payload, err := svc.beginSubmission(ctx, id)
	if err != nil {
		return sess, err
	}

	// The delivery and its outcome outlive the caller; a disconnect must not
	// cancel a POST that may already have landed.
	detached := context.WithoutCancel(ctx)
	submitCtx, cancel := context.WithTimeout(detached, svc.lease)
	submitErr := svc.submitter.Submit(submitCtx, id, payload)
	cancel()

	sess, err = svc.finishSubmission(detached, sess, submitErr)
	if err != nil {
		svc.logger.Error("agreement outcome not stored",
			zap.String("op", "session.confirm"),
			zap.String("session_id", id),
			zap.NamedError("submit_error", submitErr),
			zap.Error(err),
		)
	}
	return sess, submitErr
}

func (svc *Service) beginSubmission(ctx context.Context, id string) (*Session, quote.AgreementPayload, error) {
	unlock := svc.lock(id)
	defer unlock()

	sess, err := svc.store.Get(ctx, id)
	if err != nil {
		return nil, quote.AgreementPayload{}, err
	}
	sess = svc.recoverAbandoned(sess)

	rules := svc.Rules()
	next, err := quote.Update(sess.State, quote.ConfirmPressed{}, rules)
	svc.metrics.ActionApplied(quote.ActionName(quote.ConfirmPressed{}), err)
	if err != nil {
		if quote.IsDateError(err) {
			// Keep the inline date message for the next render.
			if saved, saveErr := svc.save(ctx, sess, next); saveErr == nil {
				sess = saved
			}
		}
		return sess, quote.AgreementPayload{}, err
	}

	payload, err := quote.BuildPayload(next, rules, quote.PayloadMeta{Now: svc.now(), OriginURL: sess.OriginURL})
	if err != nil {
		return sess, quote.AgreementPayload{}, err
	}

	sess, err = svc.save(ctx, sess, next)
	if err != nil {
		return nil, quote.AgreementPayload{}, err
	}
	return sess, payload, nil
}

// finishSubmission applies the outcome to the stored session. When the store
// cannot be read, the outcome is applied to started, the session as it was
// saved at the start of the call, so the caller still gets an accurate view.
func (svc *Service) finishSubmission(ctx context.Context, started *Session, submitErr error) (*Session, error) {
	unlock := svc.lock(started.ID)
	defer unlock()

	var outcome quote.Action = quote.SubmissionSucceeded{}
	if submitErr != nil {
		outcome = quote.SubmissionFailed{Err: submitErr}
	}

	if submitErr != nil {
		svc.logger.Warn("agreement submission failed",
			zap.String("op", "session.confirm"),
			zap.String("session_id", started.ID),
			zap.Int("attempt", started.State.Attempts),
			zap.Error(submitErr),
		)
	} else {
		svc.logger.Info("agreement confirmed",
			zap.String("op", "session.confirm"),
			zap.String("session_id", started.ID),
			zap.Int("attempt", started.State.Attempts),
		)
	}

	var lastErr error
	for attempt := 1; attempt <= outcomeWriteAttempts; attempt++ {
		sess, err := svc.store.Get(ctx, started.ID)
		if err != nil {
			lastErr = err
			if errors.Is(err, ErrSessionNotFound) {
				break
			}
			continue
		}

		next, err := quote.Update(sess.State, outcome, svc.Rules())
		svc.metrics.ActionApplied(quote.ActionName(outcome), err)
		if err != nil {
			return sess, err
		}

		saved, err := svc.save(ctx, sess, next)
		if err == nil {
			return saved, nil
		}
		lastErr = err
		svc.logger.Warn("storing submission outcome failed",
			zap.String("op", "session.confirm"),
			zap.String("session_id", started.ID),
			zap.Int("write_attempt", attempt),
			zap.Error(err),
		)
	}

	view := *started
	if next, err := quote.Update(started.State, outcome, svc.Rules()); err == nil {
		view.State = next
	}
	return &view, lastErr
}

// recoverAbandoned moves a session whose submission lease ran out back to
// Editing. The caller holds the session lock and persists the result with its
// own change.
func (svc *Service) recoverAbandoned(sess *Session) *Session {
	if sess.State.Phase != quote.PhaseSubmitting || svc.now().Sub(sess.UpdatedAt) < svc.lease {
		return sess
	}
	next, err := quote.Update(sess.State, quote.SubmissionFailed{Err: ErrSubmissionAbandoned}, svc.Rules())
	if err != nil {
		return sess
	}
	svc.logger.Warn("abandoned submission released",
		zap.String("op", "session.recover"),
		zap.String("session_id", sess.ID),
		zap.Time("submitting_since", sess.UpdatedAt),
	)
	recovered := *sess
	recovered.State = next
	return &recovered
}

func (svc *Service) save(ctx context.Context, sess *Session, next quote.State) (*Session, error) {
	updated := *sess
	updated.State = next
	updated.UpdatedAt = svc.now()
	if err := svc.store.Save(ctx, &updated); err != nil {
		return sess, err
	}
	return &updated, nil
}
