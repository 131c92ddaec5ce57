/*
Package session keeps quoting sessions between HTTP requests.

PURPOSE:
  A session is one debtor's form: the parsed DebtRecord plus every choice made
  so far (quote.State). Sessions are stored by ID and mutated only through
  Service, which applies quote actions under a per-session lock.

BACKENDS:
  - MemoryStore: process-local map, swept by Sweeper (default)
  - RedisStore:  JSON values with a TTL, for running several replicas

SEE ALSO:
  - quote/engine.go: State and Update
  - service.go:      Create / Apply / Confirm
*/
package session

import (
	"context"
	"errors"
	"time"

	"github.com/warp/settlement-quoter/quote"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// Session is one quoting form.
type Session struct {
	ID        string      `json:"id"`
	State     quote.State `json:"state"`
	OriginURL string      `json:"origin_url"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// Sweep removes sessions not updated since before and returns how many.
	Sweep(ctx context.Context, before time.Time) (int, error)
}
