/*
sweeper.go - Idle session expiry

PURPOSE:
  Periodically removes sessions that have not been touched for MaxIdle. Only
  the memory backend needs it: Redis expires keys on its own.

CONFIGURATION:
  - Interval: How often to sweep (default: 5 minutes)
  - MaxIdle:  Age after which an untouched session is removed (default: 2 hours)

USAGE:
  sweeper := NewSweeper(store, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()
*/
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Sweeper struct {
	Store    Store
	Interval time.Duration
	MaxIdle  time.Duration
	Logger   *zap.Logger
	Now      func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSweeper(store Store, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		Store:    store,
		Interval: 5 * time.Minute,
		MaxIdle:  2 * time.Hour,
		Logger:   logger,
		Now:      time.Now,
	}
}

// Start begins sweeping. Calling Start twice is a no-op.
func (sw *Sweeper) Start() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker != nil {
		return
	}
	sw.ticker = time.NewTicker(sw.Interval)
	sw.stop = make(chan struct{})
	sw.wg.Add(1)

	go sw.run(sw.ticker, sw.stop)

	sw.Logger.Info("session sweeper started",
		zap.Duration("interval", sw.Interval),
		zap.Duration("max_idle", sw.MaxIdle),
	)
}

// Stop stops the sweeper and waits for an in-progress sweep.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker == nil {
		return
	}
	sw.ticker.Stop()
	close(sw.stop)
	sw.wg.Wait()
	sw.ticker = nil
	sw.Logger.Info("session sweeper stopped")
}

func (sw *Sweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer sw.wg.Done()

	for {
		select {
		case <-ticker.C:
			sw.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow sweeps immediately and returns the number of sessions removed.
func (sw *Sweeper) RunNow(ctx context.Context) int {
	removed, err := sw.Store.Sweep(ctx, sw.Now().Add(-sw.MaxIdle))
	if err != nil {
		sw.Logger.Error("session sweep failed", zap.String("op", "session.sweep"), zap.Error(err))
		return 0
	}
	if removed > 0 {
		sw.Logger.Info("expired idle sessions", zap.String("op", "session.sweep"), zap.Int("removed", removed))
	}
	return removed
}
