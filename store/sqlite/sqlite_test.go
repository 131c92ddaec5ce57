package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-quoter/store/sqlite"
	"github.com/warp/settlement-quoter/webhook"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordDelivery_ListNewestFirst(t *testing.T) {
	// GIVEN: Three attempts across two sessions
	// WHEN: Listing recent deliveries
	// THEN: Newest first, fields round-trip
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordDelivery(ctx, webhook.Delivery{
		ID: "d1", SessionID: "s1", TargetHost: "hooks.example", StatusCode: 503,
		Outcome: "failure", Error: "HTTP 503: Service Unavailable",
		Duration: 120 * time.Millisecond, AttemptedAt: base,
	}))
	require.NoError(t, store.RecordDelivery(ctx, webhook.Delivery{
		ID: "d2", SessionID: "s1", TargetHost: "hooks.example", StatusCode: 200,
		Outcome: "success", Duration: 80 * time.Millisecond, AttemptedAt: base.Add(time.Minute),
	}))
	require.NoError(t, store.RecordDelivery(ctx, webhook.Delivery{
		ID: "d3", SessionID: "s2", TargetHost: "tu-webhook-n8n.com",
		Outcome: "unconfigured", Error: "webhook URL not configured", AttemptedAt: base.Add(2 * time.Minute),
	}))

	got, err := store.ListDeliveries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"d3", "d2", "d1"}, []string{got[0].ID, got[1].ID, got[2].ID})

	assert.Zero(t, got[0].StatusCode)
	assert.Equal(t, 503, got[2].StatusCode)
	assert.Equal(t, "HTTP 503: Service Unavailable", got[2].Error)
	assert.Equal(t, 120*time.Millisecond, got[2].Duration)
	assert.True(t, base.Equal(got[2].AttemptedAt))

	limited, err := store.ListDeliveries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "d3", limited[0].ID)
}

func TestListSessionDeliveries(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b"} {
		require.NoError(t, store.RecordDelivery(ctx, webhook.Delivery{
			ID: id, SessionID: "s1", Outcome: "failure", AttemptedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, store.RecordDelivery(ctx, webhook.Delivery{ID: "c", SessionID: "s2", Outcome: "success", AttemptedAt: base}))

	got, err := store.ListSessionDeliveries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestRecordDelivery_DuplicateID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	d := webhook.Delivery{ID: "dup", SessionID: "s", Outcome: "success", AttemptedAt: time.Now()}

	require.NoError(t, store.RecordDelivery(ctx, d))
	assert.Error(t, store.RecordDelivery(ctx, d))
}
