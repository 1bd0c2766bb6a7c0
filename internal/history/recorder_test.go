package history_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrail/internal/history"
	"timetrail/internal/history/store/memory"
	dErrors "timetrail/pkg/domain-errors"
	"timetrail/pkg/requestcontext"
	"timetrail/pkg/testutil"
)

// fakeCache is an in-memory IdempotencyCache that can be told to fail.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]history.Event
	fail    bool
	lookups int
	saves   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]history.Event{}}
}

func (c *fakeCache) Lookup(_ context.Context, key string) (*history.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.fail {
		return nil, errors.New("cache down")
	}
	if event, ok := c.entries[key]; ok {
		return &event, nil
	}
	return nil, nil
}

func (c *fakeCache) Save(_ context.Context, key string, event history.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	if c.fail {
		return errors.New("cache down")
	}
	c.entries[key] = event
	return nil
}

// fakePublisher collects published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []history.Event
}

func (p *fakePublisher) Publish(event history.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func validRequest() history.RecordRequest {
	actor := testutil.NewActor()
	return history.RecordRequest{
		CompanyID:   actor.CompanyID,
		TargetType:  history.TargetTimesheetEntry,
		TargetID:    "entry-1",
		Action:      history.ActionSubmitted,
		UserID:      actor.ID,
		ActorUserID: actor.ID,
	}
}

func TestRecorderValidation(t *testing.T) {
	store := memory.New()
	recorder := history.NewRecorder(store, discardLogger())
	ctx := context.Background()

	t.Run("rejects missing identifying fields", func(t *testing.T) {
		_, err := recorder.Record(ctx, history.RecordRequest{})

		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Zero(t, store.Len(), "nothing may be stored on validation failure")
	})

	t.Run("rejects unknown target type", func(t *testing.T) {
		req := validRequest()
		req.TargetType = "Payroll"

		_, err := recorder.Record(ctx, req)

		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("whitespace target id counts as missing", func(t *testing.T) {
		req := validRequest()
		req.TargetID = "   "

		_, err := recorder.Record(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestRecorderAppend(t *testing.T) {
	store := memory.New()
	publisher := &fakePublisher{}
	recorder := history.NewRecorder(store, discardLogger(), history.WithStream(publisher))

	at := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)

	req := validRequest()
	req.Reason = "manager sign-off"
	req.Diff = map[string]any{"hours": map[string]any{"from": 7.5, "to": 8.0}}

	event, err := recorder.Record(ctx, req)

	require.NoError(t, err)
	assert.False(t, event.ID.IsNil())
	assert.Equal(t, at, event.OccurredAt, "occurred-at comes from the request clock")
	assert.Equal(t, "manager sign-off", event.Reason)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 1, publisher.count())
}

func TestRecorderIdempotentReplay(t *testing.T) {
	t.Run("retried request returns the original event", func(t *testing.T) {
		store := memory.New()
		publisher := &fakePublisher{}
		recorder := history.NewRecorder(store, discardLogger(), history.WithStream(publisher))
		ctx := context.Background()

		req := validRequest()
		req.IdempotencyKey = "test-idempotency-hash-123"

		first, err := recorder.Record(ctx, req)
		require.NoError(t, err)

		second, err := recorder.Record(ctx, req)
		require.NoError(t, err, "a replay is a success, not a conflict error")

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, store.Len(), "the log must hold exactly one row for the key")
		assert.Equal(t, 1, publisher.count(), "replays are not re-published")
	})

	t.Run("concurrent writers with one key agree on the winner", func(t *testing.T) {
		store := memory.New()
		recorder := history.NewRecorder(store, discardLogger())
		ctx := context.Background()

		req := validRequest()
		req.IdempotencyNonce = "retry-burst"

		const writers = 16
		results := make([]*history.Event, writers)
		errs := make([]error, writers)
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = recorder.Record(ctx, req)
			}(i)
		}
		wg.Wait()

		winner := results[0]
		for i := 0; i < writers; i++ {
			require.NoError(t, errs[i])
			require.NotNil(t, results[i])
			assert.Equal(t, winner.ID, results[i].ID)
		}
		assert.Equal(t, 1, store.Len())
	})

	t.Run("writes without a key are never deduplicated", func(t *testing.T) {
		store := memory.New()
		recorder := history.NewRecorder(store, discardLogger())
		ctx := context.Background()

		req := validRequest()
		first, err := recorder.Record(ctx, req)
		require.NoError(t, err)
		second, err := recorder.Record(ctx, req)
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, 2, store.Len())
	})
}

func TestRecorderCache(t *testing.T) {
	t.Run("cache hit short-circuits the store", func(t *testing.T) {
		store := memory.New()
		cache := newFakeCache()
		recorder := history.NewRecorder(store, discardLogger(), history.WithCache(cache))
		ctx := context.Background()

		req := validRequest()
		req.IdempotencyKey = "cached-key"

		first, err := recorder.Record(ctx, req)
		require.NoError(t, err)

		second, err := recorder.Record(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("cache failure falls through to the store", func(t *testing.T) {
		store := memory.New()
		cache := newFakeCache()
		cache.fail = true
		recorder := history.NewRecorder(store, discardLogger(), history.WithCache(cache))
		ctx := context.Background()

		req := validRequest()
		req.IdempotencyKey = "key-behind-broken-cache"

		first, err := recorder.Record(ctx, req)
		require.NoError(t, err, "a broken cache must not break the write path")

		second, err := recorder.Record(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID, "the store stays authoritative")
		assert.Equal(t, 1, store.Len())
	})

	t.Run("keyless writes never touch the cache", func(t *testing.T) {
		store := memory.New()
		cache := newFakeCache()
		recorder := history.NewRecorder(store, discardLogger(), history.WithCache(cache))

		_, err := recorder.Record(context.Background(), validRequest())
		require.NoError(t, err)

		assert.Zero(t, cache.lookups)
		assert.Zero(t, cache.saves)
	})
}
