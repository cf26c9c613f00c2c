package offline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableorder/internal/common/logger"
	"tableorder/internal/domain"
	"tableorder/internal/storage"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []domain.QueuedRequest
	fail  map[string]error // request type -> error
	block chan struct{}    // if set, Dispatch waits until closed
}

func (d *fakeDispatcher) Dispatch(_ context.Context, req domain.QueuedRequest) error {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, req)
	if d.fail != nil {
		if err, ok := d.fail[string(req.Type)]; ok {
			return err
		}
	}
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func newQueue(d Dispatcher, cfg Config) *Queue {
	return NewQueue(storage.NewMemory(), logger.Discard(), d, cfg)
}

func TestAdd_EvictsOldestBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	q := newQueue(&fakeDispatcher{}, Config{Capacity: 3, MaxRetries: 2})

	var first domain.QueuedRequest
	for i := 0; i < 3; i++ {
		req, err := q.Add(ctx, domain.RequestAddToCart, map[string]any{"i": i})
		require.NoError(t, err)
		if i == 0 {
			first = req
		}
	}
	assert.Equal(t, 3, q.Len())

	_, err := q.Add(ctx, domain.RequestSubmitOrder, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Len())

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		assert.NotEqual(t, first.ID, e.ID, "oldest entry must be evicted first")
	}
}

func TestProcess_RemovesOnSuccess(t *testing.T) {
	ctx := context.Background()
	d := &fakeDispatcher{}
	q := newQueue(d, Config{Capacity: 10})

	_, err := q.Add(ctx, domain.RequestAddToCart, map[string]string{"id": "a"})
	require.NoError(t, err)
	_, err = q.Add(ctx, domain.RequestSubmitOrder, nil)
	require.NoError(t, err)

	q.Process(ctx)
	assert.Equal(t, 2, d.count())
	assert.Equal(t, 0, q.Len())
}

func TestProcess_DropsAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	d := &fakeDispatcher{fail: map[string]error{string(domain.RequestSubmitOrder): errors.New("backend down")}}
	q := newQueue(d, Config{Capacity: 10, MaxRetries: 2})

	_, err := q.Add(ctx, domain.RequestSubmitOrder, nil)
	require.NoError(t, err)

	q.Process(ctx)
	assert.Equal(t, 1, q.Len(), "budget remains after first failure")

	q.Process(ctx)
	assert.Equal(t, 0, q.Len(), "entry dropped at maxRetries")
	assert.Equal(t, 2, d.count())
}

func TestProcess_FailureKeepsEntryAndPersists(t *testing.T) {
	ctx := context.Background()
	d := &fakeDispatcher{fail: map[string]error{string(domain.RequestAddToCart): errors.New("boom")}}
	store := storage.NewMemory()
	q := NewQueue(store, logger.Discard(), d, Config{Capacity: 10, MaxRetries: 3})

	_, err := q.Add(ctx, domain.RequestAddToCart, nil)
	require.NoError(t, err)
	q.Process(ctx)

	require.Equal(t, 1, q.Len())
	// retry count survives a reload
	q2 := NewQueue(store, logger.Discard(), d, Config{Capacity: 10, MaxRetries: 3})
	require.NoError(t, q2.Load(ctx))
	require.Equal(t, 1, q2.Len())
	q2.mu.Lock()
	assert.Equal(t, 1, q2.entries[0].RetryCount)
	q2.mu.Unlock()
}

func TestProcess_ConcurrentInvocationIsNoop(t *testing.T) {
	ctx := context.Background()
	d := &fakeDispatcher{block: make(chan struct{})}
	q := newQueue(d, Config{Capacity: 10})
	_, err := q.Add(ctx, domain.RequestAddToCart, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		q.Process(ctx)
		close(done)
	}()
	// wait for the first Process to take the in-flight flag
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.processing
	}, time.Second, time.Millisecond)

	q.Process(ctx) // must return immediately
	assert.Equal(t, 0, d.count())

	close(d.block)
	<-done
	assert.Equal(t, 1, d.count())
}

func TestSetOnline_TriggersReplayOnReconnect(t *testing.T) {
	ctx := context.Background()
	d := &fakeDispatcher{}
	q := newQueue(d, Config{Capacity: 10})

	q.SetOnline(ctx, false)
	assert.False(t, q.Online())
	_, err := q.Add(ctx, domain.RequestAddToCart, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, d.count(), "offline transition has no other side effect")

	q.SetOnline(ctx, true)
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, d.count())
}

func TestLoad_CorruptedQueueDropped(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, "offline_queue", "{nope", 0))

	q := NewQueue(store, logger.Discard(), &fakeDispatcher{}, Config{})
	require.NoError(t, q.Load(ctx))
	assert.Equal(t, 0, q.Len())
	_, err := store.Get(ctx, "offline_queue")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
