// Package offline implements the durable bounded FIFO of mutating
// operations deferred while connectivity is down. Entries are replayed in
// order when connectivity returns, each with its own retry budget.
package offline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"tableorder/internal/common/logger"
	"tableorder/internal/domain"
	"tableorder/internal/storage"
)

// Dispatcher performs the backend operation for one queued request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req domain.QueuedRequest) error
}

type DispatcherFunc func(ctx context.Context, req domain.QueuedRequest) error

func (f DispatcherFunc) Dispatch(ctx context.Context, req domain.QueuedRequest) error {
	return f(ctx, req)
}

type Config struct {
	Key        string // storage key for the persisted queue
	Capacity   int    // oldest entries are evicted first beyond this
	MaxRetries int
	Delay      time.Duration // pause between replayed entries
}

// Queue is the offline request queue. Add and Process are safe for
// concurrent use; concurrent Process invocations are no-ops while one is
// already running.
type Queue struct {
	store    storage.Store
	lg       *logger.Logger
	dispatch Dispatcher
	cfg      Config

	mu         sync.Mutex
	entries    []domain.QueuedRequest
	processing bool
	online     bool
}

func NewQueue(store storage.Store, lg *logger.Logger, d Dispatcher, cfg Config) *Queue {
	if cfg.Key == "" {
		cfg.Key = "offline_queue"
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Queue{store: store, lg: lg, dispatch: d, cfg: cfg, online: true}
}

// Load restores the persisted queue from storage.
func (q *Queue) Load(ctx context.Context) error {
	raw, err := q.store.Get(ctx, q.cfg.Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var entries []domain.QueuedRequest
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		// a corrupted queue is dropped, not repaired
		q.lg.Error("offline_queue_corrupted", err, nil)
		return q.store.Remove(ctx, q.cfg.Key)
	}
	q.mu.Lock()
	q.entries = entries
	q.mu.Unlock()
	return nil
}

// Add appends a request, evicting the oldest entries if the queue is full,
// then persists the whole queue.
func (q *Queue) Add(ctx context.Context, t domain.RequestType, payload any) (domain.QueuedRequest, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.QueuedRequest{}, err
	}
	req := domain.QueuedRequest{
		ID:         uuid.New().String(),
		Type:       t,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
		MaxRetries: q.cfg.MaxRetries,
	}
	q.mu.Lock()
	for len(q.entries) >= q.cfg.Capacity {
		q.lg.Warn("offline_queue_evicted", map[string]any{"id": q.entries[0].ID, "type": q.entries[0].Type})
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, req)
	q.persistLocked(ctx)
	q.mu.Unlock()
	return req, nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// SetOnline records a connectivity transition. Going offline only flips the
// flag; coming back online kicks off a replay.
func (q *Queue) SetOnline(ctx context.Context, online bool) {
	q.mu.Lock()
	wasOnline := q.online
	q.online = online
	q.mu.Unlock()
	if online && !wasOnline {
		go q.Process(ctx)
	}
}

// Watch feeds browser-style connectivity transitions into the queue until
// ctx is cancelled or the channel closes.
func (q *Queue) Watch(ctx context.Context, transitions <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-transitions:
			if !ok {
				return
			}
			q.SetOnline(ctx, online)
		}
	}
}

// Process replays a snapshot of the queue in order. Each entry is removed
// on success; on failure its retry count grows and it is dropped once the
// budget is exhausted. A fixed delay separates entries so replay does not
// burst the backend. Re-entrant calls return immediately.
func (q *Queue) Process(ctx context.Context) {
	q.mu.Lock()
	if q.processing {
		q.mu.Unlock()
		return
	}
	q.processing = true
	snapshot := make([]domain.QueuedRequest, len(q.entries))
	copy(snapshot, q.entries)
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.mu.Unlock()
	}()

	for i, req := range snapshot {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && q.cfg.Delay > 0 {
			t := time.NewTimer(q.cfg.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		err := q.dispatch.Dispatch(ctx, req)
		q.mu.Lock()
		if err == nil {
			q.removeLocked(req.ID)
			q.persistLocked(ctx)
			q.mu.Unlock()
			continue
		}
		q.lg.Error("offline_replay_failed", err, map[string]any{"id": req.ID, "type": req.Type})
		if e := q.findLocked(req.ID); e != nil {
			e.RetryCount++
			if e.RetryCount >= e.MaxRetries {
				q.lg.Warn("offline_request_dropped", map[string]any{"id": req.ID, "type": req.Type, "retries": e.RetryCount})
				q.removeLocked(req.ID)
			}
			q.persistLocked(ctx)
		}
		q.mu.Unlock()
	}
}

func (q *Queue) findLocked(id string) *domain.QueuedRequest {
	for i := range q.entries {
		if q.entries[i].ID == id {
			return &q.entries[i]
		}
	}
	return nil
}

func (q *Queue) removeLocked(id string) {
	for i := range q.entries {
		if q.entries[i].ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

func (q *Queue) persistLocked(ctx context.Context) {
	if len(q.entries) == 0 {
		if err := q.store.Remove(ctx, q.cfg.Key); err != nil {
			q.lg.Error("offline_queue_persist_failed", err, nil)
		}
		return
	}
	raw, err := json.Marshal(q.entries)
	if err != nil {
		q.lg.Error("offline_queue_persist_failed", err, nil)
		return
	}
	if err := q.store.Set(ctx, q.cfg.Key, string(raw), 0); err != nil {
		q.lg.Error("offline_queue_persist_failed", err, nil)
	}
}
