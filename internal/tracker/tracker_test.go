package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableorder/internal/apperr"
	"tableorder/internal/common/logger"
	"tableorder/internal/domain"
	"tableorder/internal/realtime"
)

const orderNumber = "ORD_20260829_001"

// pushTransport hands out the same event/error pair on every connect, or
// refuses to connect at all when broken.
type pushTransport struct {
	mu     sync.Mutex
	broken bool
	events chan domain.ChangeEvent
	errs   chan error
}

func newPushTransport() *pushTransport {
	return &pushTransport{
		events: make(chan domain.ChangeEvent, 8),
		errs:   make(chan error, 1),
	}
}

func (p *pushTransport) Connect(_ context.Context) (<-chan domain.ChangeEvent, <-chan error, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broken {
		return nil, nil, errors.New("dial refused")
	}
	return p.events, p.errs, nil
}

func (p *pushTransport) Close() error { return nil }

type countingFetcher struct {
	calls  atomic.Int64
	status domain.OrderStatus
	err    error
}

func (f *countingFetcher) FetchStatus(context.Context, string) (domain.OrderStatus, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.status, nil
}

func statusEvent(typ domain.EventType, number string, status domain.OrderStatus) domain.ChangeEvent {
	return domain.ChangeEvent{
		Type:  typ,
		Table: "orders",
		New:   map[string]any{"number": number, "status": string(status)},
		At:    time.Now(),
	}
}

func startTracker(t *testing.T, tp realtime.Transport, fetch StatusFetcher, interval time.Duration) *Tracker {
	t.Helper()
	lg := logger.Discard()
	ch := realtime.NewChannel("orders", tp, lg, realtime.Options{MaxReconnects: 2, BaseDelay: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch.Open(ctx)
	t.Cleanup(ch.Close)

	tr := New(orderNumber, ch, fetch, interval, lg)
	tr.Start(ctx)
	t.Cleanup(tr.Stop)
	return tr
}

func TestPushEventAdvancesStatus(t *testing.T) {
	tp := newPushTransport()
	fetch := &countingFetcher{status: domain.StatusPending}
	tr := startTracker(t, tp, fetch, time.Hour)

	var seen []domain.OrderStatus
	var mu sync.Mutex
	tr.OnChange(func(s domain.OrderStatus) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		return tr.ConnectionStatus() == realtime.StatusConnected
	}, time.Second, 5*time.Millisecond)

	tp.events <- statusEvent(domain.EventUpdate, orderNumber, domain.StatusPreparing)
	tp.events <- statusEvent(domain.EventUpdate, "ORD_20260829_099", domain.StatusServed)
	tp.events <- statusEvent(domain.EventUpdate, orderNumber, domain.StatusReady)

	require.Eventually(t, func() bool {
		return tr.Status() == domain.StatusReady
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []domain.OrderStatus{domain.StatusPreparing, domain.StatusReady}, seen)
	mu.Unlock()
	assert.InDelta(t, 0.6, tr.Progress(), 0.001)
}

func TestNoPollingWhileConnected(t *testing.T) {
	tp := newPushTransport()
	fetch := &countingFetcher{status: domain.StatusPreparing}
	tr := startTracker(t, tp, fetch, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return tr.ConnectionStatus() == realtime.StatusConnected
	}, time.Second, 5*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, fetch.calls.Load())
	assert.Equal(t, domain.StatusPending, tr.Status())
}

// stuckTransport never completes a dial before its context ends.
type stuckTransport struct{}

func (stuckTransport) Connect(ctx context.Context) (<-chan domain.ChangeEvent, <-chan error, error) {
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

func (stuckTransport) Close() error { return nil }

func TestNoPollingWhileConnecting(t *testing.T) {
	fetch := &countingFetcher{status: domain.StatusPreparing}
	tr := startTracker(t, stuckTransport{}, fetch, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return tr.ConnectionStatus() == realtime.StatusConnecting
	}, time.Second, 5*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, fetch.calls.Load())
	assert.Equal(t, domain.StatusPending, tr.Status())
}

func TestPollFallbackWhileDegraded(t *testing.T) {
	tp := newPushTransport()
	tp.broken = true
	fetch := &countingFetcher{status: domain.StatusPreparing}
	tr := startTracker(t, tp, fetch, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return tr.Status() == domain.StatusPreparing
	}, time.Second, 5*time.Millisecond)
	assert.Positive(t, fetch.calls.Load())
}

func TestDeleteEventMarksOrderGone(t *testing.T) {
	tp := newPushTransport()
	fetch := &countingFetcher{status: domain.StatusPending}
	tr := startTracker(t, tp, fetch, time.Hour)

	require.Eventually(t, func() bool {
		return tr.ConnectionStatus() == realtime.StatusConnected
	}, time.Second, 5*time.Millisecond)

	tp.events <- domain.ChangeEvent{
		Type:  domain.EventDelete,
		Table: "orders",
		Old:   map[string]any{"number": orderNumber},
		At:    time.Now(),
	}

	require.Eventually(t, func() bool {
		return tr.Err() != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, apperr.CodeOrderNotFound, apperr.GetInfo(tr.Err()).Code)
}

func TestManualRefresh(t *testing.T) {
	tp := newPushTransport()
	fetch := &countingFetcher{status: domain.StatusServed}
	tr := startTracker(t, tp, fetch, time.Hour)

	require.NoError(t, tr.Refresh(context.Background()))
	assert.Equal(t, domain.StatusServed, tr.Status())
	assert.EqualValues(t, 1, fetch.calls.Load())
}

func TestRefreshSurfacesNotFound(t *testing.T) {
	tp := newPushTransport()
	fetch := &countingFetcher{err: apperr.New(apperr.CodeOrderNotFound)}
	tr := startTracker(t, tp, fetch, time.Hour)

	err := tr.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeOrderNotFound, apperr.GetInfo(tr.Err()).Code)
}
