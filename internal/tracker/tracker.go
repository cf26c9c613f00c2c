// Package tracker follows one order's status through two independent
// strategies: the realtime push subscription when it is healthy, and a
// pull poller while it is degraded. An arbiter keeps exactly one of the
// two active at a time.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"tableorder/internal/apperr"
	"tableorder/internal/common/logger"
	"tableorder/internal/domain"
	"tableorder/internal/realtime"
)

// StatusFetcher is the pull side: a direct fetch of the order's current
// status from the tracking service.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, orderNumber string) (domain.OrderStatus, error)
}

type StatusFetcherFunc func(ctx context.Context, orderNumber string) (domain.OrderStatus, error)

func (f StatusFetcherFunc) FetchStatus(ctx context.Context, orderNumber string) (domain.OrderStatus, error) {
	return f(ctx, orderNumber)
}

// Tracker holds the current status of one order, updated by whichever
// source reported last. While the realtime channel is connected no polling
// occurs; while it is degraded a fixed-interval poll takes over, guarded by
// a circuit breaker so a dead backend is probed rather than hammered.
type Tracker struct {
	orderNumber string
	channel     *realtime.Channel
	fetch       StatusFetcher
	interval    time.Duration
	lg          *logger.Logger
	breaker     *gobreaker.CircuitBreaker[domain.OrderStatus]

	mu       sync.Mutex
	status   domain.OrderStatus
	lastErr  error
	onChange func(domain.OrderStatus)
	unsub    func()
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(orderNumber string, ch *realtime.Channel, fetch StatusFetcher, interval time.Duration, lg *logger.Logger) *Tracker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Tracker{
		orderNumber: orderNumber,
		channel:     ch,
		fetch:       fetch,
		interval:    interval,
		lg:          lg,
		status:      domain.StatusPending,
		breaker: gobreaker.NewCircuitBreaker[domain.OrderStatus](gobreaker.Settings{
			Name:    "status-poll",
			Timeout: 30 * time.Second,
		}),
	}
}

// OnChange registers a hook invoked whenever the current status changes.
func (t *Tracker) OnChange(fn func(domain.OrderStatus)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Start subscribes to the order's realtime events and launches the poll
// fallback loop.
func (t *Tracker) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	unsub := t.channel.Subscribe("orders", func(ev domain.ChangeEvent) {
		t.handleEvent(ev)
	})
	t.mu.Lock()
	t.cancel = cancel
	t.done = make(chan struct{})
	t.unsub = unsub
	t.mu.Unlock()
	go t.pollLoop(runCtx)
}

// Stop tears down the subscription and the poll loop.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	unsub := t.unsub
	t.cancel = nil
	t.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
		<-done
	}
}

func (t *Tracker) Status() domain.OrderStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Progress reports position in the status sequence as a fraction in (0, 1].
func (t *Tracker) Progress() float64 {
	return domain.StatusProgress(t.Status())
}

// ConnectionStatus exposes the realtime channel's health for the UI
// indicator.
func (t *Tracker) ConnectionStatus() realtime.Status {
	return t.channel.Status()
}

// Err reports the terminal error, if any (order deleted server-side, or
// the realtime channel gave up and polling broke too).
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Refresh is the manual "refresh now" affordance: one immediate poll
// regardless of connection health.
func (t *Tracker) Refresh(ctx context.Context) error {
	return t.poll(ctx)
}

func (t *Tracker) handleEvent(ev domain.ChangeEvent) {
	switch ev.Type {
	case domain.EventDelete:
		if number, ok := ev.Old["number"].(string); ok && number == t.orderNumber {
			t.mu.Lock()
			t.lastErr = apperr.New(apperr.CodeOrderNotFound)
			t.mu.Unlock()
		}
	case domain.EventInsert, domain.EventUpdate:
		number, ok := ev.New["number"].(string)
		if !ok || number != t.orderNumber {
			return
		}
		if status, ok := ev.New["status"].(string); ok {
			t.setStatus(domain.OrderStatus(status))
		}
	}
}

func (t *Tracker) pollLoop(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch t.channel.Status() {
			case realtime.StatusDisconnected, realtime.StatusError:
			default:
				// connected or still connecting, stay quiet
				continue
			}
			if err := t.poll(ctx); err != nil {
				t.lg.Warn("status_poll_failed", map[string]any{"order": t.orderNumber, "error": err.Error()})
			}
		}
	}
}

func (t *Tracker) poll(ctx context.Context) error {
	status, err := t.breaker.Execute(func() (domain.OrderStatus, error) {
		return t.fetch.FetchStatus(ctx, t.orderNumber)
	})
	if err != nil {
		if apperr.GetInfo(err).Code == apperr.CodeOrderNotFound {
			t.mu.Lock()
			t.lastErr = err
			t.mu.Unlock()
		}
		return err
	}
	t.setStatus(status)
	return nil
}

func (t *Tracker) setStatus(s domain.OrderStatus) {
	t.mu.Lock()
	changed := t.status != s
	t.status = s
	hook := t.onChange
	t.mu.Unlock()
	if changed && hook != nil {
		hook(s)
	}
}
