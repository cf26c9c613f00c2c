package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"tableorder/internal/common/logger"
	"tableorder/internal/domain"
	"tableorder/internal/retry"
)

// Status is the connection state of a channel, rendered per realtime-backed
// view as the connection indicator.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Transport delivers the raw event stream for one connection attempt.
// Connect blocks until the subscription is acknowledged; afterwards events
// arrive on the first channel and a single fatal error on the second.
type Transport interface {
	Connect(ctx context.Context) (<-chan domain.ChangeEvent, <-chan error, error)
	Close() error
}

type Options struct {
	MaxReconnects int           // reconnection attempts before giving up
	BaseDelay     time.Duration // first backoff step
	OnStatus      func(Status)  // optional status-change hook
}

// Channel multiplexes one realtime connection for a domain (menu, orders,
// one order, restaurant status) to any number of listeners. Lost
// connections are re-dialed with exponential backoff until the attempt
// budget runs out, at which point the channel parks in a terminal error
// state.
type Channel struct {
	name      string
	transport Transport
	lg        *logger.Logger
	opts      Options

	mu         sync.RWMutex
	listeners  map[string]map[int]func(domain.ChangeEvent)
	nextToken  int
	status     Status
	attempts   int
	lastUpdate time.Time
	lastErr    error
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewChannel(name string, t Transport, lg *logger.Logger, opts Options) *Channel {
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	return &Channel{
		name:      name,
		transport: t,
		lg:        lg,
		opts:      opts,
		listeners: make(map[string]map[int]func(domain.ChangeEvent)),
		status:    StatusDisconnected,
	}
}

// Subscribe registers fn under key; "*" matches every event, otherwise the
// key is compared against the event type and the source table. The returned
// function removes exactly this registration and is safe to call more than
// once.
func (c *Channel) Subscribe(key string, fn func(domain.ChangeEvent)) func() {
	c.mu.Lock()
	token := c.nextToken
	c.nextToken++
	bucket, ok := c.listeners[key]
	if !ok {
		bucket = make(map[int]func(domain.ChangeEvent))
		c.listeners[key] = bucket
	}
	bucket[token] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			if bucket, ok := c.listeners[key]; ok {
				delete(bucket, token)
				if len(bucket) == 0 {
					delete(c.listeners, key)
				}
			}
			c.mu.Unlock()
		})
	}
}

// Open starts the connection loop. It returns immediately; progress is
// visible through Status and the OnStatus hook.
func (c *Channel) Open(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()
	go c.run(runCtx)
}

// Close tears the connection down and drops every listener. No reconnection
// is attempted after an explicit close.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.listeners = make(map[string]map[int]func(domain.ChangeEvent))
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	_ = c.transport.Close()
	c.setStatus(StatusDisconnected)
}

func (c *Channel) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Err returns the terminal error after the reconnect budget is exhausted.
func (c *Channel) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastUpdate is the arrival time of the most recent event.
func (c *Channel) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

func (c *Channel) ReconnectAttempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	for {
		c.setStatus(StatusConnecting)
		events, errs, err := c.transport.Connect(ctx)
		if err == nil {
			c.setStatus(StatusConnected)
			c.mu.Lock()
			c.attempts = 0
			c.mu.Unlock()
			err = c.pump(ctx, events, errs)
		}
		if ctx.Err() != nil {
			c.setStatus(StatusDisconnected)
			return
		}

		c.mu.Lock()
		c.attempts++
		attempts := c.attempts
		c.mu.Unlock()
		if attempts > c.opts.MaxReconnects {
			c.mu.Lock()
			c.lastErr = err
			c.mu.Unlock()
			c.setStatus(StatusError)
			c.lg.Error("realtime_gave_up", err, map[string]any{"channel": c.name, "attempts": attempts - 1})
			return
		}
		c.setStatus(StatusError)
		delay := retry.Backoff(attempts-1, c.opts.BaseDelay)
		c.lg.Warn("realtime_reconnecting", map[string]any{"channel": c.name, "attempt": attempts, "delay": delay.String()})
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			c.setStatus(StatusDisconnected)
			return
		case <-t.C:
		}
	}
}

// pump delivers events until the stream fails or ctx is cancelled.
func (c *Channel) pump(ctx context.Context, events <-chan domain.ChangeEvent, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errors.New("event stream closed")
			}
			c.dispatch(ev)
		case err := <-errs:
			return err
		}
	}
}

func (c *Channel) dispatch(ev domain.ChangeEvent) {
	c.mu.Lock()
	c.lastUpdate = time.Now()
	var fns []func(domain.ChangeEvent)
	for _, key := range []string{"*", string(ev.Type), ev.Table} {
		for _, fn := range c.listeners[key] {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Channel) setStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	hook := c.opts.OnStatus
	c.mu.Unlock()
	if changed && hook != nil {
		hook(s)
	}
}
