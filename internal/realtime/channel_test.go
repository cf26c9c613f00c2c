package realtime

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
)

// fakeTransport scripts connection attempts: each entry in failures makes
// one Connect call fail before a successful connection is allowed.
type fakeTransport struct {
	mu       sync.Mutex
	failures int
	connects int
	events   chan domain.ChangeEvent
	errs     chan error
}

func newFakeTransport(failures int) *fakeTransport {
	return &fakeTransport{
		failures: failures,
		events:   make(chan domain.ChangeEvent, 16),
		errs:     make(chan error, 1),
	}
}

func (f *fakeTransport) Connect(context.Context) (<-chan domain.ChangeEvent, <-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connects <= f.failures {
		return nil, nil, errors.New("connection refused")
	}
	return f.events, f.errs, nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func waitStatus(t *testing.T, c *Channel, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Status() == want },
		2*time.Second, time.Millisecond, "want status %s, have %s", want, c.Status())
}

func TestChannel_SubscribeMatching(t *testing.T) {
	ft := newFakeTransport(0)
	c := NewChannel("orders", ft, logger.Discard(), Options{BaseDelay: time.Millisecond})
	c.Open(context.Background())
	defer c.Close()
	waitStatus(t, c, StatusConnected)

	var mu sync.Mutex
	got := map[string]int{}
	record := func(name string) func(domain.ChangeEvent) {
		return func(domain.ChangeEvent) {
			mu.Lock()
			got[name]++
			mu.Unlock()
		}
	}
	c.Subscribe("*", record("star"))
	c.Subscribe("UPDATE", record("by-type"))
	c.Subscribe("orders", record("by-table"))
	c.Subscribe("menu_items", record("other-table"))

	ft.events <- domain.ChangeEvent{Type: domain.EventUpdate, Table: "orders"}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got["star"] == 1 && got["by-type"] == 1 && got["by-table"] == 1
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Zero(t, got["other-table"])
	mu.Unlock()
}

func TestChannel_UnsubscribeIsIdempotent(t *testing.T) {
	ft := newFakeTransport(0)
	c := NewChannel("orders", ft, logger.Discard(), Options{})
	c.Open(context.Background())
	defer c.Close()
	waitStatus(t, c, StatusConnected)

	var mu sync.Mutex
	calls := 0
	unsub := c.Subscribe("*", func(domain.ChangeEvent) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	unsub()
	unsub() // second call must be harmless

	ft.events <- domain.ChangeEvent{Type: domain.EventInsert, Table: "orders"}
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()
}

func TestChannel_ReconnectsWithBackoff(t *testing.T) {
	ft := newFakeTransport(2)
	var mu sync.Mutex
	var transitions []Status
	c := NewChannel("orders", ft, logger.Discard(), Options{
		MaxReconnects: 5,
		BaseDelay:     time.Millisecond,
		OnStatus: func(s Status) {
			mu.Lock()
			transitions = append(transitions, s)
			mu.Unlock()
		},
	})
	c.Open(context.Background())
	defer c.Close()

	waitStatus(t, c, StatusConnected)
	assert.Equal(t, 3, ft.connectCount())
	assert.Equal(t, 0, c.ReconnectAttempts(), "attempts reset after a successful connect")

	mu.Lock()
	assert.Contains(t, transitions, StatusError)
	mu.Unlock()
}

func TestChannel_TerminalErrorAfterBudget(t *testing.T) {
	ft := newFakeTransport(1000)
	c := NewChannel("orders", ft, logger.Discard(), Options{MaxReconnects: 3, BaseDelay: time.Millisecond})
	c.Open(context.Background())
	defer c.Close()

	waitStatus(t, c, StatusError)
	require.Eventually(t, func() bool { return c.Err() != nil }, time.Second, time.Millisecond)
	// 1 initial try + 3 reconnects, then it stops for good
	count := ft.connectCount()
	assert.Equal(t, 4, count)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, count, ft.connectCount())
}

func TestChannel_StreamErrorTriggersReconnect(t *testing.T) {
	ft := newFakeTransport(0)
	c := NewChannel("orders", ft, logger.Discard(), Options{MaxReconnects: 5, BaseDelay: time.Millisecond})
	c.Open(context.Background())
	defer c.Close()
	waitStatus(t, c, StatusConnected)

	ft.errs <- errors.New("stream broke")
	require.Eventually(t, func() bool { return ft.connectCount() >= 2 }, time.Second, time.Millisecond)
	waitStatus(t, c, StatusConnected)
}

func TestChannel_CloseDisconnectsAndClearsListeners(t *testing.T) {
	ft := newFakeTransport(0)
	c := NewChannel("orders", ft, logger.Discard(), Options{})
	c.Open(context.Background())
	waitStatus(t, c, StatusConnected)

	c.Subscribe("*", func(domain.ChangeEvent) {})
	c.Close()

	assert.Equal(t, StatusDisconnected, c.Status())
	c.mu.RLock()
	assert.Empty(t, c.listeners)
	c.mu.RUnlock()
}
