package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusIndex(t *testing.T) {
	assert.Equal(t, 0, StatusIndex(StatusPending))
	assert.Equal(t, 2, StatusIndex(StatusReady))
	assert.Equal(t, 4, StatusIndex(StatusCompleted))
	// unrecognized statuses default to the start of the sequence
	assert.Equal(t, 0, StatusIndex(OrderStatus("garbage")))
	assert.Equal(t, 0, StatusIndex(StatusCancelled))
}

func TestStatusProgress(t *testing.T) {
	assert.InDelta(t, 0.2, StatusProgress(StatusPending), 1e-9)
	assert.InDelta(t, 0.6, StatusProgress(StatusReady), 1e-9)
	assert.InDelta(t, 1.0, StatusProgress(StatusCompleted), 1e-9)
	assert.InDelta(t, 0.2, StatusProgress(OrderStatus("nope")), 1e-9)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{StatusPending, StatusPreparing, true},
		{StatusPreparing, StatusReady, true},
		{StatusServed, StatusCompleted, true},
		{StatusPending, StatusReady, false},  // no skipping
		{StatusReady, StatusPreparing, false}, // no going back
		{StatusPending, StatusPending, false},
		{StatusPending, StatusCancelled, true},
		{StatusServed, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPreparing, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusServed.IsTerminal())
}
