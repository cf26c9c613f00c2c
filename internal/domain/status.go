package domain

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// StatusSequence is the fixed progression an order moves through from
// placement to completion. Cancellation sits outside the sequence.
var StatusSequence = []OrderStatus{
	StatusPending,
	StatusPreparing,
	StatusReady,
	StatusServed,
	StatusCompleted,
}

// StatusIndex returns the position of s in StatusSequence. An unrecognized
// status maps to the first element rather than failing.
func StatusIndex(s OrderStatus) int {
	for i, st := range StatusSequence {
		if st == s {
			return i
		}
	}
	return 0
}

// StatusProgress reports how far along the sequence s is, in (0, 1].
func StatusProgress(s OrderStatus) float64 {
	return float64(StatusIndex(s)+1) / float64(len(StatusSequence))
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to the
// next. Only single forward steps along the sequence are allowed, plus
// cancellation from any non-terminal state.
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return StatusIndex(to) == StatusIndex(from)+1 && to != from
}
