package domain

import "time"

// EventType is the kind of row change carried by the realtime feed.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one row-level change pushed to subscribed clients.
// New holds the row after the change, Old the row before it; DELETE events
// carry only Old, INSERT events only New.
type ChangeEvent struct {
	Type  EventType      `json:"eventType"`
	Table string         `json:"table"`
	New   map[string]any `json:"new,omitempty"`
	Old   map[string]any `json:"old,omitempty"`
	At    time.Time      `json:"at"`
}

// OrderItemMsg is one line of an order as published to the kitchen queue.
type OrderItemMsg struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderMessage is the kitchen work item published when an order is placed.
type OrderMessage struct {
	OrderNumber  string         `json:"order_number"`
	RestaurantID string         `json:"restaurant_id"`
	TableID      string         `json:"table_id"`
	CustomerName string         `json:"customer_name"`
	Items        []OrderItemMsg `json:"items"`
	TotalAmount  float64        `json:"total_amount"`
	Priority     int            `json:"priority"`
}
