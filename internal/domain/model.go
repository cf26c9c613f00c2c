package domain

import (
	"encoding/json"
	"time"
)

// CartLine is one selected menu item in a table's cart. A line always has
// quantity >= 1; a quantity of zero means the line is removed, never stored.
type CartLine struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Category string  `json:"category,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
}

// CartSession holds the cart lines and transient submission state for one
// table. Exactly one session is authoritative per client at a time.
type CartSession struct {
	TableID      string     `json:"table_id"`
	Lines        []CartLine `json:"lines"`
	IsProcessing bool       `json:"is_processing"`
	LastError    string     `json:"last_error,omitempty"`
	RetryCount   int        `json:"retry_count"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RequestType identifies a deferred mutating operation in the offline queue.
type RequestType string

const (
	RequestAddToCart      RequestType = "add_to_cart"
	RequestUpdateQuantity RequestType = "update_quantity"
	RequestRemoveFromCart RequestType = "remove_from_cart"
	RequestSubmitOrder    RequestType = "submit_order"
)

// QueuedRequest is one entry in the offline queue. It is removed when its
// operation succeeds or when RetryCount reaches MaxRetries.
type QueuedRequest struct {
	ID         string          `json:"id"`
	Type       RequestType     `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
}

// Order is the server-side view of a placed order.
type Order struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	RestaurantID string      `json:"restaurant_id"`
	TableID      string      `json:"table_id"`
	CustomerName string      `json:"customer_name"`
	Items        []OrderItem `json:"items,omitempty"`
	Subtotal     float64     `json:"subtotal"`
	Tip          float64     `json:"tip"`
	TotalAmount  float64     `json:"total_amount"`
	Instructions string      `json:"special_instructions,omitempty"`
	Status       OrderStatus `json:"status"`
	Priority     int         `json:"priority"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID       int64   `json:"id"`
	OrderID  int64   `json:"order_id"`
	ItemID   string  `json:"item_id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}
