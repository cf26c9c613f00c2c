package validate

import (
	"fmt"
	"time"

	"tableorder/internal/domain"
)

// Limits are the restaurant-configurable order constraints. Presets per
// restaurant type override the defaults.
type Limits struct {
	MaxItemsPerOrder    int
	MaxQuantityPerItem  int
	MinOrderAmount      float64
	MaxOrderAmount      float64
	MaxTipPercent       float64
	OrderTimeout        time.Duration
	MaxOrdersPerTable   int // per day
	MaxOrdersPerHour    int
}

func DefaultLimits() Limits {
	return Limits{
		MaxItemsPerOrder:   50,
		MaxQuantityPerItem: 100,
		MinOrderAmount:     0,
		MaxOrderAmount:     10000,
		MaxTipPercent:      50,
		OrderTimeout:       30 * time.Minute,
		MaxOrdersPerTable:  20,
		MaxOrdersPerHour:   10,
	}
}

// PresetLimits returns the limits for a known restaurant type, falling back
// to the defaults for anything unrecognized.
func PresetLimits(restaurantType string) Limits {
	l := DefaultLimits()
	switch restaurantType {
	case "fast-food":
		l.MaxItemsPerOrder = 30
		l.MaxOrderAmount = 500
		l.OrderTimeout = 15 * time.Minute
		l.MaxOrdersPerHour = 20
	case "fine-dining":
		l.MaxItemsPerOrder = 20
		l.MaxQuantityPerItem = 10
		l.MinOrderAmount = 20
		l.MaxTipPercent = 30
		l.OrderTimeout = 60 * time.Minute
		l.MaxOrdersPerHour = 4
	case "cafe":
		l.MaxItemsPerOrder = 15
		l.MaxOrderAmount = 300
		l.OrderTimeout = 20 * time.Minute
	}
	return l
}

// OrderRules applies a restaurant's limits to incoming orders.
type OrderRules struct {
	limits Limits
	now    func() time.Time
}

func NewOrderRules(l Limits) *OrderRules {
	return &OrderRules{limits: l, now: time.Now}
}

func (r *OrderRules) Limits() Limits { return r.limits }

// Check validates an order against the restaurant's limits, reporting all
// violations together.
func (r *OrderRules) Check(d OrderData) Result {
	var errs []string

	totalItems := 0
	for _, it := range d.Items {
		totalItems += it.Quantity
		if it.Quantity > r.limits.MaxQuantityPerItem {
			errs = append(errs, fmt.Sprintf("quantity for %q exceeds the per-item limit of %d", it.Name, r.limits.MaxQuantityPerItem))
		}
	}
	if totalItems > r.limits.MaxItemsPerOrder {
		errs = append(errs, fmt.Sprintf("order exceeds the limit of %d items", r.limits.MaxItemsPerOrder))
	}
	if d.Subtotal < r.limits.MinOrderAmount {
		errs = append(errs, fmt.Sprintf("order amount is below the minimum of %.2f", r.limits.MinOrderAmount))
	}
	if d.Subtotal > r.limits.MaxOrderAmount {
		errs = append(errs, fmt.Sprintf("order amount exceeds the maximum of %.2f", r.limits.MaxOrderAmount))
	}
	if d.Subtotal > 0 && d.Tip > d.Subtotal*r.limits.MaxTipPercent/100 {
		errs = append(errs, fmt.Sprintf("tip exceeds %.0f%% of the subtotal", r.limits.MaxTipPercent))
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// IsOrderTimedOut reports whether the timeout window measured from order
// creation has elapsed.
func (r *OrderRules) IsOrderTimedOut(createdAt time.Time) bool {
	return r.now().Sub(createdAt) > r.limits.OrderTimeout
}

// RemainingTime returns how long the order has before timing out, clamped
// at zero.
func (r *OrderRules) RemainingTime(createdAt time.Time) time.Duration {
	left := r.limits.OrderTimeout - r.now().Sub(createdAt)
	if left < 0 {
		return 0
	}
	return left
}

// TotalFor is a convenience used by the order service: subtotal plus tip.
func TotalFor(lines []domain.CartLine, tip float64) (subtotal, total float64) {
	for _, l := range lines {
		subtotal += l.Price * float64(l.Quantity)
	}
	return subtotal, subtotal + tip
}
