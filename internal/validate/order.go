package validate

import (
	"fmt"

	"tableorder/internal/domain"
)

// OrderData is the flattened order payload the aggregate check runs over.
// Optional identity fields are validated only when present.
type OrderData struct {
	Items        []domain.CartLine
	Subtotal     float64
	Tip          float64
	CustomerName string
	Email        string
	TableID      string
	Instructions string
}

type Result struct {
	Valid  bool
	Errors []string
}

// ValidateOrderData runs every applicable check and reports all failures
// together; it never short-circuits on the first violation.
func ValidateOrderData(d OrderData) Result {
	var errs []string

	if len(d.Items) == 0 {
		errs = append(errs, "order must contain at least one item")
	}
	for _, it := range d.Items {
		if it.ID == "" || it.Name == "" {
			errs = append(errs, fmt.Sprintf("item %q is missing an id or name", it.Name))
		}
		if it.Quantity < 1 || !ItemQuantity(it.Quantity) {
			errs = append(errs, fmt.Sprintf("quantity for %q must be between 1 and %d", it.Name, maxItemQuantity))
		}
		if it.Price <= 0 {
			errs = append(errs, fmt.Sprintf("price for %q must be positive", it.Name))
		}
	}
	if !OrderAmount(d.Subtotal) {
		errs = append(errs, fmt.Sprintf("order amount must be between 0 and %.0f", maxOrderAmount))
	}
	if !TipAmount(d.Tip, d.Subtotal) {
		errs = append(errs, "tip cannot exceed half the order subtotal")
	}
	if d.CustomerName != "" && !CustomerName(d.CustomerName) {
		errs = append(errs, "customer name may only contain letters, spaces, hyphens, apostrophes and periods (2-50 characters)")
	}
	if d.Email != "" && !Email(d.Email) {
		errs = append(errs, "email address is not valid")
	}
	if d.TableID != "" && !TableID(d.TableID) {
		errs = append(errs, "table identifier is not a valid UUID")
	}
	if !SpecialInstructions(d.Instructions) {
		errs = append(errs, fmt.Sprintf("special instructions cannot exceed %d characters", maxInstructionsLen))
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}
