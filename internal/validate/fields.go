package validate

import (
	"regexp"

	"github.com/google/uuid"
)

const (
	maxOrderAmount      = 10000.0
	maxItemQuantity     = 100
	maxInstructionsLen  = 500
	maxTipFractionOfSub = 0.5
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRe  = regexp.MustCompile(`^[a-zA-Z\s'\-.]{2,50}$`)
)

func Email(s string) bool { return emailRe.MatchString(s) }

// CustomerName accepts letters, spaces, hyphens, apostrophes and periods,
// 2 to 50 characters.
func CustomerName(s string) bool { return nameRe.MatchString(s) }

// SpecialInstructions checks length after sanitization.
func SpecialInstructions(s string) bool {
	return len(SanitizeInput(s)) <= maxInstructionsLen
}

// TableID accepts only canonical UUID text. Identifiers are validated at
// the untrusted boundary (scanned QR content), never on generated values.
func TableID(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}

func RestaurantID(s string) bool { return TableID(s) }

func OrderAmount(v float64) bool { return v >= 0 && v <= maxOrderAmount }

func ItemQuantity(q int) bool { return q >= 0 && q <= maxItemQuantity }

// TipAmount allows tips up to half the subtotal.
func TipAmount(tip, subtotal float64) bool {
	return tip >= 0 && tip <= maxTipFractionOfSub*subtotal
}
