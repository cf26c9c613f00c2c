package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tableorder/internal/domain"
)

func TestSanitizeInput(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  hello  ", "hello"},
		{"<script>alert(1)</script>ok", "ok"},
		{"<SCRIPT src=x>steal()</SCRIPT>fine", "fine"},
		{"<iframe src=evil></iframe>text", "text"},
		{"<object data=x></object><embed src=y>", ""},
		{"click javascript:alert(1)", "click alert(1)"},
		{"img data:text/html;base64", "img text/html;base64"},
		{`<div onclick=hack()>x`, "<div hack()>x"},
		{"plain text stays", "plain text stays"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SanitizeInput(c.in), c.in)
	}
}

func TestFieldValidators(t *testing.T) {
	assert.True(t, Email("a@b.co"))
	assert.False(t, Email("not-an-email"))
	assert.False(t, Email("a b@c.co"))

	assert.True(t, CustomerName("Mary-Jane O'Neil Jr."))
	assert.False(t, CustomerName("X"))
	assert.False(t, CustomerName("robert; drop tables"))
	assert.False(t, CustomerName(strings.Repeat("a", 51)))

	assert.True(t, TableID("a2f61c6a-4f3b-4f6e-9f1d-2f4f0a8b9c1e"))
	assert.False(t, TableID("table-7"))
	assert.False(t, TableID(""))

	assert.True(t, OrderAmount(0))
	assert.True(t, OrderAmount(10000))
	assert.False(t, OrderAmount(10000.01))
	assert.False(t, OrderAmount(-1))

	assert.True(t, ItemQuantity(0))
	assert.True(t, ItemQuantity(100))
	assert.False(t, ItemQuantity(101))
	assert.False(t, ItemQuantity(-1))

	assert.True(t, TipAmount(5, 10))
	assert.False(t, TipAmount(5.01, 10))
	assert.False(t, TipAmount(-1, 10))

	assert.True(t, SpecialInstructions(strings.Repeat("a", 500)))
	assert.False(t, SpecialInstructions(strings.Repeat("a", 501)))
	// tags are stripped before measuring
	assert.True(t, SpecialInstructions("<script>"+strings.Repeat("x", 400)+"</script>short"))
}

func TestValidateOrderData_MinimalValidOrder(t *testing.T) {
	res := ValidateOrderData(OrderData{
		Items:    []domain.CartLine{{ID: "a", Name: "Soup", Price: 10, Quantity: 1}},
		Subtotal: 10,
		Tip:      0,
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidateOrderData_ReportsAllFailures(t *testing.T) {
	res := ValidateOrderData(OrderData{
		Items:        []domain.CartLine{{ID: "a", Name: "Soup", Price: 10, Quantity: 200}},
		Subtotal:     20000,
		Tip:          15000,
		CustomerName: "!",
		Email:        "nope",
		TableID:      "not-a-uuid",
	})
	assert.False(t, res.Valid)
	// every violated rule appends its own message
	assert.GreaterOrEqual(t, len(res.Errors), 5)
}

func TestValidateOrderData_EmptyItems(t *testing.T) {
	res := ValidateOrderData(OrderData{Subtotal: 10})
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)
}

func TestPresetLimits(t *testing.T) {
	assert.Equal(t, DefaultLimits(), PresetLimits("unknown-type"))
	assert.Equal(t, 15*time.Minute, PresetLimits("fast-food").OrderTimeout)
	assert.Equal(t, 20.0, PresetLimits("fine-dining").MinOrderAmount)
	assert.Equal(t, 300.0, PresetLimits("cafe").MaxOrderAmount)
}

func TestOrderRules_Check(t *testing.T) {
	rules := NewOrderRules(PresetLimits("fine-dining"))

	res := rules.Check(OrderData{
		Items:    []domain.CartLine{{ID: "a", Name: "Steak", Price: 40, Quantity: 1}},
		Subtotal: 40,
		Tip:      8,
	})
	assert.True(t, res.Valid)

	res = rules.Check(OrderData{
		Items:    []domain.CartLine{{ID: "a", Name: "Steak", Price: 1, Quantity: 15}},
		Subtotal: 15,
		Tip:      10,
	})
	assert.False(t, res.Valid)
	// below minimum, over per-item quantity, and over tip percent
	assert.Len(t, res.Errors, 3)
}

func TestOrderRules_Timeout(t *testing.T) {
	rules := NewOrderRules(DefaultLimits())
	base := time.Now()
	rules.now = func() time.Time { return base }

	created := base.Add(-10 * time.Minute)
	assert.False(t, rules.IsOrderTimedOut(created))
	assert.Equal(t, 20*time.Minute, rules.RemainingTime(created))

	created = base.Add(-31 * time.Minute)
	assert.True(t, rules.IsOrderTimedOut(created))
	assert.Equal(t, time.Duration(0), rules.RemainingTime(created))
}

func TestTotalFor(t *testing.T) {
	sub, total := TotalFor([]domain.CartLine{
		{ID: "a", Price: 12.5, Quantity: 2},
		{ID: "b", Price: 3, Quantity: 1},
	}, 4)
	assert.InDelta(t, 28.0, sub, 1e-9)
	assert.InDelta(t, 32.0, total, 1e-9)
}
