package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"tableorder/internal/apperr"
	"tableorder/internal/common/mq"
	"tableorder/internal/domain"
	"tableorder/internal/repository"
	"tableorder/internal/validate"
)

type Service interface {
	AddOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error)
	UpdateStatus(ctx context.Context, number string, status domain.OrderStatus) (domain.Order, error)
}

// Publisher is the slice of the message-bus client the service needs.
type Publisher interface {
	PublishPersistent(ctx context.Context, exchange, key string, priority uint8, body []byte) error
	PublishChange(ctx context.Context, ev domain.ChangeEvent) error
}

type service struct {
	repo     repository.Orders
	mqc      Publisher
	rules    *validate.OrderRules
	validate *validator.Validate
}

func NewService(repo repository.Orders, mqc Publisher, rules *validate.OrderRules) Service {
	return &service{
		repo:     repo,
		mqc:      mqc,
		rules:    rules,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// AddOrder validates and persists a new order, then emits the kitchen work
// item and the INSERT change event. Validation runs in three passes:
// sanitization, structural tag validation, then the restaurant's own rules.
func (s *service) AddOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	req.CustomerName = validate.SanitizeInput(req.CustomerName)
	req.Instructions = validate.SanitizeInput(req.Instructions)

	if err := s.validate.Struct(req); err != nil {
		return domain.CreateOrderResponse{}, apperr.Wrap(apperr.CodeInvalidName, fmt.Errorf("invalid order request: %w", err))
	}

	lines := make([]domain.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, domain.CartLine{ID: it.ID, Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}
	subtotal, total := validate.TotalFor(lines, req.Tip)

	res := validate.ValidateOrderData(validate.OrderData{
		Items:        lines,
		Subtotal:     subtotal,
		Tip:          req.Tip,
		CustomerName: req.CustomerName,
		Email:        req.CustomerEmail,
		TableID:      req.TableID,
		Instructions: req.Instructions,
	})
	if !res.Valid {
		return domain.CreateOrderResponse{}, apperr.Wrap(apperr.CodeInvalidName, fmt.Errorf("%s", strings.Join(res.Errors, "; ")))
	}
	if rr := s.rules.Check(validate.OrderData{Items: lines, Subtotal: subtotal, Tip: req.Tip}); !rr.Valid {
		return domain.CreateOrderResponse{}, apperr.Wrap(apperr.CodeInvalidName, fmt.Errorf("%s", strings.Join(rr.Errors, "; ")))
	}

	o := domain.Order{
		RestaurantID: req.RestaurantID,
		TableID:      req.TableID,
		CustomerName: req.CustomerName,
		Subtotal:     subtotal,
		Tip:          req.Tip,
		TotalAmount:  total,
		Instructions: req.Instructions,
		Priority:     priorityFor(total),
	}
	for _, it := range req.Items {
		o.Items = append(o.Items, domain.OrderItem{ItemID: it.ID, Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}

	if err := s.repo.CreateOrder(ctx, &o); err != nil {
		return domain.CreateOrderResponse{}, apperr.Wrap(apperr.CodeServerInternal, err)
	}

	if err := s.publishKitchen(ctx, o); err != nil {
		return domain.CreateOrderResponse{}, apperr.Wrap(apperr.CodeServiceUnavailable, err)
	}
	_ = s.mqc.PublishChange(ctx, domain.ChangeEvent{
		Type:  domain.EventInsert,
		Table: "orders",
		New:   changeRow(o),
		At:    time.Now().UTC(),
	})

	return domain.CreateOrderResponse{OrderNumber: o.Number, Status: o.Status, TotalAmount: o.TotalAmount}, nil
}

// UpdateStatus advances the order one step along the status sequence and
// fans the UPDATE event out. Illegal transitions are rejected.
func (s *service) UpdateStatus(ctx context.Context, number string, status domain.OrderStatus) (domain.Order, error) {
	current, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		if err == repository.ErrNotFound {
			return domain.Order{}, apperr.Wrap(apperr.CodeOrderNotFound, err)
		}
		return domain.Order{}, apperr.Wrap(apperr.CodeServerInternal, err)
	}
	if !domain.CanTransition(current.Status, status) {
		return domain.Order{}, apperr.Wrap(apperr.CodeInvalidName,
			fmt.Errorf("cannot change status from %s to %s", current.Status, status))
	}

	updated, err := s.repo.UpdateStatus(ctx, number, status, "order-service")
	if err != nil {
		return domain.Order{}, apperr.Wrap(apperr.CodeServerInternal, err)
	}

	_ = s.mqc.PublishChange(ctx, domain.ChangeEvent{
		Type:  domain.EventUpdate,
		Table: "orders",
		New:   changeRow(updated),
		Old:   map[string]any{"number": current.Number, "status": string(current.Status)},
		At:    time.Now().UTC(),
	})
	return updated, nil
}

func (s *service) publishKitchen(ctx context.Context, o domain.Order) error {
	items := make([]domain.OrderItemMsg, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, domain.OrderItemMsg{Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}
	body, err := json.Marshal(domain.OrderMessage{
		OrderNumber:  o.Number,
		RestaurantID: o.RestaurantID,
		TableID:      o.TableID,
		CustomerName: o.CustomerName,
		Items:        items,
		TotalAmount:  o.TotalAmount,
		Priority:     o.Priority,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order message: %w", err)
	}
	key := fmt.Sprintf("kitchen.%d", o.Priority)
	return s.mqc.PublishPersistent(ctx, mq.ExchangeOrders, key, uint8(o.Priority), body)
}

func priorityFor(total float64) int {
	switch {
	case total >= 100:
		return 10
	case total >= 50:
		return 5
	default:
		return 1
	}
}

func changeRow(o domain.Order) map[string]any {
	return map[string]any{
		"number":        o.Number,
		"restaurant_id": o.RestaurantID,
		"table_id":      o.TableID,
		"status":        string(o.Status),
		"total_amount":  o.TotalAmount,
		"updated_at":    o.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
