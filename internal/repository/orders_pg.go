// Package repository is the persistence layer for orders. All writes go
// through transactions so an order, its items, and its status log either
// land together or not at all.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tableorder/internal/common/db"
	"tableorder/internal/domain"
)

var ErrNotFound = errors.New("order not found")

type Orders interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetByNumber(ctx context.Context, number string) (domain.Order, error)
	UpdateStatus(ctx context.Context, number string, status domain.OrderStatus, changedBy string) (domain.Order, error)
	ListByRestaurant(ctx context.Context, restaurantID string, page, pageSize int) ([]domain.Order, int, error)
}

type ordersPG struct {
	conn *db.Conn
}

func NewOrdersPG(conn *db.Conn) Orders {
	return &ordersPG{conn: conn}
}

// CreateOrder inserts the order, its items, and the initial status-log row
// in one transaction and fills in the generated ID and number. Numbers are
// ORD_<date>_<seq>, where seq restarts every day.
func (r *ordersPG) CreateOrder(ctx context.Context, o *domain.Order) error {
	tx, err := r.conn.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var todayCount int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders WHERE created_at::date = CURRENT_DATE
	`).Scan(&todayCount)
	if err != nil {
		return fmt.Errorf("failed to count today's orders: %w", err)
	}
	o.Number = fmt.Sprintf("ORD_%s_%03d", time.Now().Format("20060102"), todayCount+1)
	o.Status = domain.StatusPending

	err = tx.QueryRow(ctx, `
		INSERT INTO orders
			(number, restaurant_id, table_id, customer_name, subtotal, tip, total_amount, special_instructions, status, priority, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`,
		o.Number,
		o.RestaurantID,
		o.TableID,
		o.CustomerName,
		o.Subtotal,
		o.Tip,
		o.TotalAmount,
		o.Instructions,
		o.Status,
		o.Priority,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, item_id, name, quantity, price, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING id
		`, o.ID, item.ItemID, item.Name, item.Quantity, item.Price).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item %s: %w", item.Name, err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, 'order-service', NOW())
	`, o.ID, o.Status)
	if err != nil {
		return fmt.Errorf("failed to insert order status log: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *ordersPG) GetByNumber(ctx context.Context, number string) (domain.Order, error) {
	var o domain.Order
	err := r.conn.Pool.QueryRow(ctx, `
		SELECT id, number, restaurant_id, table_id, customer_name, subtotal, tip, total_amount,
		       COALESCE(special_instructions, ''), status, priority, created_at, updated_at
		FROM orders WHERE number = $1
	`, number).Scan(
		&o.ID, &o.Number, &o.RestaurantID, &o.TableID, &o.CustomerName,
		&o.Subtotal, &o.Tip, &o.TotalAmount, &o.Instructions,
		&o.Status, &o.Priority, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to get order %s: %w", number, err)
	}

	rows, err := r.conn.Pool.Query(ctx, `
		SELECT id, order_id, item_id, name, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY id
	`, o.ID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ItemID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return domain.Order{}, fmt.Errorf("failed to scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// UpdateStatus moves the order to the new status and appends a status-log
// row, returning the updated order.
func (r *ordersPG) UpdateStatus(ctx context.Context, number string, status domain.OrderStatus, changedBy string) (domain.Order, error) {
	tx, err := r.conn.Pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE number = $1
		RETURNING id
	`, number, status).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to update order status: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, NOW())
	`, id, status, changedBy)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to insert order status log: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return r.GetByNumber(ctx, number)
}

func (r *ordersPG) ListByRestaurant(ctx context.Context, restaurantID string, page, pageSize int) ([]domain.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int
	err := r.conn.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders WHERE restaurant_id = $1
	`, restaurantID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rows, err := r.conn.Pool.Query(ctx, `
		SELECT id, number, restaurant_id, table_id, customer_name, subtotal, tip, total_amount,
		       COALESCE(special_instructions, ''), status, priority, created_at, updated_at
		FROM orders
		WHERE restaurant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, restaurantID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.Number, &o.RestaurantID, &o.TableID, &o.CustomerName,
			&o.Subtotal, &o.Tip, &o.TotalAmount, &o.Instructions,
			&o.Status, &o.Priority, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}
