// Package kitchen is the kitchen-worker: it consumes placed orders off the
// bus, walks them through preparing and ready, and reports each step back
// as a change event.
package kitchen

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"tableorder/internal/common/config"
	"tableorder/internal/common/db"
	"tableorder/internal/common/logger"
	"tableorder/internal/common/mq"
	"tableorder/internal/domain"
	"tableorder/internal/repository"
)

type Config struct {
	WorkerName string
	Heartbeat  time.Duration
	Prefetch   int
	CookTime   time.Duration
}

type worker struct {
	cfg     Config
	orders  repository.Orders
	workers repository.Workers
	mqc     *mq.Client
	lg      *logger.Logger
}

// Run registers the worker, then consumes the kitchen queue until ctx is
// cancelled. Each order is cooked for a fixed window between the preparing
// and ready transitions.
func Run(ctx context.Context, app config.App, cfg Config) error {
	lg := logger.New("kitchen-worker")
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.CookTime <= 0 {
		cfg.CookTime = 10 * time.Second
	}

	conn, err := db.Connect(ctx, app.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	mqc, err := mq.Dial(app.Rabbit.Host, app.Rabbit.Port, app.Rabbit.User, app.Rabbit.Pass)
	if err != nil {
		return err
	}
	defer mqc.Close()
	if err := mqc.DeclareAll(); err != nil {
		return err
	}

	w := &worker{
		cfg:     cfg,
		orders:  repository.NewOrdersPG(conn),
		workers: repository.NewWorkersPG(conn),
		mqc:     mqc,
		lg:      lg,
	}

	if err := w.workers.Register(ctx, cfg.WorkerName); err != nil {
		lg.Error("worker_registration_failed", err, map[string]any{"worker": cfg.WorkerName})
		return err
	}
	lg.Info("worker_registered", map[string]any{"worker": cfg.WorkerName})
	defer func() {
		offCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.workers.SetOffline(offCtx, cfg.WorkerName)
	}()

	go w.heartbeatLoop(ctx)
	return w.consume(ctx)
}

func (w *worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.workers.Heartbeat(ctx, w.cfg.WorkerName); err != nil && ctx.Err() == nil {
				w.lg.Warn("heartbeat_failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

func (w *worker) consume(ctx context.Context) error {
	deliveries, err := w.mqc.Consume(mq.QueueKitchen, w.cfg.WorkerName, w.cfg.Prefetch)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *worker) handle(ctx context.Context, d amqp.Delivery) {
	var msg domain.OrderMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		w.lg.Error("order_message_undecodable", err, nil)
		_ = d.Nack(false, false) // dead-letter it
		return
	}

	if err := w.advance(ctx, msg.OrderNumber, domain.StatusPreparing); err != nil {
		w.lg.Error("cooking_start_failed", err, map[string]any{"order_number": msg.OrderNumber})
		_ = d.Nack(false, true)
		return
	}
	w.lg.Info("cooking_started", map[string]any{"order_number": msg.OrderNumber, "worker": w.cfg.WorkerName})

	select {
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return
	case <-time.After(w.cfg.CookTime):
	}

	if err := w.advance(ctx, msg.OrderNumber, domain.StatusReady); err != nil {
		w.lg.Error("cooking_finish_failed", err, map[string]any{"order_number": msg.OrderNumber})
		_ = d.Nack(false, true)
		return
	}
	w.lg.Info("cooking_finished", map[string]any{"order_number": msg.OrderNumber, "worker": w.cfg.WorkerName})
	_ = d.Ack(false)
}

// advance moves the order to the given status and fans the UPDATE out.
func (w *worker) advance(ctx context.Context, number string, status domain.OrderStatus) error {
	current, err := w.orders.GetByNumber(ctx, number)
	if err != nil {
		return err
	}
	if !domain.CanTransition(current.Status, status) {
		// already moved past this step elsewhere; nothing to do
		return nil
	}
	updated, err := w.orders.UpdateStatus(ctx, number, status, w.cfg.WorkerName)
	if err != nil {
		return err
	}
	return w.mqc.PublishChange(ctx, domain.ChangeEvent{
		Type:  domain.EventUpdate,
		Table: "orders",
		New: map[string]any{
			"number":     updated.Number,
			"table_id":   updated.TableID,
			"status":     string(updated.Status),
			"updated_at": updated.UpdatedAt.UTC().Format(time.RFC3339),
		},
		Old: map[string]any{"number": current.Number, "status": string(current.Status)},
		At:  time.Now().UTC(),
	})
}
