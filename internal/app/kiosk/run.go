package kiosk

import (
	"context"
	"time"

	"tableorder/internal/common/config"
	"tableorder/internal/common/logger"
	"tableorder/internal/domain"
	"tableorder/internal/realtime"
	"tableorder/internal/storage"
)

type Config struct {
	OrderServiceURL    string
	TrackingServiceURL string
	FeedURL            string
	TableID            string
	RestaurantID       string
	CustomerName       string
}

// Run drives one kiosk session end to end: restore the cart, add a demo
// order, submit it, and follow its status until it reaches a terminal
// state or ctx is cancelled.
func Run(ctx context.Context, app config.App, cfg Config) error {
	lg := logger.New("kiosk")
	if cfg.TableID == "" {
		cfg.TableID = NewTableID()
	}

	var store storage.Store
	rds, err := storage.NewRedis(ctx, app.Redis)
	if err != nil {
		lg.Warn("redis_unavailable_using_memory", map[string]any{"error": err.Error()})
		store = storage.NewMemory()
	} else {
		store = rds
		defer rds.Close()
	}

	client, _, err := NewClient(ctx, ClientConfig{
		OrderServiceURL:    cfg.OrderServiceURL,
		TrackingServiceURL: cfg.TrackingServiceURL,
		FeedURL:            cfg.FeedURL,
		TableID:            cfg.TableID,
		RestaurantID:       cfg.RestaurantID,
		CartFreshness:      app.Policy.CartFreshness,
		QueueCapacity:      app.Policy.QueueCapacity,
		QueueMaxRetries:    app.Policy.QueueMaxRetries,
		PollInterval:       app.Policy.PollInterval,
	}, store, lg)
	if err != nil {
		return err
	}
	defer client.Close()

	client.WatchConnectivity(ctx, 5*time.Second)

	client.Cart.AddToCart(ctx, domain.CartLine{ID: "margherita", Name: "Margherita", Price: 12.50, Quantity: 1})
	client.Cart.AddToCart(ctx, domain.CartLine{ID: "margherita", Name: "Margherita", Price: 12.50, Quantity: 1})
	client.Cart.AddToCart(ctx, domain.CartLine{ID: "cola", Name: "Cola", Price: 3.00, Quantity: 1})
	lg.Info("cart_ready", map[string]any{
		"table_id": cfg.TableID,
		"items":    client.Cart.TotalItems(),
		"total":    client.Cart.TotalPrice(),
	})

	resp, err := client.SubmitOrder(ctx, cfg.CustomerName, "", "")
	if err != nil {
		lg.Error("order_submission_failed", err, map[string]any{"last_error": client.Cart.LastError()})
		return err
	}

	tr := client.Track(ctx, resp.OrderNumber)
	tr.OnChange(func(s domain.OrderStatus) {
		lg.Info("order_status", map[string]any{
			"order_number": resp.OrderNumber,
			"status":       string(s),
			"progress":     tr.Progress(),
			"connection":   string(tr.ConnectionStatus()),
		})
	})

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := tr.Err(); err != nil {
				lg.Error("tracking_failed", err, map[string]any{"order_number": resp.OrderNumber})
				return err
			}
			if tr.Status().IsTerminal() {
				lg.Info("order_finished", map[string]any{"order_number": resp.OrderNumber, "status": string(tr.Status())})
				return nil
			}
			if tr.ConnectionStatus() == realtime.StatusError {
				lg.Warn("realtime_degraded_polling", map[string]any{"order_number": resp.OrderNumber})
			}
		}
	}
}
