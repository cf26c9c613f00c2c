package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tableorder/internal/app/feed"
	"tableorder/internal/app/kiosk"
	"tableorder/internal/app/order"
	"tableorder/internal/app/tracking"
	"tableorder/internal/common/config"
	"tableorder/internal/common/logger"

	kitchenapp "tableorder/internal/app/kitchen"
)

func main() {
	mode := flag.String("mode", "", "order-service | feed-gateway | tracking-service | kitchen-worker | kiosk")
	configPath := flag.String("config", "", "path to config.yaml (default: auto-discover)")
	port := flag.Int("port", 0, "http port for services that expose HTTP")
	maxConc := flag.Int("max-concurrent", 50, "order-service: max concurrent requests")
	workerName := flag.String("worker-name", "", "kitchen-worker: unique worker name")
	heartbeat := flag.Int("heartbeat-interval", 30, "kitchen-worker: heartbeat interval seconds")
	prefetch := flag.Int("prefetch", 1, "kitchen-worker: message prefetch")
	cookTime := flag.Int("cook-time", 10, "kitchen-worker: seconds per order")
	orderURL := flag.String("order-url", "http://localhost:3000", "kiosk: order-service base URL")
	trackingURL := flag.String("tracking-url", "http://localhost:3002", "kiosk: tracking-service base URL")
	feedURL := flag.String("feed-url", "ws://localhost:3001/realtime", "kiosk: feed-gateway websocket URL")
	tableID := flag.String("table-id", "", "kiosk: table UUID (default: random)")
	restaurantID := flag.String("restaurant-id", "", "kiosk: restaurant UUID")
	customer := flag.String("customer-name", "Walk-in Guest", "kiosk: customer name")
	flag.Parse()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.FindConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "no config.yaml found; pass --config")
			os.Exit(2)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}

	run := func(name string, fn func() error) {
		lg.Info("service_started", map[string]any{"service": name})
		if err := fn(); err != nil {
			lg.Error("fatal", err, map[string]any{"service": name})
			os.Exit(1)
		}
	}

	switch *mode {
	case "order-service":
		if *port == 0 {
			*port = 3000
		}
		run("order-service", func() error { return order.Run(ctx, cfg, *port, *maxConc) })
	case "feed-gateway":
		if *port == 0 {
			*port = 3001
		}
		run("feed-gateway", func() error { return feed.Run(ctx, cfg, *port) })
	case "tracking-service":
		if *port == 0 {
			*port = 3002
		}
		run("tracking-service", func() error { return tracking.Run(ctx, cfg, *port) })
	case "kitchen-worker":
		if *workerName == "" {
			fmt.Fprintln(os.Stderr, "--worker-name is required for kitchen-worker")
			os.Exit(2)
		}
		run("kitchen-worker", func() error {
			return kitchenapp.Run(ctx, cfg, kitchenapp.Config{
				WorkerName: *workerName,
				Heartbeat:  time.Duration(*heartbeat) * time.Second,
				Prefetch:   *prefetch,
				CookTime:   time.Duration(*cookTime) * time.Second,
			})
		})
	case "kiosk":
		if *restaurantID == "" {
			fmt.Fprintln(os.Stderr, "--restaurant-id is required for kiosk")
			os.Exit(2)
		}
		run("kiosk", func() error {
			return kiosk.Run(ctx, cfg, kiosk.Config{
				OrderServiceURL:    *orderURL,
				TrackingServiceURL: *trackingURL,
				FeedURL:            *feedURL,
				TableID:            *tableID,
				RestaurantID:       *restaurantID,
				CustomerName:       *customer,
			})
		})
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: order-service | feed-gateway | tracking-service | kitchen-worker | kiosk")
		os.Exit(2)
	}
}
