// Package kiosk is the table-side client kit: a cart session, an offline
// request queue, a realtime feed subscription, and an order tracker wired
// against the backend services.
package kiosk

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"tableorder/internal/apperr"
	"tableorder/internal/cart"
	"tableorder/internal/common/logger"
	"tableorder/internal/domain"
	"tableorder/internal/offline"
	"tableorder/internal/realtime"
	"tableorder/internal/retry"
	"tableorder/internal/storage"
	"tableorder/internal/tracker"
)

type ClientConfig struct {
	OrderServiceURL    string
	TrackingServiceURL string
	FeedURL            string
	TableID            string
	RestaurantID       string
	CartFreshness      time.Duration
	QueueCapacity      int
	QueueMaxRetries    int
	PollInterval       time.Duration
	SubmitAttempts     int           // retry budget for one submission
	SubmitRetryBase    time.Duration // first backoff step between attempts
}

// Client ties the pieces of the kiosk together. One client serves one
// table.
type Client struct {
	cfg     ClientConfig
	lg      *logger.Logger
	httpc   *http.Client
	Cart    *cart.Session
	Queue   *offline.Queue
	Channel *realtime.Channel

	tracker *tracker.Tracker
}

// NewClient restores the table's cart and offline queue from storage and
// opens the realtime feed. A non-nil notice means the stored cart was
// discarded on reload.
func NewClient(ctx context.Context, cfg ClientConfig, store storage.Store, lg *logger.Logger) (*Client, *cart.Notice, error) {
	if cfg.SubmitAttempts <= 0 {
		cfg.SubmitAttempts = 3
	}
	if cfg.SubmitRetryBase <= 0 {
		cfg.SubmitRetryBase = time.Second
	}
	c := &Client{
		cfg:   cfg,
		lg:    lg,
		httpc: &http.Client{Timeout: 15 * time.Second},
	}

	session, notice := cart.Open(ctx, store, lg, cfg.TableID, cfg.CartFreshness)
	c.Cart = session
	if notice != nil {
		lg.Warn("cart_discarded_on_reload", map[string]any{"reason": notice.Reason})
	}

	c.Queue = offline.NewQueue(store, lg, offline.DispatcherFunc(c.dispatch), offline.Config{
		Key:        "offline_queue:" + cfg.TableID,
		Capacity:   cfg.QueueCapacity,
		MaxRetries: cfg.QueueMaxRetries,
	})
	if err := c.Queue.Load(ctx); err != nil {
		return nil, notice, err
	}

	c.Channel = realtime.NewChannel("orders",
		realtime.NewWSTransport(cfg.FeedURL, cfg.TableID, "orders"),
		lg, realtime.Options{})
	c.Channel.Open(ctx)

	return c, notice, nil
}

// SubmitOrder sends the cart as an order. While offline the submission is
// queued for replay instead; a queued submission still clears the
// processing flag so the cart stays editable.
func (c *Client) SubmitOrder(ctx context.Context, customerName, email, instructions string) (domain.CreateOrderResponse, error) {
	if c.Cart.TableChangePending() {
		return domain.CreateOrderResponse{}, fmt.Errorf("confirm or cancel the table change first")
	}
	lines := c.Cart.Lines()
	if len(lines) == 0 {
		return domain.CreateOrderResponse{}, apperr.New(apperr.CodeCartEmpty)
	}

	items := make([]domain.CreateOrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.CreateOrderItem{ID: l.ID, Name: l.Name, Quantity: l.Quantity, Price: l.Price})
	}
	req := domain.CreateOrderRequest{
		RestaurantID:  c.cfg.RestaurantID,
		TableID:       c.cfg.TableID,
		CustomerName:  customerName,
		CustomerEmail: email,
		Items:         items,
		Instructions:  instructions,
	}

	if !c.Queue.Online() {
		if _, err := c.Queue.Add(ctx, domain.RequestSubmitOrder, req); err != nil {
			return domain.CreateOrderResponse{}, err
		}
		c.lg.Info("order_queued_offline", map[string]any{"table_id": c.cfg.TableID})
		return domain.CreateOrderResponse{}, apperr.New(apperr.CodeNetworkOffline)
	}

	c.Cart.SetProcessing(ctx, true)
	var resp domain.CreateOrderResponse
	err := retry.WithBackoff(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.postOrder(ctx, req)
		if err != nil {
			c.Cart.RecordFailure(ctx, apperr.GetInfo(err).UserMessage)
		}
		return err
	}, c.cfg.SubmitAttempts, c.cfg.SubmitRetryBase)
	c.Cart.SetProcessing(ctx, false)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}

	c.Cart.ClearCart(ctx)
	c.lg.Info("order_submitted", map[string]any{"order_number": resp.OrderNumber, "total": resp.TotalAmount})
	return resp, nil
}

// Track starts following the order's status, preferring push over polling.
func (c *Client) Track(ctx context.Context, orderNumber string) *tracker.Tracker {
	if c.tracker != nil {
		c.tracker.Stop()
	}
	c.tracker = tracker.New(orderNumber, c.Channel,
		tracker.NewHTTPFetcher(c.cfg.TrackingServiceURL), c.cfg.PollInterval, c.lg)
	c.tracker.Start(ctx)
	return c.tracker
}

// Close releases the realtime connection and the tracker.
func (c *Client) Close() {
	if c.tracker != nil {
		c.tracker.Stop()
	}
	c.Channel.Close()
}

// dispatch replays one queued request against the order service.
func (c *Client) dispatch(ctx context.Context, req domain.QueuedRequest) error {
	switch req.Type {
	case domain.RequestSubmitOrder:
		var order domain.CreateOrderRequest
		if err := json.Unmarshal(req.Payload, &order); err != nil {
			return err
		}
		resp, err := c.postOrder(ctx, order)
		if err != nil {
			return err
		}
		c.Cart.ClearCart(ctx)
		c.lg.Info("queued_order_submitted", map[string]any{"order_number": resp.OrderNumber})
		return nil
	case domain.RequestAddToCart, domain.RequestUpdateQuantity, domain.RequestRemoveFromCart:
		// cart mutations are local; replay is a no-op kept for
		// compatibility with older persisted queues
		return nil
	default:
		return fmt.Errorf("unknown queued request type %q", req.Type)
	}
}

func (c *Client) postOrder(ctx context.Context, order domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OrderServiceURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		return domain.CreateOrderResponse{}, apperr.Wrap(apperr.CodeNetworkFailure, err)
	}
	defer httpResp.Body.Close()

	var envelope struct {
		Success bool                       `json:"success"`
		Data    domain.CreateOrderResponse `json:"data"`
		Error   string                     `json:"error"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&envelope); err != nil {
		return domain.CreateOrderResponse{}, apperr.Wrap(apperr.CodeServerInternal, err)
	}
	if httpResp.StatusCode != http.StatusCreated || !envelope.Success {
		return domain.CreateOrderResponse{}, apperr.Wrap(codeForHTTP(httpResp.StatusCode),
			fmt.Errorf("order service: %s", envelope.Error))
	}
	return envelope.Data, nil
}

func codeForHTTP(status int) apperr.Code {
	switch {
	case status == http.StatusNotFound:
		return apperr.CodeOrderNotFound
	case status == http.StatusServiceUnavailable:
		return apperr.CodeServiceUnavailable
	case status >= 500:
		return apperr.CodeServerInternal
	default:
		return apperr.CodeInvalidName
	}
}

// WatchConnectivity probes the order service and flips the queue between
// online and offline, replaying queued work on recovery.
func (c *Client) WatchConnectivity(ctx context.Context, every time.Duration) {
	transitions := make(chan bool, 1)
	go c.Queue.Watch(ctx, transitions)
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				online := c.probe(ctx)
				select {
				case transitions <- online:
				default:
				}
			}
		}
	}()
}

func (c *Client) probe(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.OrderServiceURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// NewTableID mints a table identifier for walk-in demo sessions.
func NewTableID() string { return uuid.NewString() }
