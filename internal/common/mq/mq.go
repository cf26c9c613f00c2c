package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"tableorder/internal/domain"
)

// Exchange/queue topology. orders_topic routes kitchen work items by
// priority; changes_fanout carries row-change events for the feed gateway.
const (
	ExchangeOrders  = "orders_topic"
	ExchangeChanges = "changes_fanout"
	ExchangeDLX     = "dlx"

	QueueKitchen = "kitchen.q"
	QueueChanges = "changes.q"
	QueueDLQ     = "dlq"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func Dial(host string, port int, user, pass string) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", user, pass, host, port)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) DeclareAll() error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("nil channel")
	}
	if err := c.ch.ExchangeDeclare(ExchangeOrders, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(ExchangeChanges, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(ExchangeDLX, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	_, err := c.ch.QueueDeclare(QueueKitchen, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    ExchangeDLX,
		"x-dead-letter-routing-key": "dlq",
	})
	if err != nil {
		return err
	}
	if _, err = c.ch.QueueDeclare(QueueChanges, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err = c.ch.QueueDeclare(QueueDLQ, true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(QueueKitchen, "kitchen.*", ExchangeOrders, false, nil); err != nil {
		return err
	}
	return c.ch.QueueBind(QueueChanges, "", ExchangeChanges, false, nil)
}

func (c *Client) PublishPersistent(ctx context.Context, exchange, key string, priority uint8, body []byte) error {
	return c.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Priority:     priority,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		Body:         body,
	})
}

// PublishChange fans a row-change event out to the feed gateways.
func (c *Client) PublishChange(ctx context.Context, ev domain.ChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	return c.PublishPersistent(ctx, ExchangeChanges, "", 0, body)
}

func (c *Client) Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return c.ch.Consume(queue, consumer, false, false, false, false, nil)
}
