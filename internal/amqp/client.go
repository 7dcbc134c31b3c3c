package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"spesa/internal/core"
	applog "spesa/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client publishes and consumes ItemsChangedMessage over a durable direct
// exchange. Publishing goes through a circuit breaker so a dead broker never
// stalls the item store.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *applog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	failureCount int64
	state        int32
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string, logger *applog.Logger) (*Client, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(applog.ComponentAMQP),
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) log() *applog.Logger {
	if c.logger == nil {
		c.logger = applog.Discard()
	}
	return c.logger
}

// connect dials the broker and declares the topology. Callers hold no lock.
func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on a direct exchange
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// activeChannel returns an open channel, reconnecting when the previous one
// was closed by the broker.
func (c *Client) activeChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch != nil && !ch.IsClosed() {
		return ch, nil
	}

	c.closeConn()
	if err := c.connect(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel, nil
}

// ItemsChanged publishes the change. It satisfies store.Observer.
func (c *Client) ItemsChanged(ctx context.Context, change core.Change) error {
	return c.PublishItemsChanged(ctx, NewItemsChangedMessage(change))
}

// PublishItemsChanged publishes msg as a persistent JSON message.
func (c *Client) PublishItemsChanged(ctx context.Context, msg *ItemsChangedMessage) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", msg.Op, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.activeChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.closeConn()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.log().DebugContext(ctx, "Published items changed message",
		applog.FieldOperation, string(msg.Op),
		applog.FieldItemID, msg.ItemID,
		applog.FieldItemCount, msg.Count,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// Handler processes one decoded message. A returned error requeues it.
type Handler func(ctx context.Context, msg *ItemsChangedMessage) error

// Consume delivers messages to handler until ctx is cancelled, reconnecting
// with exponential backoff when the broker drops the channel.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			c.log().InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}

		wait := exponentialBackoff(attempt)
		attempt++
		c.log().WarnContext(ctx, "Consumer interrupted, reconnecting",
			applog.FieldError, err, "retry_in", wait.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		c.closeConn()
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler Handler, started func()) error {
	ch, err := c.activeChannel()
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	started()

	c.log().InfoContext(ctx, "Started consuming items changed messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

func (c *Client) handleDelivery(ctx context.Context, delivery amqp091.Delivery, handler Handler) {
	msg, err := ItemsChangedMessageFromJSON(delivery.Body)
	if err != nil {
		c.log().ErrorContext(ctx, "Failed to unmarshal message", applog.FieldError, err)
		delivery.Nack(false, false) // drop, redelivery cannot fix it
		return
	}

	if err := handler(ctx, msg); err != nil {
		c.log().ErrorContext(ctx, "Failed to handle message",
			applog.FieldError, err,
			applog.FieldOperation, string(msg.Op))
		delivery.Nack(false, true)
		return
	}

	delivery.Ack(false)
	c.log().DebugContext(ctx, "Processed items changed message",
		applog.FieldOperation, string(msg.Op),
		applog.FieldItemCount, msg.Count)
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	// A failed probe in half-open reopens immediately
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.log().Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeConn() {
	c.mu.Lock()
	ch, conn := c.channel, c.conn
	c.channel, c.conn = nil, nil
	c.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	if conn != nil {
		conn.Close()
	}
}

func (c *Client) Close() error {
	c.closeConn()
	return nil
}
