// Package mq provides a RabbitMQ fanout client with automatic reconnection,
// used to broadcast and observe alert events between irriflow processes.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"irriflow.dev/dashboard/pkg/logger"
	"irriflow.dev/dashboard/pkg/metrics"
)

const (
	// When reconnecting to the server after connection failure.
	reconnectDelay = 5 * time.Second

	// When setting up the channel after a channel exception.
	reInitDelay = 2 * time.Second

	initialBackoff    = 100 * time.Millisecond
	maxBackoff        = 10 * time.Second
	backoffMultiplier = 2
	maxRetryAttempts  = 5
)

var (
	errNotConnected       = errors.New("not connected to a server")
	errAlreadyClosed      = errors.New("already closed: not connected to the server")
	errShutdown           = errors.New("client is shutting down")
	errMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
	errNack               = errors.New("publish not acknowledged by the broker")
)

// Config describes the exchange a Client attaches to.
type Config struct {
	// URL is the AMQP connection string.
	URL string
	// Exchange is the fanout exchange events are published to.
	Exchange string
	// Queue is the queue bound to Exchange for consuming. When empty the
	// broker names an exclusive, auto-deleted queue for this connection, so
	// every subscriber process receives its own copy of each event.
	Queue string
	// Logger receives connection lifecycle records.
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *metrics.MQMetrics
}

// Client owns one AMQP connection and channel and transparently rebuilds
// them when the broker goes away.
type Client struct {
	m               sync.Mutex
	publishMu       sync.Mutex
	logger          *slog.Logger
	metrics         *metrics.MQMetrics
	exchange        string
	queue           string
	connection      *amqp.Connection
	channel         *amqp.Channel
	boundQueue      string
	done            chan struct{}
	ready           chan struct{}
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	isReady         bool
	closed          bool
}

// New validates cfg and starts connecting in the background.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp URL cannot be empty")
	}
	if cfg.Exchange == "" {
		return nil, errors.New("exchange cannot be empty")
	}

	client := &Client{
		logger:   logger.Component(cfg.Logger, "mq").With("exchange", cfg.Exchange),
		metrics:  cfg.Metrics,
		exchange: cfg.Exchange,
		queue:    cfg.Queue,
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
	}
	go client.handleReconnect(cfg.URL)
	return client, nil
}

// Exchange returns the exchange this client publishes to and consumes from.
func (client *Client) Exchange() string {
	return client.exchange
}

// handleReconnect waits for a connection error on notifyConnClose, and then
// continuously attempts to reconnect.
func (client *Client) handleReconnect(addr string) {
	for {
		client.setReady(false)
		client.logger.Info("attempting to connect")
		if client.metrics != nil {
			client.metrics.ReconnectAttempts.Inc()
		}

		conn, err := client.connect(addr)
		if err != nil {
			client.logger.Error("failed to connect, retrying", "error", err)

			select {
			case <-client.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := client.handleReInit(conn); done {
			return
		}
	}
}

func (client *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		if client.metrics != nil {
			client.metrics.ConnectionStatus.Set(0)
		}
		return nil, err
	}

	client.m.Lock()
	if client.closed {
		client.m.Unlock()
		_ = conn.Close()
		return nil, errShutdown
	}
	client.connection = conn
	client.notifyConnClose = make(chan *amqp.Error, 1)
	conn.NotifyClose(client.notifyConnClose)
	client.m.Unlock()

	client.logger.Info("connected")
	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(1)
	}
	return conn, nil
}

// handleReInit waits for a channel error and then re-initializes the
// channel. It returns true once the client is shutting down.
func (client *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		client.setReady(false)

		if err := client.init(conn); err != nil {
			client.logger.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-client.done:
				return true
			case <-client.notifyConnClose:
				client.logger.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-client.done:
			return true
		case <-client.notifyConnClose:
			client.logger.Info("connection closed, reconnecting")
			return false
		case <-client.notifyChanClose:
			client.logger.Info("channel closed, re-running init")
		}
	}
}

// init opens a confirm-mode channel, declares the fanout exchange and binds
// the consuming queue to it.
func (client *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(
		client.exchange,
		amqp.ExchangeFanout,
		true,  // Durable
		false, // Auto-delete
		false, // Internal
		false, // No-wait
		nil,
	); err != nil {
		return err
	}

	exclusive := client.queue == ""
	q, err := ch.QueueDeclare(
		client.queue,
		!exclusive, // Durable
		exclusive,  // Delete when unused
		exclusive,  // Exclusive
		false,      // No-wait
		nil,
	)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "", client.exchange, false, nil); err != nil {
		return err
	}

	client.m.Lock()
	client.channel = ch
	client.boundQueue = q.Name
	client.notifyChanClose = make(chan *amqp.Error, 1)
	client.notifyConfirm = make(chan amqp.Confirmation, 1)
	ch.NotifyClose(client.notifyChanClose)
	ch.NotifyPublish(client.notifyConfirm)
	client.m.Unlock()

	client.setReady(true)
	client.logger.Info("channel ready", "queue", q.Name)
	return nil
}

// setReady flips readiness and keeps the ready channel in step: closed while
// ready, fresh while not.
func (client *Client) setReady(ready bool) {
	client.m.Lock()
	defer client.m.Unlock()

	if ready == client.isReady {
		return
	}
	client.isReady = ready
	if ready {
		close(client.ready)
	} else {
		client.ready = make(chan struct{})
	}
}

// WaitReady blocks until the channel is usable, the context ends or the
// client is closed.
func (client *Client) WaitReady(ctx context.Context) error {
	client.m.Lock()
	ready := client.ready
	client.m.Unlock()

	select {
	case <-ready:
		return nil
	case <-client.done:
		return errShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish sends body to the exchange and waits for the broker confirmation.
// While disconnected it retries with exponential backoff, giving up after
// maxRetryAttempts.
func (client *Client) Publish(ctx context.Context, body []byte) error {
	if client.metrics != nil {
		timer := prometheus.NewTimer(client.metrics.PublishDuration.WithLabelValues(client.exchange))
		defer timer.ObserveDuration()
	}

	client.publishMu.Lock()
	defer client.publishMu.Unlock()

	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		if attempt >= maxRetryAttempts {
			client.logger.Error("maximum retry attempts exceeded", "max_attempts", maxRetryAttempts)
			client.publishFailed("max_retries_exceeded")
			return errMaxRetriesExceeded
		}

		err := client.publishOnce(ctx, body)
		if err == nil {
			if client.metrics != nil {
				client.metrics.MessagesPublished.WithLabelValues(client.exchange).Inc()
			}
			if attempt > 0 {
				client.logger.Info("publish confirmed after retries", "retry_count", attempt)
			}
			return nil
		}
		if ctx.Err() != nil {
			client.publishFailed("context_canceled")
			return ctx.Err()
		}

		client.logger.Warn("publish failed, retrying with backoff", "error", err, "backoff", backoff, "retry_count", attempt)
		select {
		case <-ctx.Done():
			client.publishFailed("context_canceled")
			return ctx.Err()
		case <-client.done:
			return errShutdown
		case <-time.After(backoff):
		}
		backoff = min(backoff*backoffMultiplier, maxBackoff)
	}
}

func (client *Client) publishOnce(ctx context.Context, body []byte) error {
	client.m.Lock()
	if !client.isReady {
		client.m.Unlock()
		return errNotConnected
	}
	ch, confirms := client.channel, client.notifyConfirm
	client.m.Unlock()

	if err := ch.PublishWithContext(ctx, client.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         body,
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case confirm, ok := <-confirms:
		if !ok {
			return errNotConnected
		}
		if !confirm.Ack {
			return errNack
		}
		return nil
	}
}

func (client *Client) publishFailed(reason string) {
	if client.metrics != nil {
		client.metrics.PublishFailures.WithLabelValues(client.exchange, reason).Inc()
	}
}

// Consume returns a channel of deliveries from the bound queue. The channel
// keeps delivering across reconnects and is closed when ctx ends or the
// client is closed. Every delivery must be acked or nacked by the caller.
func (client *Client) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	client.m.Lock()
	closed := client.closed
	client.m.Unlock()
	if closed {
		return nil, errShutdown
	}

	out := make(chan amqp.Delivery)
	go client.forward(ctx, out)
	return out, nil
}

func (client *Client) forward(ctx context.Context, out chan<- amqp.Delivery) {
	defer close(out)

	for {
		if err := client.WaitReady(ctx); err != nil {
			return
		}

		deliveries, err := client.subscribe()
		if err != nil {
			client.logger.Warn("failed to start consuming, waiting for channel", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-client.done:
				return
			case <-time.After(reInitDelay):
			}
			continue
		}

		for d := range deliveries {
			select {
			case out <- d:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return
			case <-client.done:
				return
			}
		}
		// deliveries closes when the channel dies; loop to wait for re-init.
	}
}

func (client *Client) subscribe() (<-chan amqp.Delivery, error) {
	client.m.Lock()
	if !client.isReady {
		client.m.Unlock()
		return nil, errNotConnected
	}
	ch, queue := client.channel, client.boundQueue
	client.m.Unlock()

	if err := ch.Qos(
		1,     // prefetchCount
		0,     // prefetchSize
		false, // global
	); err != nil {
		return nil, err
	}

	return ch.Consume(
		queue,
		"",    // Consumer
		false, // Auto-Ack
		false, // Exclusive
		false, // No-local
		false, // No-Wait
		nil,
	)
}

// Close shuts down the channel and connection. A second call returns an error.
func (client *Client) Close() error {
	client.m.Lock()
	defer client.m.Unlock()

	if client.closed {
		return errAlreadyClosed
	}
	client.closed = true
	close(client.done)

	var errs []error
	if client.channel != nil {
		if err := client.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if client.connection != nil {
		if err := client.connection.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if client.isReady {
		client.isReady = false
		client.ready = make(chan struct{})
	}
	if client.metrics != nil {
		client.metrics.ConnectionStatus.Set(0)
	}
	return errors.Join(errs...)
}
