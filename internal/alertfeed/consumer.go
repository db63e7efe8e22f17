// Package alertfeed turns backend alert events into immediate refreshes of
// the views that show alerts.
package alertfeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"irriflow.dev/dashboard/pkg/logger"
	"irriflow.dev/dashboard/pkg/metrics"
	"irriflow.dev/dashboard/pkg/mq"
)

// Consumer consumes alert events from RabbitMQ and hands them to a Notifier.
type Consumer struct {
	logger   *slog.Logger
	client   mq.ClientInterface
	notifier Notifier
	metrics  *metrics.MQMetrics
	exchange string
	started  bool
	done     chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger   *slog.Logger
	Client   mq.ClientInterface
	Notifier Notifier
	// Exchange labels metrics.
	Exchange string
	Metrics  *metrics.MQMetrics
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Client == nil {
		return nil, errors.New("mq client cannot be nil")
	}

	if cfg.Notifier == nil {
		return nil, errors.New("notifier cannot be nil")
	}

	return &Consumer{
		logger:   logger.Component(cfg.Logger, "alertfeed"),
		client:   cfg.Client,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		exchange: cfg.Exchange,
		done:     make(chan struct{}),
	}, nil
}

// Start begins consuming events. Processing stops when ctx ends or the
// deliveries channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting alert consumer")

	deliveries, err := c.client.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("alert consumer started, waiting for events")
	c.started = true

	go c.processMessages(ctx, deliveries)

	return nil
}

// Done is closed once processing stopped.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping alert processing")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				return
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery processes a single event delivery.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	event, err := ParseEvent(delivery.Body)
	if err != nil {
		c.logger.Error("failed to parse alert event", "error", err)
		c.failed("parse")
		// Acknowledge message even on parse error to avoid reprocessing
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	c.logger.Info("received alert event",
		"alert_id", event.AlertID,
		"pump_id", event.PumpID,
		"type", event.Type,
	)

	if err := c.notifier.Notify(ctx, event); err != nil {
		c.logger.Error("failed to handle alert event",
			"alert_id", event.AlertID,
			"error", err,
		)
		c.failed("notify")
		// Nack the message so it can be reprocessed
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
		return
	}
	if c.metrics != nil {
		c.metrics.MessagesConsumed.WithLabelValues(c.exchange).Inc()
	}
}

func (c *Consumer) failed(reason string) {
	if c.metrics != nil {
		c.metrics.ConsumptionFailures.WithLabelValues(c.exchange, reason).Inc()
	}
}

// Stop closes the MQ client and waits for processing to end.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping alert consumer")

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	if c.started {
		<-c.done
	}

	c.logger.Info("alert consumer stopped")
	return nil
}
