package runworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/pkg/amqpclient"
)

var ErrHandlerMissing = errors.New("runworker handler missing")

type Handler interface {
	Handle(ctx context.Context, msg RunRequestedEnvelope) error
}

// channel is the part of *amqp.Channel the consumer uses.
type channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

type Consumer struct {
	cfg      *config.Config
	channel  channel
	handler  Handler
	logger   *zap.SugaredLogger
	topology amqpclient.Topology

	consumerTag string
	done        chan struct{}
}

type NewConsumerParams struct {
	fx.In

	Config  *config.Config
	Channel *amqp.Channel `optional:"true"`
	Handler Handler       `optional:"true"`
	Logger  *zap.SugaredLogger
}

func NewConsumer(p NewConsumerParams) *Consumer {
	var ch channel
	if p.Channel != nil {
		ch = p.Channel
	}
	return newConsumer(p.Config, ch, p.Handler, p.Logger)
}

func newConsumer(cfg *config.Config, ch channel, h Handler, logger *zap.SugaredLogger) *Consumer {
	if h == nil {
		h = missingHandler{}
	}
	return &Consumer{
		cfg:         cfg,
		channel:     ch,
		handler:     h,
		logger:      logger,
		topology:    amqpclient.TopologyFromConfig(cfg),
		consumerTag: "runworker",
		done:        make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	if c.cfg == nil || strings.TrimSpace(c.cfg.RabbitMQ.URL) == "" || c.channel == nil {
		c.logger.Infow("runworker_disabled", "reason", "missing rabbitmq config or channel")
		close(c.done)
		return nil
	}

	if c.cfg.RabbitMQ.DeclareTopology {
		if err := c.declareTopology(); err != nil {
			return err
		}
	}

	prefetch := c.cfg.RabbitMQ.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := c.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("rabbitmq qos: %w", err)
	}

	deliveries, err := c.channel.Consume(
		c.topology.Queue,
		c.consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}

	c.logger.Infow(
		"runworker_started",
		"queue", c.topology.Queue,
		"prefetch", prefetch,
	)

	// the start ctx ends once fx has started; runs outlive it
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(c.done)
		for d := range deliveries {
			c.handleDelivery(runCtx, d)
		}
	}()

	return nil
}

// Stop cancels the subscription and waits for an in-flight run to finish or ctx to end.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.channel == nil {
		return nil
	}
	_ = c.channel.Cancel(c.consumerTag, false)
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) declareTopology() error {
	t := c.topology
	dlx := t.DeadLetterExchange()
	dlq := t.DeadLetterQueue()

	if err := c.channel.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq exchange declare %q: %w", t.Exchange, err)
	}
	if err := c.channel.ExchangeDeclare(dlx, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq dlx exchange declare %q: %w", dlx, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange": dlx,
	}
	if _, err := c.channel.QueueDeclare(t.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("rabbitmq queue declare %q: %w", t.Queue, err)
	}
	if _, err := c.channel.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq dlq declare %q: %w", dlq, err)
	}

	if err := c.channel.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue bind queue=%q key=%q ex=%q: %w", t.Queue, t.RoutingKey, t.Exchange, err)
	}
	if err := c.channel.QueueBind(dlq, t.RoutingKey, dlx, false, nil); err != nil {
		return fmt.Errorf("rabbitmq dlq bind queue=%q key=%q ex=%q: %w", dlq, t.RoutingKey, dlx, err)
	}

	c.logger.Infow(
		"runworker_topology_declared",
		"exchange", t.Exchange,
		"queue", t.Queue,
		"routing_key", t.RoutingKey,
		"dlx", dlx,
		"dlq", dlq,
	)
	return nil
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	eventID := strings.TrimSpace(d.MessageId)
	if eventID == "" {
		eventID = strings.TrimSpace(d.CorrelationId)
	}

	var msg RunRequestedEnvelope
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Errorw("runworker_invalid_json",
			"err", err,
			"message_id", eventID,
		)
		_ = d.Reject(false)
		return
	}

	if strings.TrimSpace(msg.EventID) == "" {
		msg.EventID = eventID
	}

	if strings.TrimSpace(msg.EventID) == "" {
		c.logger.Errorw("runworker_missing_event_id",
			"message_id", eventID,
			"event_name", msg.EventName,
		)
		_ = d.Reject(false)
		return
	}

	if err := c.handler.Handle(ctx, msg); err != nil {
		c.logger.Errorw("runworker_handle_failed",
			"err", err,
			"event_id", msg.EventID,
			"event_name", msg.EventName,
		)
		_ = d.Reject(false)
		return
	}

	_ = d.Ack(false)
}

type missingHandler struct{}

func (missingHandler) Handle(context.Context, RunRequestedEnvelope) error {
	return ErrHandlerMissing
}
