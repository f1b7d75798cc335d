package amqpclient

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
)

const (
	DefaultExchange   = "events"
	DefaultRoutingKey = "feed.run.requested.v1"
	DefaultQueue      = "feed.run.requested.v1"
)

// Topology resolves the exchange, queue and routing key with defaults applied.
type Topology struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

func TopologyFromConfig(cfg *config.Config) Topology {
	t := Topology{Exchange: DefaultExchange, Queue: DefaultQueue, RoutingKey: DefaultRoutingKey}
	if cfg == nil {
		return t
	}
	if v := strings.TrimSpace(cfg.RabbitMQ.Exchange); v != "" {
		t.Exchange = v
	}
	if v := strings.TrimSpace(cfg.RabbitMQ.Queue); v != "" {
		t.Queue = v
	}
	if v := strings.TrimSpace(cfg.RabbitMQ.RoutingKey); v != "" {
		t.RoutingKey = v
	}
	return t
}

func (t Topology) DeadLetterExchange() string { return t.Exchange + ".dlx" }
func (t Topology) DeadLetterQueue() string    { return t.Queue + ".dlq" }

type NewAMQPParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Logger    *zap.SugaredLogger
}

type AMQPOut struct {
	fx.Out

	Conn    *amqp.Connection
	Channel *amqp.Channel
}

// NewAMQP dials RabbitMQ. Both outputs are nil when RABBITMQ_URL is unset.
func NewAMQP(p NewAMQPParams) (AMQPOut, error) {
	url := ""
	if p.Config != nil {
		url = strings.TrimSpace(p.Config.RabbitMQ.URL)
	}
	if url == "" {
		p.Logger.Infow("rabbitmq_disabled", "reason", "missing RABBITMQ_URL")
		return AMQPOut{Conn: nil, Channel: nil}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return AMQPOut{}, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return AMQPOut{}, fmt.Errorf("rabbitmq channel: %w", err)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = ch.Close()
			_ = conn.Close()
			return nil
		},
	})

	t := TopologyFromConfig(p.Config)
	p.Logger.Infow(
		"rabbitmq_enabled",
		"exchange", t.Exchange,
		"queue", t.Queue,
		"routing_key", t.RoutingKey,
		"prefetch", p.Config.RabbitMQ.Prefetch,
		"declare_topology", p.Config.RabbitMQ.DeclareTopology,
	)

	return AMQPOut{Conn: conn, Channel: ch}, nil
}
