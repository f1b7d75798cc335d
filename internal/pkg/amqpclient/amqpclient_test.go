package amqpclient

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
)

func TestTopologyFromConfig_Defaults(t *testing.T) {
	top := TopologyFromConfig(&config.Config{})
	require.Equal(t, Topology{Exchange: "events", Queue: "feed.run.requested.v1", RoutingKey: "feed.run.requested.v1"}, top)
	require.Equal(t, "events.dlx", top.DeadLetterExchange())
	require.Equal(t, "feed.run.requested.v1.dlq", top.DeadLetterQueue())
}

func TestTopologyFromConfig_Overrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.RabbitMQ.Exchange = "feeds"
	cfg.RabbitMQ.Queue = " feedminer.runs "
	top := TopologyFromConfig(cfg)
	require.Equal(t, "feeds", top.Exchange)
	require.Equal(t, "feedminer.runs", top.Queue)
	require.Equal(t, DefaultRoutingKey, top.RoutingKey)
}

func TestNewAMQP_DisabledWithoutURL(t *testing.T) {
	out, err := NewAMQP(NewAMQPParams{Config: &config.Config{}, Logger: zap.NewNop().Sugar()})
	require.NoError(t, err)
	require.Nil(t, out.Conn)
	require.Nil(t, out.Channel)
}
