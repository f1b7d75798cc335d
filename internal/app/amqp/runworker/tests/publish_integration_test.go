package tests

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/app/amqp/runworker"
	"catalog-feed-miner/internal/pkg/amqpclient"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Publishes a run request to a real broker; a running worker picks it up.
type RunWorkerPublishSuite struct {
	suite.Suite

	cfg *config.Config
}

func TestRunWorkerPublishSuite(t *testing.T) {
	suite.Run(t, new(RunWorkerPublishSuite))
}

func (s *RunWorkerPublishSuite) SetupTest() {
	if strings.TrimSpace(os.Getenv("RABBITMQ_URL")) == "" {
		s.T().Skip("RABBITMQ_URL is required for integration test")
	}

	cfg, err := config.NewConfig(config.NewViper())
	require.NoError(s.T(), err)
	s.cfg = cfg
}

func (s *RunWorkerPublishSuite) TestPublishRunRequested() {
	conn, err := amqp.Dial(strings.TrimSpace(s.cfg.RabbitMQ.URL))
	require.NoError(s.T(), err)
	ch, err := conn.Channel()
	require.NoError(s.T(), err)
	defer func() {
		_ = ch.Close()
		_ = conn.Close()
	}()

	topo := amqpclient.TopologyFromConfig(s.cfg)
	require.NoError(s.T(), ch.ExchangeDeclare(topo.Exchange, "topic", true, false, false, false, nil))

	urls := []string{"https://joyandco.com/product/ceramic-table-lamp"}
	if v := strings.TrimSpace(os.Getenv("AMQP_E2E_URL")); v != "" {
		urls = []string{v}
	}

	eventID := uuid.NewString()
	body, err := json.Marshal(runworker.RunRequestedEnvelope{
		EventName: runworker.RunRequestedEventName,
		EventID:   eventID,
		TS:        time.Now().UTC(),
		Data:      runworker.RunRequestedEventData{URLs: urls},
	})
	require.NoError(s.T(), err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx, topo.Exchange, topo.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    eventID,
		Type:         runworker.RunRequestedEventName,
		Body:         body,
	})
	require.NoError(s.T(), err)
}
