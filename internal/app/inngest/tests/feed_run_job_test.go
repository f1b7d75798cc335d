package tests

import (
	"context"
	"os"
	"testing"
	"time"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/app/inngest/feedrun"
	pkginngest "catalog-feed-miner/internal/pkg/inngest"

	"github.com/inngest/inngestgo"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"
	"go.uber.org/fx"
)

// Sends a real event to a local Inngest dev server. Set INNGEST_E2E=1 to run.
type FeedRunJobTestSuite struct {
	suite.Suite

	app    *fx.App
	client inngestgo.Client
}

func (s *FeedRunJobTestSuite) SetupTest() {
	var client inngestgo.Client

	s.app = fx.New(
		fx.NopLogger,
		fx.Provide(func() *viper.Viper {
			vp := config.NewViper()
			vp.Set("inngest.dev", "1")
			vp.Set("inngest.app_id", "feed-miner-test")
			return vp
		}),
		fx.Provide(config.NewConfig),
		fx.Provide(pkginngest.NewInngestClient),
		fx.Populate(&client),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.Require().NoError(s.app.Start(ctx))
	s.client = client
}

func (s *FeedRunJobTestSuite) TearDownTest() {
	if s.app == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.Require().NoError(s.app.Stop(ctx))
}

func (s *FeedRunJobTestSuite) TestSendFeedRunRequested() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	data := feedrun.RunRequestedEventData{
		URLs: []string{"https://joyandco.com/product/ceramic-table-lamp"},
	}
	eventID, err := feedrun.EventIDForRequest(data, time.Now())
	s.Require().NoError(err)

	evtID, err := s.client.Send(ctx, inngestgo.Event{
		ID:        inngestgo.StrPtr(eventID),
		Name:      feedrun.RunRequestedEventName,
		Data:      map[string]any{"urls": data.URLs},
		Timestamp: inngestgo.Timestamp(time.Now()),
	})
	s.Require().NoError(err)
	s.NotEmpty(evtID)
}

func TestFeedRunJobTestSuite(t *testing.T) {
	if os.Getenv("INNGEST_E2E") != "1" {
		t.Skip("set INNGEST_E2E=1 to send events to a local Inngest dev server")
	}
	suite.Run(t, new(FeedRunJobTestSuite))
}
