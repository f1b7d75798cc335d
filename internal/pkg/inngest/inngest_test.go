package inngest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"catalog-feed-miner/config"
)

func TestNewInngestClient_Disabled(t *testing.T) {
	c, err := NewInngestClient(&config.Config{})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), map[string]any{"name": "feed/run.requested"})
	require.ErrorIs(t, err, ErrDisabled)

	w := httptest.NewRecorder()
	c.Serve().ServeHTTP(w, httptest.NewRequest(http.MethodPut, DefaultServePath, nil))
	require.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestServePath(t *testing.T) {
	require.Equal(t, DefaultServePath, ServePath(nil))

	cfg := &config.Config{}
	cfg.Inngest.ServePath = "/hooks/inngest"
	require.Equal(t, "/hooks/inngest", ServePath(cfg))
	require.False(t, Enabled(cfg))

	cfg.Inngest.AppID = "catalog-feed-miner"
	require.True(t, Enabled(cfg))
}
