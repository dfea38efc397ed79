package auth

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmskit/clientlogin/domain"
	"github.com/cmskit/clientlogin/internal/metrics"
)

func TestActiveSessionsGaugeTracksLoginAndLogout(t *testing.T) {
	metrics.Init(prometheus.NewRegistry())

	f := newLocalFixture(t)
	f.addUser(t, "alice", "s3cret", true)
	ctx := context.Background()

	outcome, err := f.auth.Process(ctx, Request{
		SessionID: "sid-1",
		Provider:  domain.LocalProviderName,
		Username:  "alice",
		Password:  "s3cret",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Cookie)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActiveSessionsGauge))

	_, err = f.auth.Logout(ctx, Request{
		SessionID:   "sid-1",
		ReturnURL:   "/",
		CookieToken: outcome.Cookie.Value,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveSessionsGauge))

	// Logging out without a session moves nothing.
	_, err = f.auth.Logout(ctx, Request{SessionID: "sid-2", ReturnURL: "/"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveSessionsGauge))
}
