package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
	"github.com/cmskit/clientlogin/internal/provider"
	"github.com/cmskit/clientlogin/sessionstore"
)

type remoteFixture struct {
	auth     *Authenticator
	tokens   *sessionstore.TokenStore
	profiles *fakeProfiles
	sessions *fakeSessions
	provider *fakeProvider
	events   *recordingDispatcher
}

func newRemoteFixture(t *testing.T) *remoteFixture {
	t.Helper()

	cfg := domain.ProviderConfig{
		Name:            "Google",
		Type:            domain.ProviderTypeOAuth2,
		Enabled:         true,
		ClientID:        "client-id",
		ClientSecret:    "client-secret",
		Scopes:          []string{"email"},
		LoginExpiryDays: 14,
	}
	p := &fakeProvider{
		name: "Google",
		exchangeToken: &oauth2.Token{
			AccessToken:  "remote-access-token",
			RefreshToken: "remote-refresh-token",
			Expiry:       time.Now().Add(time.Hour),
		},
		owner: &domain.ResourceOwnerData{UID: "owner-1", Email: "owner@example.com"},
	}

	f := &remoteFixture{
		tokens:   sessionstore.NewTokenStore(newMapStore()),
		profiles: newFakeProfiles(),
		sessions: newFakeSessions(),
		provider: p,
		events:   &recordingDispatcher{},
	}
	f.auth = NewAuthenticator(Options{
		Registry: &fakeRegistry{
			configs:   map[string]domain.ProviderConfig{"Google": cfg},
			providers: map[string]provider.OAuth2Provider{"Google": p},
		},
		Profiles:   f.profiles,
		Sessions:   f.sessions,
		Tokens:     f.tokens,
		Dispatcher: f.events,
		RootURL:    "http://cms.example",
	})
	return f
}

func TestRemoteLoginStoresStateAndRedirects(t *testing.T) {
	f := newRemoteFixture(t)
	ctx := context.Background()

	outcome, err := f.auth.Login(ctx, Request{SessionID: "sid-1", Provider: "Google", ReturnURL: "/"})
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Contains(t, outcome.RedirectURL, "https://provider.example/authorize")
	assert.Contains(t, outcome.RedirectURL, "http://cms.example/authenticate/endpoint")

	state, err := f.tokens.GetToken(ctx, "sid-1", sessionstore.StateTokenName)
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.Contains(t, outcome.RedirectURL, state)
}

func TestRemoteCallbackStateMismatchSkipsExchange(t *testing.T) {
	f := newRemoteFixture(t)
	ctx := context.Background()

	_, err := f.tokens.SetStateToken(ctx, "sid-1", "expected-state")
	require.NoError(t, err)

	outcome, err := f.auth.Process(ctx, Request{
		SessionID: "sid-1",
		Provider:  "Google",
		Code:      "auth-code",
		State:     "forged-state",
	})
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.True(t, clerrors.IsKind(err, clerrors.KindInvalidRequest))
	assert.Zero(t, f.provider.exchangeCalls, "a mismatched state must never reach the provider")

	// The nonce is single-use even on mismatch.
	state, err := f.tokens.GetToken(ctx, "sid-1", sessionstore.StateTokenName)
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestRemoteCallbackMissingState(t *testing.T) {
	f := newRemoteFixture(t)
	ctx := context.Background()

	_, err := f.tokens.SetStateToken(ctx, "sid-1", "expected-state")
	require.NoError(t, err)

	_, err = f.auth.Process(ctx, Request{
		SessionID: "sid-1",
		Provider:  "Google",
		Code:      "auth-code",
	})
	require.Error(t, err)
	assert.True(t, clerrors.IsKind(err, clerrors.KindInvalidRequest))
	assert.Zero(t, f.provider.exchangeCalls)
}

func TestRemoteCallbackMissingCode(t *testing.T) {
	f := newRemoteFixture(t)

	_, err := f.auth.Process(context.Background(), Request{
		SessionID: "sid-1",
		Provider:  "Google",
		State:     "some-state",
	})
	require.Error(t, err)
	assert.True(t, clerrors.IsKind(err, clerrors.KindInvalidRequest))
	assert.Zero(t, f.provider.exchangeCalls)
}

func TestRemoteCallbackSuccess(t *testing.T) {
	f := newRemoteFixture(t)
	ctx := context.Background()

	_, err := f.tokens.SetStateToken(ctx, "sid-1", "expected-state")
	require.NoError(t, err)

	outcome, err := f.auth.Process(ctx, Request{
		SessionID: "sid-1",
		Provider:  "Google",
		ReturnURL: "/dashboard",
		Code:      "auth-code",
		State:     "expected-state",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, "/dashboard", outcome.RedirectURL)

	require.NotNil(t, outcome.Profile)
	assert.Equal(t, "Google", outcome.Profile.Provider)
	assert.Equal(t, "owner-1", outcome.Profile.ResourceOwnerID)
	assert.Equal(t, "remote-refresh-token", outcome.Profile.RefreshToken)

	require.NotNil(t, outcome.Cookie)
	assert.Equal(t, "remote-access-token", outcome.Cookie.Value)
	assert.False(t, outcome.Cookie.Clear)

	session, err := f.sessions.FindByAccessToken(ctx, "remote-access-token")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, outcome.Profile.GUID, session.GUID)

	handle, err := f.tokens.GetAccessToken(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "remote-access-token", handle)

	assert.Equal(t, 1, f.events.count(domain.EventLogin))
}

func TestRemoteCallbackDisabledProfile(t *testing.T) {
	f := newRemoteFixture(t)
	ctx := context.Background()

	f.profiles.add(&domain.Profile{
		GUID:            "guid-disabled",
		Provider:        "Google",
		ResourceOwnerID: "owner-1",
		Enabled:         false,
	})

	_, err := f.tokens.SetStateToken(ctx, "sid-1", "expected-state")
	require.NoError(t, err)

	outcome, err := f.auth.Process(ctx, Request{
		SessionID: "sid-1",
		Provider:  "Google",
		Code:      "auth-code",
		State:     "expected-state",
	})
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.True(t, clerrors.IsKind(err, clerrors.KindDisabledProvider))
	assert.Zero(t, f.sessions.upserts, "a disabled profile must not get a session")
	assert.Zero(t, f.events.count(domain.EventLogin))
}

func TestRemoteRepeatedLoginKeepsOneProfile(t *testing.T) {
	f := newRemoteFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.tokens.SetStateToken(ctx, "sid-1", "expected-state")
		require.NoError(t, err)
		_, err = f.auth.Process(ctx, Request{
			SessionID: "sid-1",
			Provider:  "Google",
			Code:      "auth-code",
			State:     "expected-state",
		})
		require.NoError(t, err)
	}

	p, err := f.profiles.FindByResourceOwner(ctx, "Google", "owner-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, len(f.profiles.byKey), "repeated logins must reuse the profile record")
}

func TestRemoteExchangeTimeoutRetriedOnce(t *testing.T) {
	f := newRemoteFixture(t)
	ctx := context.Background()

	// First exchange times out, the retry succeeds.
	f.provider.exchangeErrOnce = fmt.Errorf("token endpoint: %w", context.DeadlineExceeded)

	_, err := f.tokens.SetStateToken(ctx, "sid-1", "expected-state")
	require.NoError(t, err)

	outcome, err := f.auth.Process(ctx, Request{
		SessionID: "sid-1",
		Provider:  "Google",
		ReturnURL: "/",
		Code:      "auth-code",
		State:     "expected-state",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Cookie)
	assert.Equal(t, 2, f.provider.exchangeCalls, "a timeout gets exactly one retry")
}

func TestRemoteExchangeTimeoutTwiceIsFatal(t *testing.T) {
	f := newRemoteFixture(t)
	ctx := context.Background()

	f.provider.exchangeErr = fmt.Errorf("token endpoint: %w", context.DeadlineExceeded)

	_, err := f.tokens.SetStateToken(ctx, "sid-1", "expected-state")
	require.NoError(t, err)

	outcome, err := f.auth.Process(ctx, Request{
		SessionID: "sid-1",
		Provider:  "Google",
		Code:      "auth-code",
		State:     "expected-state",
	})
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.True(t, clerrors.IsKind(err, clerrors.KindInvalidRequest))
	assert.Equal(t, 2, f.provider.exchangeCalls, "the second timeout is fatal")
}

func TestRemoteExchangeErrorNotRetried(t *testing.T) {
	f := newRemoteFixture(t)
	ctx := context.Background()

	f.provider.exchangeErr = errors.New("invalid_grant")

	_, err := f.tokens.SetStateToken(ctx, "sid-1", "expected-state")
	require.NoError(t, err)

	_, err = f.auth.Process(ctx, Request{
		SessionID: "sid-1",
		Provider:  "Google",
		Code:      "auth-code",
		State:     "expected-state",
	})
	require.Error(t, err)
	assert.Equal(t, 1, f.provider.exchangeCalls, "only timeouts are retried")
}

func TestRemoteLoginUnknownProvider(t *testing.T) {
	f := newRemoteFixture(t)

	_, err := f.auth.Login(context.Background(), Request{SessionID: "sid-1", Provider: "Nosuch"})
	require.Error(t, err)
	assert.True(t, clerrors.IsKind(err, clerrors.KindInvalidProvider))
}
