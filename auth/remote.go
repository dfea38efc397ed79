package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
	"github.com/cmskit/clientlogin/internal/metrics"
	"github.com/cmskit/clientlogin/internal/provider"
)

// providerCallTimeout bounds each call against the identity provider.
const providerCallTimeout = 10 * time.Second

// RemoteHandler is the OAuth2 authorization-code strategy. Login redirects
// the visitor to the provider with a fresh CSRF nonce; Process validates the
// callback, exchanges the code, fetches the resource owner, and persists the
// profile and session.
type RemoteHandler struct {
	a        *Authenticator
	cfg      domain.ProviderConfig
	provider provider.OAuth2Provider
}

// Login stores a fresh state token in the browser session and returns the
// provider's authorization URL.
func (h *RemoteHandler) Login(ctx context.Context, req Request) (*Outcome, error) {
	state, err := GenerateStateToken()
	if err != nil {
		return nil, clerrors.NewConfiguration("could not generate a state token")
	}
	if _, err := h.a.tokens.SetStateToken(ctx, req.SessionID, state); err != nil {
		return nil, err
	}

	authURL, err := h.provider.GetAuthCodeURL(state, h.a.redirectURI(h.cfg.Name), oauth2.AccessTypeOffline)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("provider", h.cfg.Name).Msg("Redirecting visitor to provider")
	return &Outcome{RedirectURL: authURL}, nil
}

// Process completes the callback. The state token is checked before any
// call to the provider: a missing or mismatched nonce means the code is
// never exchanged.
func (h *RemoteHandler) Process(ctx context.Context, req Request) (*Outcome, error) {
	if req.Code == "" {
		return nil, clerrors.NewInvalidRequest("callback carried no authorization code")
	}

	ok, err := h.a.tokens.CheckStateToken(ctx, req.SessionID, req.State)
	if err != nil {
		incCounter(metrics.LoginFailureTotal)
		return nil, err
	}
	if !ok {
		incCounter(metrics.LoginFailureTotal)
		return nil, clerrors.NewInvalidRequest("state token mismatch")
	}

	token, err := h.exchange(ctx, req.Code)
	if err != nil {
		incCounter(metrics.LoginFailureTotal)
		log.Warn().Err(err).Str("provider", h.cfg.Name).Msg("Authorization code exchange failed")
		return nil, clerrors.NewInvalidRequest("the authorization code could not be exchanged")
	}

	owner, err := h.fetchOwner(ctx, token)
	if err != nil {
		incCounter(metrics.LoginFailureTotal)
		log.Warn().Err(err).Str("provider", h.cfg.Name).Msg("Resource owner fetch failed")
		return nil, clerrors.NewInvalidRequest("the provider did not return the visitor's identity")
	}
	if owner.UID == "" {
		incCounter(metrics.LoginFailureTotal)
		return nil, clerrors.NewInvalidRequest(
			fmt.Sprintf("%s returned a resource owner without an id", h.cfg.Name))
	}
	owner.Provider = h.cfg.Name

	profile, err := h.a.profiles.Upsert(ctx, h.cfg.Name, owner.UID, token.RefreshToken, *owner)
	if err != nil {
		// Without a profile record there is nothing to log in as.
		incCounter(metrics.LoginFailureTotal)
		return nil, err
	}
	if !profile.Enabled {
		incCounter(metrics.LoginFailureTotal)
		log.Info().Str("provider", h.cfg.Name).Str("guid", profile.GUID).
			Msg("Login refused for disabled profile")
		return nil, clerrors.NewDisabledProvider("this account is disabled")
	}

	expires := token.Expiry
	if expires.IsZero() {
		expires = time.Now().Add(domain.DefaultTokenLifetime)
	}
	data, _ := json.Marshal(token)
	session := &domain.Session{
		GUID:            profile.GUID,
		AccessToken:     token.AccessToken,
		AccessTokenData: data,
		Expires:         expires,
	}
	if err := h.a.sessions.Upsert(ctx, session); err != nil {
		// The profile exists and the token is valid; the visitor is logged
		// in for this request even if the session record did not persist.
		log.Warn().Err(err).Str("guid", profile.GUID).Msg("Session could not be persisted after login")
	}
	if err := h.a.tokens.SetAccessToken(ctx, req.SessionID, token.AccessToken, time.Until(expires)); err != nil {
		log.Warn().Err(err).Msg("Access token handle could not be stored in session")
	}

	incCounter(metrics.LoginSuccessTotal)
	incGauge(metrics.ActiveSessionsGauge)
	h.a.dispatch(ctx, domain.EventLogin, profile)
	log.Info().Str("provider", h.cfg.Name).Str("guid", profile.GUID).Msg("Visitor logged in")

	return &Outcome{
		RedirectURL: req.ReturnURL,
		Cookie:      &Cookie{Value: token.AccessToken, Expires: expires},
		Profile:     profile,
	}, nil
}

// exchange swaps the authorization code for a token. A timeout gets one
// retry; any other failure is final.
func (h *RemoteHandler) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	redirectURL := h.a.redirectURI(h.cfg.Name)
	token, err := withRetry(ctx, func(callCtx context.Context) (*oauth2.Token, error) {
		return h.provider.ExchangeCode(callCtx, redirectURL, code)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: code exchange failed: %w", h.cfg.Name, err)
	}
	return token, nil
}

func (h *RemoteHandler) fetchOwner(ctx context.Context, token *oauth2.Token) (*domain.ResourceOwnerData, error) {
	owner, err := withRetry(ctx, func(callCtx context.Context) (*domain.ResourceOwnerData, error) {
		return h.provider.FetchResourceOwner(callCtx, token)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: user info fetch failed: %w", h.cfg.Name, err)
	}
	return owner, nil
}

// withRetry runs a provider call under the per-call timeout and retries it
// exactly once when the failure was a timeout.
func withRetry[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	run := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
		defer cancel()
		return call(callCtx)
	}

	out, err := run()
	if err != nil && isTimeout(err) && ctx.Err() == nil {
		log.Warn().Err(err).Msg("Provider call timed out, retrying once")
		out, err = run()
	}
	return out, err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
