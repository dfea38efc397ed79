package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
	"github.com/cmskit/clientlogin/internal/metrics"
)

// LocalHandler is the password strategy. Login renders the credential form;
// Process verifies the posted credentials against the stored bcrypt hash and
// opens a session with the configured lifetime.
type LocalHandler struct {
	a   *Authenticator
	cfg domain.ProviderConfig
}

// Login asks the HTTP layer for the credential form. There is no redirect
// round trip for the local strategy.
func (h *LocalHandler) Login(ctx context.Context, req Request) (*Outcome, error) {
	if req.Username != "" || req.Password != "" {
		return h.Process(ctx, req)
	}
	return &Outcome{ShowLoginForm: true}, nil
}

// Process verifies the posted credentials. Every failure path returns the
// same generic error so the response never reveals whether the username
// exists.
func (h *LocalHandler) Process(ctx context.Context, req Request) (*Outcome, error) {
	if req.Username == "" || req.Password == "" {
		return &Outcome{ShowLoginForm: true}, nil
	}

	profile, err := h.a.profiles.FindByResourceOwner(ctx, domain.LocalProviderName, req.Username)
	if err != nil {
		incCounter(metrics.LoginFailureTotal)
		return nil, clerrors.NewInvalidCredentials()
	}
	if profile == nil || profile.PasswordHash == "" {
		incCounter(metrics.LoginFailureTotal)
		log.Debug().Str("username", req.Username).Msg("Local login for unknown user")
		return nil, clerrors.NewInvalidCredentials()
	}
	if !profile.Enabled {
		incCounter(metrics.LoginFailureTotal)
		log.Info().Str("guid", profile.GUID).Msg("Local login refused for disabled profile")
		return nil, clerrors.NewInvalidCredentials()
	}
	if err := h.a.hasher.Verify(profile.PasswordHash, req.Password); err != nil {
		incCounter(metrics.LoginFailureTotal)
		log.Debug().Str("username", req.Username).Msg("Local login with wrong password")
		return nil, clerrors.NewInvalidCredentials()
	}

	token, err := GenerateAccessToken()
	if err != nil {
		return nil, clerrors.NewConfiguration("could not generate an access token")
	}
	expires := time.Now().Add(time.Duration(h.cfg.ExpiryDays()) * 24 * time.Hour)

	session := &domain.Session{
		GUID:        profile.GUID,
		AccessToken: token,
		Expires:     expires,
	}
	if err := h.a.sessions.Upsert(ctx, session); err != nil {
		log.Warn().Err(err).Str("guid", profile.GUID).Msg("Session could not be persisted after login")
	}
	if err := h.a.tokens.SetAccessToken(ctx, req.SessionID, token, time.Until(expires)); err != nil {
		log.Warn().Err(err).Msg("Access token handle could not be stored in session")
	}

	incCounter(metrics.LoginSuccessTotal)
	incGauge(metrics.ActiveSessionsGauge)
	h.a.dispatch(ctx, domain.EventLogin, profile)
	log.Info().Str("guid", profile.GUID).Msg("Visitor logged in with password")

	return &Outcome{
		RedirectURL: req.ReturnURL,
		Cookie:      &Cookie{Value: token, Expires: expires},
		Profile:     profile,
	}, nil
}
