package auth

import (
	"context"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
	"github.com/cmskit/clientlogin/internal/auth"
	"github.com/cmskit/clientlogin/internal/metrics"
	"github.com/cmskit/clientlogin/internal/provider"
	"github.com/cmskit/clientlogin/sessionstore"
)

// Request carries everything a login or callback attempt needs, already
// extracted from the HTTP layer.
type Request struct {
	// SessionID identifies the browser session in the token store.
	SessionID string
	// Provider is the canonical provider name ("Google", "Password", ...).
	Provider string
	// ReturnURL is where the visitor lands after the flow completes.
	ReturnURL string

	// Code and State arrive on the OAuth2 callback.
	Code  string
	State string

	// Username and Password arrive on a local login form post.
	Username string
	Password string

	// CookieToken is the access token from the visitor's cookie, empty when
	// no cookie was presented.
	CookieToken string
}

// Cookie describes the access-token cookie the HTTP layer must issue.
type Cookie struct {
	Value   string
	Expires time.Time
	// Clear asks the HTTP layer to expire the cookie instead.
	Clear bool
}

// Outcome is the result of a login, callback, or logout step.
type Outcome struct {
	// RedirectURL is where to send the visitor next. Empty when
	// ShowLoginForm is set.
	RedirectURL string
	// Cookie, when non-nil, must be written to the response.
	Cookie *Cookie
	// Profile is set once the visitor is authenticated.
	Profile *domain.Profile
	// ShowLoginForm indicates the local strategy needs credentials before
	// it can proceed.
	ShowLoginForm bool
}

// Handler is one authentication strategy: Login starts the flow, Process
// completes it with the visitor's response.
type Handler interface {
	Login(ctx context.Context, req Request) (*Outcome, error)
	Process(ctx context.Context, req Request) (*Outcome, error)
}

// ProviderRegistry resolves provider configuration and OAuth2 capability by
// canonical name. *provider.Registry is the production implementation.
type ProviderRegistry interface {
	Config(name string) (domain.ProviderConfig, error)
	Provider(name string) (provider.OAuth2Provider, error)
}

// Authenticator routes login and callback requests to the strategy
// configured for the requested provider, and owns the flows that do not
// depend on a provider (logout, the logged-in check).
type Authenticator struct {
	registry   ProviderRegistry
	profiles   domain.ProfileRepository
	sessions   domain.SessionRepository
	tokens     *sessionstore.TokenStore
	guard      *Guard
	hasher     auth.PasswordHasher
	dispatcher domain.EventDispatcher

	rootURL      string
	basePath     string
	responseNoun string
}

// Options configures an Authenticator.
type Options struct {
	Registry   ProviderRegistry
	Profiles   domain.ProfileRepository
	Sessions   domain.SessionRepository
	Tokens     *sessionstore.TokenStore
	Hasher     auth.PasswordHasher
	Dispatcher domain.EventDispatcher

	RootURL      string
	BasePath     string
	ResponseNoun string
}

// NewAuthenticator wires an Authenticator from its collaborators. A nil
// hasher or dispatcher gets the default implementation.
func NewAuthenticator(opts Options) *Authenticator {
	if opts.Hasher == nil {
		opts.Hasher = auth.NewBcryptPasswordHasher(0)
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = &LogDispatcher{}
	}
	if opts.BasePath == "" {
		opts.BasePath = "authenticate"
	}
	if opts.ResponseNoun == "" {
		opts.ResponseNoun = "authenticate"
	}
	return &Authenticator{
		registry:     opts.Registry,
		profiles:     opts.Profiles,
		sessions:     opts.Sessions,
		tokens:       opts.Tokens,
		guard:        NewGuard(opts.Profiles, opts.Sessions, opts.Registry),
		hasher:       opts.Hasher,
		dispatcher:   opts.Dispatcher,
		rootURL:      opts.RootURL,
		basePath:     opts.BasePath,
		responseNoun: opts.ResponseNoun,
	}
}

// Guard exposes the logged-in check for middleware and host applications.
func (a *Authenticator) Guard() *Guard {
	return a.guard
}

// Login starts the flow for req.Provider. A visitor already authenticated
// with the same provider is not run through the flow again; the login event
// still fires so subscribers observe the attempt.
func (a *Authenticator) Login(ctx context.Context, req Request) (*Outcome, error) {
	handler, err := a.handlerFor(req.Provider)
	if err != nil {
		return nil, err
	}

	if outcome := a.alreadyLoggedIn(ctx, req); outcome != nil {
		return outcome, nil
	}

	return handler.Login(ctx, req)
}

// Process completes the flow for req.Provider with the visitor's response
// (the OAuth2 callback, or the posted local credentials).
func (a *Authenticator) Process(ctx context.Context, req Request) (*Outcome, error) {
	handler, err := a.handlerFor(req.Provider)
	if err != nil {
		return nil, err
	}

	if outcome := a.alreadyLoggedIn(ctx, req); outcome != nil {
		return outcome, nil
	}

	return handler.Process(ctx, req)
}

// Logout ends the visitor's session. Logging out without a session is not
// an error; the cookie is cleared either way.
func (a *Authenticator) Logout(ctx context.Context, req Request) (*Outcome, error) {
	outcome := &Outcome{
		RedirectURL: req.ReturnURL,
		Cookie:      &Cookie{Clear: true},
	}

	if req.CookieToken == "" {
		return outcome, nil
	}

	profile, _, err := a.guard.IsLoggedIn(ctx, req.CookieToken)
	if err != nil {
		log.Debug().Err(err).Msg("Logout with an unrecognized cookie")
	}

	if err := a.sessions.Delete(ctx, req.CookieToken); err != nil {
		log.Warn().Err(err).Msg("Session delete failed during logout")
	}
	if err := a.tokens.RemoveToken(ctx, req.SessionID, sessionstore.AccessTokenName); err != nil {
		log.Warn().Err(err).Msg("Access token handle removal failed during logout")
	}

	if profile != nil {
		incCounter(metrics.LogoutTotal)
		decGauge(metrics.ActiveSessionsGauge)
		a.dispatch(ctx, domain.EventLogout, profile)
		outcome.Profile = profile
	}
	return outcome, nil
}

// SetPassword hashes and stores a local password for username, creating the
// local profile when needed.
func (a *Authenticator) SetPassword(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return clerrors.NewInvalidRequest("username and password are required")
	}
	hash, err := a.hasher.Hash(password)
	if err != nil {
		return clerrors.NewConfiguration("could not hash the password")
	}
	return a.profiles.SetPassword(ctx, username, hash)
}

func (a *Authenticator) handlerFor(name string) (Handler, error) {
	cfg, err := a.registry.Config(name)
	if err != nil {
		return nil, err
	}
	if cfg.Type == domain.ProviderTypeLocal {
		return &LocalHandler{a: a, cfg: cfg}, nil
	}
	p, err := a.registry.Provider(name)
	if err != nil {
		return nil, err
	}
	return &RemoteHandler{a: a, cfg: cfg, provider: p}, nil
}

// alreadyLoggedIn short-circuits a repeated login with the provider the
// visitor is already authenticated through. Returns nil when the flow must
// proceed.
func (a *Authenticator) alreadyLoggedIn(ctx context.Context, req Request) *Outcome {
	if req.CookieToken == "" {
		return nil
	}
	profile, session, err := a.guard.IsLoggedIn(ctx, req.CookieToken)
	if err != nil || profile == nil || profile.Provider != req.Provider {
		return nil
	}
	log.Debug().Str("provider", req.Provider).Str("guid", profile.GUID).
		Msg("Visitor already logged in with this provider")
	a.dispatch(ctx, domain.EventLogin, profile)

	outcome := &Outcome{RedirectURL: req.ReturnURL, Profile: profile}
	// A refresh replaced the session's token; the browser still holds the
	// old one, so the cookie must be re-issued.
	if session.AccessToken != req.CookieToken {
		outcome.Cookie = &Cookie{Value: session.AccessToken, Expires: session.Expires}
		if err := a.tokens.SetAccessToken(ctx, req.SessionID, session.AccessToken, time.Until(session.Expires)); err != nil {
			log.Warn().Err(err).Msg("Access token handle could not be stored in session")
		}
	}
	return outcome
}

// redirectURI builds the callback URL registered with the OAuth2 provider.
// The provider name rides on the response noun query parameter so the
// callback endpoint can route it without provider-specific paths.
func (a *Authenticator) redirectURI(providerName string) string {
	return a.rootURL + "/" + a.basePath + "/endpoint?" +
		a.responseNoun + "=" + url.QueryEscape(providerName)
}

func (a *Authenticator) dispatch(ctx context.Context, typ domain.EventType, profile *domain.Profile) {
	event := domain.Event{
		Type:    typ,
		Profile: profile,
		Table:   ProfilesTable,
		At:      time.Now().UTC(),
	}
	if err := a.dispatcher.Dispatch(ctx, event); err != nil {
		// Subscriber failures never affect the authentication outcome.
		log.Warn().Err(err).Str("event", string(typ)).Msg("Event dispatch failed")
	}
}

// incCounter guards against metrics being unregistered, as in tests.
func incCounter(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

func incGauge(g prometheus.Gauge) {
	if g != nil {
		g.Inc()
	}
}

func decGauge(g prometheus.Gauge) {
	if g != nil {
		g.Dec()
	}
}
