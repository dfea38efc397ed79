package sessionstore

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	clerrors "github.com/cmskit/clientlogin/errors"
)

// Names of the values the module keeps in a browser session.
const (
	StateTokenName  = "state_token"
	AccessTokenName = "clientlogin_access_token"
)

// DefaultStateTokenTTL bounds the CSRF nonce lifetime to one redirect round
// trip.
const DefaultStateTokenTTL = 5 * time.Minute

// SessionStore is the capability backing TokenStore: named short-lived
// values scoped to one browser session (sid). Implementations return the
// empty string, not an error, when a value is absent.
type SessionStore interface {
	Get(ctx context.Context, sid, name string) (string, error)
	Set(ctx context.Context, sid, name, value string, ttl time.Duration) error
	Remove(ctx context.Context, sid, name string) error
}

// TokenStore holds the per-browser-session CSRF state token and the current
// access-token handle. All operations log at debug level with the token name
// and value; these values are short-lived and not secret-equivalent.
type TokenStore struct {
	store    SessionStore
	stateTTL time.Duration
}

// NewTokenStore creates a TokenStore over the given session backend.
func NewTokenStore(store SessionStore) *TokenStore {
	return &TokenStore{store: store, stateTTL: DefaultStateTokenTTL}
}

// GetToken reads a named value from the browser session. A miss is logged
// but is not an error.
func (t *TokenStore) GetToken(ctx context.Context, sid, name string) (string, error) {
	value, err := t.store.Get(ctx, sid, name)
	if err != nil {
		return "", clerrors.NewStorage("session backend read failed", err)
	}
	if value == "" {
		log.Debug().Str("token", name).Msg("Token not found in session")
		return "", nil
	}
	log.Debug().Str("token", name).Str("value", value).Msg("Fetched token from session")
	return value, nil
}

// SetStateToken stores the CSRF nonce for the pending OAuth2 redirect. An
// empty value, or an empty post-write read-back, signals a session backend
// malfunction.
func (t *TokenStore) SetStateToken(ctx context.Context, sid, value string) (string, error) {
	if value == "" {
		return "", clerrors.NewConfiguration("state token must not be empty")
	}
	if err := t.store.Set(ctx, sid, StateTokenName, value, t.stateTTL); err != nil {
		return "", clerrors.NewStorage("session backend write failed", err)
	}

	readBack, err := t.store.Get(ctx, sid, StateTokenName)
	if err != nil || readBack == "" {
		return "", clerrors.NewConfiguration("session backend did not retain the state token")
	}
	log.Debug().Str("token", StateTokenName).Str("value", value).Msg("Stored state token")
	return value, nil
}

// CheckStateToken validates the state parameter returned by the provider
// against the stored nonce. The nonce is single-use: it is removed before
// the comparison regardless of the outcome. An absent request state is a
// protocol violation and fails outright; a mismatch merely returns false.
func (t *TokenStore) CheckStateToken(ctx context.Context, sid, requestState string) (bool, error) {
	stored, err := t.store.Get(ctx, sid, StateTokenName)
	if err != nil {
		return false, clerrors.NewStorage("session backend read failed", err)
	}

	// Consume the nonce before comparing.
	if removeErr := t.store.Remove(ctx, sid, StateTokenName); removeErr != nil {
		log.Error().Err(removeErr).Msg("Failed to remove state token from session")
	}

	if requestState == "" {
		log.Warn().Msg("Callback request carried no state token")
		return false, clerrors.NewInvalidRequest("No state token found in response")
	}

	match := stored != "" && stored == requestState
	log.Debug().
		Str("token", StateTokenName).
		Str("value", requestState).
		Bool("match", match).
		Msg("Checked state token")
	return match, nil
}

// RemoveToken deletes a named value from the browser session. Idempotent.
func (t *TokenStore) RemoveToken(ctx context.Context, sid, name string) error {
	if err := t.store.Remove(ctx, sid, name); err != nil {
		return clerrors.NewStorage("session backend delete failed", err)
	}
	log.Debug().Str("token", name).Msg("Removed token from session")
	return nil
}

// SetAccessToken stores the current access-token handle for the session.
func (t *TokenStore) SetAccessToken(ctx context.Context, sid, value string, ttl time.Duration) error {
	if err := t.store.Set(ctx, sid, AccessTokenName, value, ttl); err != nil {
		return clerrors.NewStorage("session backend write failed", err)
	}
	log.Debug().Str("token", AccessTokenName).Str("value", value).Msg("Stored access token handle")
	return nil
}

// GetAccessToken reads the current access-token handle for the session.
func (t *TokenStore) GetAccessToken(ctx context.Context, sid string) (string, error) {
	return t.GetToken(ctx, sid, AccessTokenName)
}
