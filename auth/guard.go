package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
	"github.com/cmskit/clientlogin/internal/metrics"
)

// Guard answers "is this request authenticated" from the access-token
// cookie, consulting the profile and session stores.
type Guard struct {
	profiles domain.ProfileRepository
	sessions domain.SessionRepository
	registry ProviderRegistry
}

// NewGuard creates a new Guard.
func NewGuard(profiles domain.ProfileRepository, sessions domain.SessionRepository, registry ProviderRegistry) *Guard {
	return &Guard{profiles: profiles, sessions: sessions, registry: registry}
}

// IsLoggedIn resolves the access-token cookie to an authenticated profile.
//
//   - No cookie: anonymous, not an error.
//   - Cookie without a backing session record: an invalid-cookie error,
//     distinct from "not logged in" because it indicates corruption or
//     tampering.
//   - Disabled profile: anonymous, regardless of token validity.
//   - Expired token: one refresh attempt; a refresh failure downgrades to
//     anonymous rather than surfacing to the caller.
//
// The returned session is the current one, refreshed when a refresh
// happened; callers compare its token against the cookie to decide whether
// the cookie needs re-issuing.
func (g *Guard) IsLoggedIn(ctx context.Context, accessToken string) (*domain.Profile, *domain.Session, error) {
	if accessToken == "" {
		return nil, nil, nil
	}

	session, err := g.sessions.FindByAccessToken(ctx, accessToken)
	if err != nil {
		// Storage failure: the repository already logged it; degrade to
		// anonymous instead of failing the request.
		return nil, nil, nil
	}
	if session == nil {
		return nil, nil, clerrors.NewInvalidCookie("access token cookie has no backing session")
	}

	profile, err := g.profiles.FindByGUID(ctx, session.GUID)
	if err != nil {
		return nil, nil, nil
	}
	if profile == nil {
		return nil, nil, clerrors.NewInvalidCookie("session references a missing profile")
	}

	if !profile.Enabled {
		log.Debug().Str("guid", profile.GUID).Msg("Disabled profile presented a valid token")
		return nil, nil, nil
	}

	if session.Expired(time.Now()) {
		return g.refresh(ctx, profile, session)
	}

	return profile, session, nil
}

// refresh attempts exactly one refresh-token exchange for an expired
// session. Any failure means anonymous, never an error.
func (g *Guard) refresh(ctx context.Context, profile *domain.Profile, session *domain.Session) (*domain.Profile, *domain.Session, error) {
	if profile.IsLocal() || profile.RefreshToken == "" {
		return nil, nil, nil
	}

	p, err := g.registry.Provider(profile.Provider)
	if err != nil {
		log.Warn().Err(err).Str("provider", profile.Provider).
			Msg("Cannot refresh token, provider unavailable")
		return nil, nil, nil
	}

	token, err := p.Refresh(ctx, profile.RefreshToken)
	if err != nil {
		incCounter(metrics.TokenRefreshFailures)
		log.Warn().Err(err).Str("provider", profile.Provider).Str("guid", profile.GUID).
			Msg("Token refresh failed, session downgraded to anonymous")
		return nil, nil, nil
	}
	incCounter(metrics.TokenRefreshTotal)

	expires := token.Expiry
	if expires.IsZero() {
		expires = time.Now().Add(domain.DefaultTokenLifetime)
	}
	data, _ := json.Marshal(token)

	refreshed := &domain.Session{
		GUID:            profile.GUID,
		AccessToken:     token.AccessToken,
		AccessTokenData: data,
		Expires:         expires,
	}
	if err := g.sessions.Upsert(ctx, refreshed); err != nil {
		// Already logged by the repository; the refreshed token is still
		// valid for this request.
		log.Warn().Err(err).Str("guid", profile.GUID).Msg("Refreshed session could not be persisted")
	}

	if refreshToken := token.RefreshToken; refreshToken != "" && refreshToken != profile.RefreshToken {
		if _, err := g.profiles.Upsert(ctx, profile.Provider, profile.ResourceOwnerID, refreshToken, profile.OwnerData); err != nil {
			log.Warn().Err(err).Str("guid", profile.GUID).Msg("Rotated refresh token could not be persisted")
		}
	}

	log.Debug().Str("guid", profile.GUID).Time("expires", expires).Msg("Access token refreshed")
	return profile, refreshed, nil
}
