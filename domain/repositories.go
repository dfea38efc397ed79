package domain

import (
	"context"
	"time"
)

// ProfileRepository persists durable identity records. Implementations
// guarantee upsert atomicity per (provider, resource owner id) via a unique
// constraint, not read-then-write.
//
// Lookups return (nil, nil) when no record matches; errors are reserved for
// backend failures.
type ProfileRepository interface {
	FindByResourceOwner(ctx context.Context, provider, resourceOwnerID string) (*Profile, error)
	FindByGUID(ctx context.Context, guid string) (*Profile, error)

	// Upsert inserts a profile for (provider, resourceOwnerID) or updates
	// owner data, refresh token and lastupdate in place. Returns the
	// resulting profile with its GUID.
	Upsert(ctx context.Context, provider, resourceOwnerID, refreshToken string, owner ResourceOwnerData) (*Profile, error)

	SetEnabled(ctx context.Context, provider, resourceOwnerID string, enabled bool) error
	SetPassword(ctx context.Context, resourceOwnerID, passwordHash string) error
}

// SessionRepository persists the single active session per profile.
type SessionRepository interface {
	// Upsert replaces the session for guid in place.
	Upsert(ctx context.Context, session *Session) error

	FindByAccessToken(ctx context.Context, accessToken string) (*Session, error)

	// Delete removes the session holding accessToken. Idempotent.
	Delete(ctx context.Context, accessToken string) error

	// DeleteExpired removes sessions whose expiry is older than maxAge ago.
	// Idempotent; safe to run on any cadence.
	DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error)
}
