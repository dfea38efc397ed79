package domain

import "time"

// DefaultTokenLifetime is applied when a provider issues a token without an
// expiry of its own.
const DefaultTokenLifetime = time.Hour

// Session is the ephemeral record tying an active browser session to a
// Profile. One active session per profile; an update replaces in place.
type Session struct {
	GUID            string    `bson:"guid"`
	AccessToken     string    `bson:"access_token"`
	AccessTokenData []byte    `bson:"access_token_data,omitempty"`
	Expires         time.Time `bson:"expires"`
}

// Expired reports whether the session's token has passed its expiry.
// A session is expired when expires <= now.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expires.After(now)
}
