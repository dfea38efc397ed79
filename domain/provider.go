package domain

// ProviderType selects the authentication strategy for a provider entry.
type ProviderType string

const (
	ProviderTypeLocal  ProviderType = "local"
	ProviderTypeOAuth2 ProviderType = "oauth2"
)

// DefaultLoginExpiryDays bounds the lifetime of local login sessions.
const DefaultLoginExpiryDays = 14

// ProviderConfig is the static per-provider configuration loaded at startup.
// Immutable during a request; one instance per configured provider name.
type ProviderConfig struct {
	Name         string
	Type         ProviderType
	Enabled      bool
	ClientID     string
	ClientSecret string
	Scopes       []string
	Label        string

	// Endpoint overrides for the generic OAuth2 provider. The well-known
	// providers carry their endpoints in code.
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	LoginExpiryDays int
}

// ExpiryDays returns the configured login expiry, falling back to the
// module default.
func (c ProviderConfig) ExpiryDays() int {
	if c.LoginExpiryDays > 0 {
		return c.LoginExpiryDays
	}
	return DefaultLoginExpiryDays
}
