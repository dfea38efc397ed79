package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
)

// OAuth2Provider is the capability a remote authentication strategy needs
// from an identity provider. Implementations handle provider-specific
// endpoints and user-info payloads.
type OAuth2Provider interface {
	// Name returns the canonical provider name ("Google", "Github", ...).
	Name() string

	// GetAuthCodeURL builds the authorization URL the visitor is redirected
	// to, carrying the CSRF state token.
	GetAuthCodeURL(state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error)

	// ExchangeCode exchanges an authorization code for an OAuth2 token.
	ExchangeCode(ctx context.Context, redirectURL, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)

	// Refresh mints a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// FetchResourceOwner retrieves the resource owner's identity from the
	// provider using the access token.
	FetchResourceOwner(ctx context.Context, token *oauth2.Token) (*domain.ResourceOwnerData, error)
}

// baseProvider carries the shared OAuth2 plumbing. Concrete providers embed
// it and supply their endpoint and user-info mapping.
type baseProvider struct {
	cfg      domain.ProviderConfig
	endpoint oauth2.Endpoint
}

func newBaseProvider(cfg domain.ProviderConfig, endpoint oauth2.Endpoint) *baseProvider {
	return &baseProvider{cfg: cfg, endpoint: endpoint}
}

func (b *baseProvider) Name() string { return b.cfg.Name }

// oauthConfig constructs the oauth2.Config for this provider. Missing
// credentials are a configuration error: no redirect can be built without
// them.
func (b *baseProvider) oauthConfig(redirectURL string) (*oauth2.Config, error) {
	if b.cfg.ClientID == "" || b.cfg.ClientSecret == "" {
		return nil, clerrors.NewConfiguration(
			fmt.Sprintf("provider %s is missing clientId or clientSecret", b.cfg.Name))
	}
	if len(b.cfg.Scopes) == 0 {
		return nil, clerrors.NewConfiguration(
			fmt.Sprintf("provider %s has no scopes configured", b.cfg.Name))
	}
	return &oauth2.Config{
		ClientID:     b.cfg.ClientID,
		ClientSecret: b.cfg.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       b.cfg.Scopes,
		Endpoint:     b.endpoint,
	}, nil
}

func (b *baseProvider) GetAuthCodeURL(state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error) {
	conf, err := b.oauthConfig(redirectURL)
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state, opts...), nil
}

func (b *baseProvider) ExchangeCode(ctx context.Context, redirectURL, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	conf, err := b.oauthConfig(redirectURL)
	if err != nil {
		return nil, err
	}
	return conf.Exchange(ctx, code, opts...)
}

func (b *baseProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	conf, err := b.oauthConfig("")
	if err != nil {
		return nil, err
	}
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

// httpClient returns a client authenticated with token for calls against
// the provider's API.
func (b *baseProvider) httpClient(ctx context.Context, token *oauth2.Token) *http.Client {
	conf, err := b.oauthConfig("")
	if err != nil {
		return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	}
	return conf.Client(ctx, token)
}

// fetchJSON performs an authenticated GET against a user-info endpoint and
// returns the raw body. Non-200 responses are returned as errors with the
// body included for diagnostics.
func (b *baseProvider) fetchJSON(ctx context.Context, token *oauth2.Token, endpoint string) ([]byte, error) {
	client := b.httpClient(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build user info request: %w", b.cfg.Name, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get user info: %w", b.cfg.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read user info response body: %w", b.cfg.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: failed to fetch user info: status %d, body: %s",
			b.cfg.Name, resp.StatusCode, string(body))
	}
	return body, nil
}

// rawMap decodes body into the RawData snapshot. Decoding problems here are
// not fatal, the canonical fields were already parsed.
func rawMap(body []byte) map[string]any {
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	return raw
}
