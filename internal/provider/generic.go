package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
)

// GenericProvider implements OAuth2Provider for any OAuth2 identity provider
// whose endpoints are supplied in configuration. The user-info payload is
// mapped through common OIDC claim names.
type GenericProvider struct {
	*baseProvider
}

// NewGenericProvider creates a new GenericProvider from explicit endpoint
// configuration.
func NewGenericProvider(cfg domain.ProviderConfig) *GenericProvider {
	endpoint := oauth2.Endpoint{
		AuthURL:  cfg.AuthURL,
		TokenURL: cfg.TokenURL,
	}
	return &GenericProvider{baseProvider: newBaseProvider(cfg, endpoint)}
}

// oauthConfig extends the base validation: a generic provider additionally
// needs its endpoints configured, there is no well-known fallback.
func (g *GenericProvider) oauthConfig(redirectURL string) (*oauth2.Config, error) {
	if g.cfg.AuthURL == "" || g.cfg.TokenURL == "" {
		return nil, clerrors.NewConfiguration(
			fmt.Sprintf("provider %s is missing authUrl or tokenUrl", g.cfg.Name))
	}
	return g.baseProvider.oauthConfig(redirectURL)
}

func (g *GenericProvider) GetAuthCodeURL(state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error) {
	conf, err := g.oauthConfig(redirectURL)
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state, opts...), nil
}

func (g *GenericProvider) ExchangeCode(ctx context.Context, redirectURL, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	conf, err := g.oauthConfig(redirectURL)
	if err != nil {
		return nil, err
	}
	return conf.Exchange(ctx, code, opts...)
}

// FetchResourceOwner maps common OIDC claims to the canonical profile
// projection. "sub" falls back to "id" for providers that predate OIDC.
func (g *GenericProvider) FetchResourceOwner(ctx context.Context, token *oauth2.Token) (*domain.ResourceOwnerData, error) {
	if g.cfg.UserInfoURL == "" {
		return nil, clerrors.NewConfiguration(
			fmt.Sprintf("provider %s is missing userInfoUrl", g.cfg.Name))
	}
	body, err := g.fetchJSON(ctx, token, g.cfg.UserInfoURL)
	if err != nil {
		return nil, err
	}

	var info struct {
		Sub               string      `json:"sub"`
		ID                json.Number `json:"id"`
		Name              string      `json:"name"`
		GivenName         string      `json:"given_name"`
		FamilyName        string      `json:"family_name"`
		PreferredUsername string      `json:"preferred_username"`
		Email             string      `json:"email"`
		Picture           string      `json:"picture"`
		Locale            string      `json:"locale"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal user info: %w", g.cfg.Name, err)
	}

	uid := info.Sub
	if uid == "" {
		uid = info.ID.String()
	}
	nickname := info.PreferredUsername
	if nickname == "" {
		nickname = info.Email
	}

	return &domain.ResourceOwnerData{
		Provider:  g.Name(),
		UID:       uid,
		Name:      info.Name,
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
		Nickname:  nickname,
		Email:     info.Email,
		ImageURL:  info.Picture,
		Locale:    info.Locale,
		Raw:       rawMap(body),
	}, nil
}

var _ OAuth2Provider = (*GenericProvider)(nil)
