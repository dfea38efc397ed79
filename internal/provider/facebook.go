package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	facebookOAuth2 "golang.org/x/oauth2/facebook"

	"github.com/cmskit/clientlogin/domain"
)

var FacebookUserInfoEndpoint = "https://graph.facebook.com/v19.0/me?fields=id,name,first_name,last_name,email,picture,locale"

// FacebookProvider implements OAuth2Provider for Facebook.
type FacebookProvider struct {
	*baseProvider
}

// NewFacebookProvider creates a new FacebookProvider.
func NewFacebookProvider(cfg domain.ProviderConfig) *FacebookProvider {
	hasEmail := false
	for _, scope := range cfg.Scopes {
		if scope == "email" {
			hasEmail = true
		}
	}
	if !hasEmail {
		cfg.Scopes = append(cfg.Scopes, "email")
	}

	return &FacebookProvider{baseProvider: newBaseProvider(cfg, facebookOAuth2.Endpoint)}
}

// FetchResourceOwner maps the Graph API "me" payload to the canonical
// profile projection.
func (f *FacebookProvider) FetchResourceOwner(ctx context.Context, token *oauth2.Token) (*domain.ResourceOwnerData, error) {
	body, err := f.fetchJSON(ctx, token, FacebookUserInfoEndpoint)
	if err != nil {
		return nil, err
	}

	var info struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Locale    string `json:"locale"`
		Picture   struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("facebook: failed to unmarshal user info: %w", err)
	}

	return &domain.ResourceOwnerData{
		Provider:  f.Name(),
		UID:       info.ID,
		Name:      info.Name,
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Nickname:  info.Name,
		Email:     info.Email,
		Locale:    info.Locale,
		ImageURL:  info.Picture.Data.URL,
		Raw:       rawMap(body),
	}, nil
}

var _ OAuth2Provider = (*FacebookProvider)(nil)
