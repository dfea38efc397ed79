package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	instagramOAuth2 "golang.org/x/oauth2/instagram"

	"github.com/cmskit/clientlogin/domain"
)

var InstagramUserInfoEndpoint = "https://graph.instagram.com/me?fields=id,username,account_type"

// InstagramProvider implements OAuth2Provider for Instagram's Basic Display
// API, which exposes only id and username.
type InstagramProvider struct {
	*baseProvider
}

// NewInstagramProvider creates a new InstagramProvider.
func NewInstagramProvider(cfg domain.ProviderConfig) *InstagramProvider {
	hasUserProfile := false
	for _, scope := range cfg.Scopes {
		if scope == "user_profile" {
			hasUserProfile = true
		}
	}
	if !hasUserProfile {
		cfg.Scopes = append(cfg.Scopes, "user_profile")
	}

	return &InstagramProvider{baseProvider: newBaseProvider(cfg, instagramOAuth2.Endpoint)}
}

// FetchResourceOwner maps the Basic Display payload to the canonical profile
// projection.
func (i *InstagramProvider) FetchResourceOwner(ctx context.Context, token *oauth2.Token) (*domain.ResourceOwnerData, error) {
	body, err := i.fetchJSON(ctx, token, InstagramUserInfoEndpoint)
	if err != nil {
		return nil, err
	}

	var info struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("instagram: failed to unmarshal user info: %w", err)
	}

	return &domain.ResourceOwnerData{
		Provider: i.Name(),
		UID:      info.ID,
		Nickname: info.Username,
		Name:     info.Username,
		Raw:      rawMap(body),
	}, nil
}

var _ OAuth2Provider = (*InstagramProvider)(nil)
