package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	linkedinOAuth2 "golang.org/x/oauth2/linkedin"

	"github.com/cmskit/clientlogin/domain"
)

var LinkedInUserInfoEndpoint = "https://api.linkedin.com/v2/userinfo"

// LinkedInProvider implements OAuth2Provider for LinkedIn, which exposes an
// OIDC-style userinfo endpoint.
type LinkedInProvider struct {
	*baseProvider
}

// NewLinkedInProvider creates a new LinkedInProvider.
func NewLinkedInProvider(cfg domain.ProviderConfig) *LinkedInProvider {
	hasOpenID, hasProfile, hasEmail := false, false, false
	for _, scope := range cfg.Scopes {
		switch scope {
		case "openid":
			hasOpenID = true
		case "profile":
			hasProfile = true
		case "email":
			hasEmail = true
		}
	}
	if !hasOpenID {
		cfg.Scopes = append(cfg.Scopes, "openid")
	}
	if !hasProfile {
		cfg.Scopes = append(cfg.Scopes, "profile")
	}
	if !hasEmail {
		cfg.Scopes = append(cfg.Scopes, "email")
	}

	return &LinkedInProvider{baseProvider: newBaseProvider(cfg, linkedinOAuth2.Endpoint)}
}

// FetchResourceOwner maps LinkedIn's userinfo payload to the canonical
// profile projection.
func (l *LinkedInProvider) FetchResourceOwner(ctx context.Context, token *oauth2.Token) (*domain.ResourceOwnerData, error) {
	body, err := l.fetchJSON(ctx, token, LinkedInUserInfoEndpoint)
	if err != nil {
		return nil, err
	}

	var info struct {
		Sub        string `json:"sub"`
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Email      string `json:"email"`
		Picture    string `json:"picture"`
		Locale     struct {
			Language string `json:"language"`
			Country  string `json:"country"`
		} `json:"locale"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("linkedin: failed to unmarshal user info: %w", err)
	}

	locale := info.Locale.Language
	if info.Locale.Country != "" {
		locale = info.Locale.Language + "_" + info.Locale.Country
	}

	return &domain.ResourceOwnerData{
		Provider:  l.Name(),
		UID:       info.Sub,
		Name:      info.Name,
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
		Nickname:  info.Email,
		Email:     info.Email,
		ImageURL:  info.Picture,
		Locale:    locale,
		Raw:       rawMap(body),
	}, nil
}

var _ OAuth2Provider = (*LinkedInProvider)(nil)
