package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	googleOAuth2 "golang.org/x/oauth2/google"

	"github.com/cmskit/clientlogin/domain"
)

// GoogleUserInfoEndpoint is a variable so tests can point it at a local
// server.
var GoogleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProvider implements OAuth2Provider for Google.
type GoogleProvider struct {
	*baseProvider
}

// NewGoogleProvider creates a new GoogleProvider, ensuring the scopes needed
// for profile information are present.
func NewGoogleProvider(cfg domain.ProviderConfig) *GoogleProvider {
	hasOpenID, hasProfile, hasEmail := false, false, false
	for _, scope := range cfg.Scopes {
		switch scope {
		case "openid":
			hasOpenID = true
		case "profile", "https://www.googleapis.com/auth/userinfo.profile":
			hasProfile = true
		case "email", "https://www.googleapis.com/auth/userinfo.email":
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

	return &GoogleProvider{baseProvider: newBaseProvider(cfg, googleOAuth2.Endpoint)}
}

// FetchResourceOwner maps Google's OIDC userinfo payload to the canonical
// profile projection.
func (g *GoogleProvider) FetchResourceOwner(ctx context.Context, token *oauth2.Token) (*domain.ResourceOwnerData, error) {
	body, err := g.fetchJSON(ctx, token, GoogleUserInfoEndpoint)
	if err != nil {
		return nil, err
	}

	var info struct {
		Sub        string `json:"sub"`
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
		Email      string `json:"email"`
		Locale     string `json:"locale"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("google: failed to unmarshal user info: %w", err)
	}

	return &domain.ResourceOwnerData{
		Provider:  g.Name(),
		UID:       info.Sub,
		Name:      info.Name,
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
		// Google has no distinct username, the email is the common handle.
		Nickname: info.Email,
		Email:    info.Email,
		ImageURL: info.Picture,
		Locale:   info.Locale,
		Raw:      rawMap(body),
	}, nil
}

var _ OAuth2Provider = (*GoogleProvider)(nil)
