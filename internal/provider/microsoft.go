package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	microsoftOAuth2 "golang.org/x/oauth2/microsoft"

	"github.com/cmskit/clientlogin/domain"
)

var MicrosoftUserInfoEndpoint = "https://graph.microsoft.com/v1.0/me"

// MicrosoftProvider implements OAuth2Provider for Microsoft accounts via the
// common Azure AD endpoint and the Graph API.
type MicrosoftProvider struct {
	*baseProvider
}

// NewMicrosoftProvider creates a new MicrosoftProvider.
func NewMicrosoftProvider(cfg domain.ProviderConfig) *MicrosoftProvider {
	hasUserRead := false
	for _, scope := range cfg.Scopes {
		if scope == "User.Read" {
			hasUserRead = true
		}
	}
	if !hasUserRead {
		cfg.Scopes = append(cfg.Scopes, "User.Read")
	}

	return &MicrosoftProvider{
		baseProvider: newBaseProvider(cfg, microsoftOAuth2.AzureADEndpoint("common")),
	}
}

// FetchResourceOwner maps the Graph API "me" payload to the canonical
// profile projection.
func (m *MicrosoftProvider) FetchResourceOwner(ctx context.Context, token *oauth2.Token) (*domain.ResourceOwnerData, error) {
	body, err := m.fetchJSON(ctx, token, MicrosoftUserInfoEndpoint)
	if err != nil {
		return nil, err
	}

	var info struct {
		ID                string `json:"id"`
		DisplayName       string `json:"displayName"`
		GivenName         string `json:"givenName"`
		Surname           string `json:"surname"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
		PreferredLanguage string `json:"preferredLanguage"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("microsoft: failed to unmarshal user info: %w", err)
	}

	// Graph leaves "mail" empty for personal accounts; the UPN is the
	// reliable address there.
	email := info.Mail
	if email == "" {
		email = info.UserPrincipalName
	}

	return &domain.ResourceOwnerData{
		Provider:  m.Name(),
		UID:       info.ID,
		Name:      info.DisplayName,
		FirstName: info.GivenName,
		LastName:  info.Surname,
		Nickname:  info.UserPrincipalName,
		Email:     email,
		Locale:    info.PreferredLanguage,
		Raw:       rawMap(body),
	}, nil
}

var _ OAuth2Provider = (*MicrosoftProvider)(nil)
