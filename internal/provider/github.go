package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	githubOAuth2 "golang.org/x/oauth2/github"

	"github.com/cmskit/clientlogin/domain"
)

var (
	GithubUserInfoEndpoint   = "https://api.github.com/user"
	GithubUserEmailsEndpoint = "https://api.github.com/user/emails"
)

// GitHubProvider implements OAuth2Provider for GitHub. GitHub is not
// strictly OIDC but speaks OAuth2 in a compatible way.
type GitHubProvider struct {
	*baseProvider
}

// NewGitHubProvider creates a new GitHubProvider, ensuring the profile and
// email scopes are present.
func NewGitHubProvider(cfg domain.ProviderConfig) *GitHubProvider {
	hasReadUser, hasUserEmail := false, false
	for _, scope := range cfg.Scopes {
		if scope == "read:user" {
			hasReadUser = true
		}
		if scope == "user:email" {
			hasUserEmail = true
		}
	}
	if !hasReadUser {
		cfg.Scopes = append(cfg.Scopes, "read:user")
	}
	if !hasUserEmail {
		cfg.Scopes = append(cfg.Scopes, "user:email")
	}

	return &GitHubProvider{baseProvider: newBaseProvider(cfg, githubOAuth2.Endpoint)}
}

// FetchResourceOwner maps GitHub's user payload to the canonical profile
// projection. The primary email needs a second call when the profile email
// is private.
func (g *GitHubProvider) FetchResourceOwner(ctx context.Context, token *oauth2.Token) (*domain.ResourceOwnerData, error) {
	body, err := g.fetchJSON(ctx, token, GithubUserInfoEndpoint)
	if err != nil {
		return nil, err
	}

	var info struct {
		ID        json.Number `json:"id"`
		Login     string      `json:"login"`
		Name      string      `json:"name"`
		Email     string      `json:"email"`
		AvatarURL string      `json:"avatar_url"`
		Location  string      `json:"location"`
		Bio       string      `json:"bio"`
		HTMLURL   string      `json:"html_url"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("github: failed to unmarshal user info: %w", err)
	}

	email := info.Email
	if email == "" {
		email = g.fetchPrimaryEmail(ctx, token)
	}

	firstName, lastName := splitName(info.Name)
	if info.Name == "" {
		firstName = info.Login
	}

	urls := map[string]string{}
	if info.HTMLURL != "" {
		urls["profile"] = info.HTMLURL
	}

	return &domain.ResourceOwnerData{
		Provider:    g.Name(),
		UID:         info.ID.String(),
		Nickname:    info.Login,
		Name:        info.Name,
		FirstName:   firstName,
		LastName:    lastName,
		Email:       email,
		Location:    info.Location,
		Description: info.Bio,
		ImageURL:    info.AvatarURL,
		URLs:        urls,
		Raw:         rawMap(body),
	}, nil
}

// fetchPrimaryEmail asks the emails endpoint for the primary verified
// address. Failures here are not fatal; the profile simply carries no email.
func (g *GitHubProvider) fetchPrimaryEmail(ctx context.Context, token *oauth2.Token) string {
	client := g.httpClient(ctx, token)
	resp, err := client.Get(GithubUserEmailsEndpoint)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return ""
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}

func splitName(fullName string) (string, string) {
	if fullName == "" {
		return "", ""
	}
	parts := strings.SplitN(fullName, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

var _ OAuth2Provider = (*GitHubProvider)(nil)
