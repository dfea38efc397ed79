package provider

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/cmskit/clientlogin/config"
	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
)

// ProviderQueryParam carries the provider name on login requests.
// LegacyProviderQueryParam is honored for backward compatibility with older
// host applications.
const (
	ProviderQueryParam       = "provider"
	LegacyProviderQueryParam = "discovery"
)

// Registry maps provider names to their configuration and capability
// implementation. It is populated once at startup; lookups by key fail
// explicitly for unknown names.
type Registry struct {
	configs   map[string]domain.ProviderConfig
	providers map[string]OAuth2Provider
}

// NewRegistry builds the static provider registry from configuration.
// Unrecognized well-known names become generic providers so a host can add
// any OAuth2 identity provider purely through configuration.
func NewRegistry(configs map[string]domain.ProviderConfig) *Registry {
	r := &Registry{
		configs:   make(map[string]domain.ProviderConfig, len(configs)),
		providers: make(map[string]OAuth2Provider, len(configs)),
	}
	for name, cfg := range configs {
		r.configs[name] = cfg
		if cfg.Type != domain.ProviderTypeOAuth2 {
			continue
		}
		r.providers[name] = newProvider(cfg)
		log.Debug().Str("provider", name).Bool("enabled", cfg.Enabled).Msg("Registered OAuth2 provider")
	}
	return r
}

func newProvider(cfg domain.ProviderConfig) OAuth2Provider {
	switch cfg.Name {
	case "Google":
		return NewGoogleProvider(cfg)
	case "Github":
		return NewGitHubProvider(cfg)
	case "Facebook":
		return NewFacebookProvider(cfg)
	case "Linkedin":
		return NewLinkedInProvider(cfg)
	case "Microsoft":
		return NewMicrosoftProvider(cfg)
	case "Instagram":
		return NewInstagramProvider(cfg)
	default:
		return NewGenericProvider(cfg)
	}
}

// ResolveProviderName reads the provider name from the request, normalizing
// case so "google", "GOOGLE" and "Google" resolve identically.
func (r *Registry) ResolveProviderName(req *http.Request) (string, error) {
	name := req.URL.Query().Get(ProviderQueryParam)
	if name == "" {
		name = req.URL.Query().Get(LegacyProviderQueryParam)
	}
	if name == "" {
		return "", clerrors.NewInvalidProvider("no provider specified")
	}
	return config.NormalizeProviderName(name), nil
}

// Config returns the configuration for a provider name. Unknown names are an
// invalid-provider error; disabled providers fail distinctly; an OAuth2
// provider without credentials is a configuration error because no redirect
// can be constructed from it.
func (r *Registry) Config(name string) (domain.ProviderConfig, error) {
	cfg, ok := r.configs[name]
	if !ok {
		return domain.ProviderConfig{}, clerrors.NewInvalidProvider(
			fmt.Sprintf("unknown provider %q", name))
	}
	if !cfg.Enabled {
		return domain.ProviderConfig{}, clerrors.NewDisabledProvider(
			fmt.Sprintf("provider %s is disabled", name))
	}
	if cfg.Type == domain.ProviderTypeOAuth2 {
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return domain.ProviderConfig{}, clerrors.NewConfiguration(
				fmt.Sprintf("provider %s is missing clientId or clientSecret", name))
		}
		if len(cfg.Scopes) == 0 {
			return domain.ProviderConfig{}, clerrors.NewConfiguration(
				fmt.Sprintf("provider %s has no scopes configured", name))
		}
	}
	return cfg, nil
}

// Provider returns the OAuth2 capability for an enabled remote provider.
func (r *Registry) Provider(name string) (OAuth2Provider, error) {
	cfg, err := r.Config(name)
	if err != nil {
		return nil, err
	}
	if cfg.Type != domain.ProviderTypeOAuth2 {
		return nil, clerrors.NewInvalidProvider(
			fmt.Sprintf("provider %s is not an OAuth2 provider", name))
	}
	return r.providers[name], nil
}

// IsEnabled reports whether a provider is enabled. A provider absent from
// configuration is disabled, not an error: configuration is only required
// once an OAuth redirect must actually be built.
func (r *Registry) IsEnabled(name string) bool {
	cfg, ok := r.configs[name]
	return ok && cfg.Enabled
}
