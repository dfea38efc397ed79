package provider_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
	"github.com/cmskit/clientlogin/internal/provider"
)

func testConfigs() map[string]domain.ProviderConfig {
	return map[string]domain.ProviderConfig{
		"Google": {
			Name: "Google", Type: domain.ProviderTypeOAuth2, Enabled: true,
			ClientID: "id", ClientSecret: "secret", Scopes: []string{"openid"},
		},
		"Github": {
			Name: "Github", Type: domain.ProviderTypeOAuth2, Enabled: false,
			ClientID: "id", ClientSecret: "secret", Scopes: []string{"read:user"},
		},
		"Broken": {
			Name: "Broken", Type: domain.ProviderTypeOAuth2, Enabled: true,
			Scopes: []string{"openid"},
		},
		"Password": {
			Name: "Password", Type: domain.ProviderTypeLocal, Enabled: true,
		},
	}
}

func TestRegistry_ResolveProviderName(t *testing.T) {
	r := provider.NewRegistry(testConfigs())

	for _, raw := range []string{"google", "GOOGLE", "Google", "gOoGlE"} {
		req := httptest.NewRequest("GET", "/authenticate/login?provider="+raw, nil)
		name, err := r.ResolveProviderName(req)
		require.NoError(t, err)
		assert.Equal(t, "Google", name)
	}
}

func TestRegistry_ResolveProviderName_LegacyParam(t *testing.T) {
	r := provider.NewRegistry(testConfigs())

	req := httptest.NewRequest("GET", "/authenticate/login?discovery=github", nil)
	name, err := r.ResolveProviderName(req)
	require.NoError(t, err)
	assert.Equal(t, "Github", name)
}

func TestRegistry_ResolveProviderName_Missing(t *testing.T) {
	r := provider.NewRegistry(testConfigs())

	req := httptest.NewRequest("GET", "/authenticate/login", nil)
	_, err := r.ResolveProviderName(req)
	require.Error(t, err)
	assert.True(t, clerrors.IsKind(err, clerrors.KindInvalidProvider))
}

func TestRegistry_Config(t *testing.T) {
	r := provider.NewRegistry(testConfigs())

	cfg, err := r.Config("Google")
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.ClientID)

	_, err = r.Config("Unknown")
	assert.True(t, clerrors.IsKind(err, clerrors.KindInvalidProvider))

	_, err = r.Config("Github")
	assert.True(t, clerrors.IsKind(err, clerrors.KindDisabledProvider))

	_, err = r.Config("Broken")
	assert.True(t, clerrors.IsKind(err, clerrors.KindConfiguration))
}

func TestRegistry_IsEnabled(t *testing.T) {
	r := provider.NewRegistry(testConfigs())

	assert.True(t, r.IsEnabled("Google"))
	assert.False(t, r.IsEnabled("Github"))
	// Absent from configuration means disabled, not an error.
	assert.False(t, r.IsEnabled("Twitter"))
	// Local gating is independent of remote providers.
	assert.True(t, r.IsEnabled("Password"))
}

func TestRegistry_Provider(t *testing.T) {
	r := provider.NewRegistry(testConfigs())

	p, err := r.Provider("Google")
	require.NoError(t, err)
	assert.Equal(t, "Google", p.Name())

	_, err = r.Provider("Password")
	require.Error(t, err)
	assert.True(t, clerrors.IsKind(err, clerrors.KindInvalidProvider))
}
