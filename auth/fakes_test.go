package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/cmskit/clientlogin/domain"
	clerrors "github.com/cmskit/clientlogin/errors"
	"github.com/cmskit/clientlogin/internal/provider"
	"github.com/cmskit/clientlogin/sessionstore"
)

// fakeProfiles is an in-memory ProfileRepository keyed the same way as the
// Mongo implementation.
type fakeProfiles struct {
	mu       sync.Mutex
	byKey    map[string]*domain.Profile
	upserts  int
	failNext error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byKey: make(map[string]*domain.Profile)}
}

func profileKey(provider, resourceOwnerID string) string {
	return provider + "/" + resourceOwnerID
}

func (f *fakeProfiles) add(p *domain.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byKey[profileKey(p.Provider, p.ResourceOwnerID)] = p
}

func (f *fakeProfiles) FindByResourceOwner(_ context.Context, provider, resourceOwnerID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	return f.byKey[profileKey(provider, resourceOwnerID)], nil
}

func (f *fakeProfiles) FindByGUID(_ context.Context, guid string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byKey {
		if p.GUID == guid {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, provider, resourceOwnerID, refreshToken string, owner domain.ResourceOwnerData) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	f.upserts++
	key := profileKey(provider, resourceOwnerID)
	p, ok := f.byKey[key]
	if !ok {
		p = &domain.Profile{
			GUID:            fmt.Sprintf("guid-%d", len(f.byKey)+1),
			Provider:        provider,
			ResourceOwnerID: resourceOwnerID,
			Enabled:         true,
		}
		f.byKey[key] = p
	}
	p.OwnerData = owner
	if refreshToken != "" {
		p.RefreshToken = refreshToken
	}
	p.LastUpdate = time.Now()
	return p, nil
}

func (f *fakeProfiles) SetEnabled(_ context.Context, provider, resourceOwnerID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byKey[profileKey(provider, resourceOwnerID)]; ok {
		p.Enabled = enabled
	}
	return nil
}

func (f *fakeProfiles) SetPassword(_ context.Context, resourceOwnerID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := profileKey(domain.LocalProviderName, resourceOwnerID)
	p, ok := f.byKey[key]
	if !ok {
		p = &domain.Profile{
			GUID:            fmt.Sprintf("guid-%d", len(f.byKey)+1),
			Provider:        domain.LocalProviderName,
			ResourceOwnerID: resourceOwnerID,
			Enabled:         true,
		}
		f.byKey[key] = p
	}
	p.PasswordHash = passwordHash
	return nil
}

var _ domain.ProfileRepository = (*fakeProfiles)(nil)

// fakeSessions is an in-memory SessionRepository with one session per guid.
type fakeSessions struct {
	mu      sync.Mutex
	byGUID  map[string]*domain.Session
	upserts int
	fail    error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byGUID: make(map[string]*domain.Session)}
}

func (f *fakeSessions) Upsert(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.upserts++
	copied := *session
	f.byGUID[session.GUID] = &copied
	return nil
}

func (f *fakeSessions) FindByAccessToken(_ context.Context, accessToken string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byGUID {
		if s.AccessToken == accessToken {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSessions) Delete(_ context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for guid, s := range f.byGUID {
		if s.AccessToken == accessToken {
			delete(f.byGUID, guid)
		}
	}
	return nil
}

func (f *fakeSessions) DeleteExpired(_ context.Context, maxAge time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var n int64
	for guid, s := range f.byGUID {
		if s.Expires.Before(cutoff) {
			delete(f.byGUID, guid)
			n++
		}
	}
	return n, nil
}

var _ domain.SessionRepository = (*fakeSessions)(nil)

// fakeProvider records calls so tests can assert the protocol order.
type fakeProvider struct {
	name string

	exchangeCalls   int
	exchangeToken   *oauth2.Token
	exchangeErr     error
	exchangeErrOnce error

	fetchCalls int
	owner      *domain.ResourceOwnerData
	fetchErr   error

	refreshCalls int
	refreshToken *oauth2.Token
	refreshErr   error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetAuthCodeURL(state, redirectURL string, _ ...oauth2.AuthCodeOption) (string, error) {
	return "https://provider.example/authorize?state=" + state + "&redirect_uri=" + redirectURL, nil
}

func (f *fakeProvider) ExchangeCode(_ context.Context, _, _ string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.exchangeCalls++
	if f.exchangeErrOnce != nil {
		err := f.exchangeErrOnce
		f.exchangeErrOnce = nil
		return nil, err
	}
	return f.exchangeToken, f.exchangeErr
}

func (f *fakeProvider) Refresh(_ context.Context, _ string) (*oauth2.Token, error) {
	f.refreshCalls++
	return f.refreshToken, f.refreshErr
}

func (f *fakeProvider) FetchResourceOwner(_ context.Context, _ *oauth2.Token) (*domain.ResourceOwnerData, error) {
	f.fetchCalls++
	return f.owner, f.fetchErr
}

var _ provider.OAuth2Provider = (*fakeProvider)(nil)

// fakeRegistry serves a fixed set of configs and one fake provider per name.
type fakeRegistry struct {
	configs   map[string]domain.ProviderConfig
	providers map[string]provider.OAuth2Provider
}

func (f *fakeRegistry) Config(name string) (domain.ProviderConfig, error) {
	cfg, ok := f.configs[name]
	if !ok {
		return domain.ProviderConfig{}, clerrors.NewInvalidProvider("unknown provider " + name)
	}
	if !cfg.Enabled {
		return domain.ProviderConfig{}, clerrors.NewDisabledProvider("provider " + name + " is disabled")
	}
	return cfg, nil
}

func (f *fakeRegistry) Provider(name string) (provider.OAuth2Provider, error) {
	if _, err := f.Config(name); err != nil {
		return nil, err
	}
	p, ok := f.providers[name]
	if !ok {
		return nil, clerrors.NewInvalidProvider("provider " + name + " is not an OAuth2 provider")
	}
	return p, nil
}

var _ ProviderRegistry = (*fakeRegistry)(nil)

// mapStore is a trivial SessionStore for tests; TTLs are ignored.
type mapStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMapStore() *mapStore {
	return &mapStore{values: make(map[string]string)}
}

func (m *mapStore) Get(_ context.Context, sid, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[sid+"/"+name], nil
}

func (m *mapStore) Set(_ context.Context, sid, name, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[sid+"/"+name] = value
	return nil
}

func (m *mapStore) Remove(_ context.Context, sid, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, sid+"/"+name)
	return nil
}

var _ sessionstore.SessionStore = (*mapStore)(nil)

// recordingDispatcher collects dispatched events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event domain.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) count(typ domain.EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

var _ domain.EventDispatcher = (*recordingDispatcher)(nil)
