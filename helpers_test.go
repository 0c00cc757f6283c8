package goIDP

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newTestEngine(t *testing.T, cfg Config, opts ...func(*Builder)) (*Engine, *testProviders, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	providers := newTestProviders()
	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(providers.accounts).
		WithVirtualIDProvider(providers.virtualIDs).
		WithApplicationProvider(providers.applications).
		WithCorpRegistry(providers.corpRegistry).
		WithProfileAggregator(providers.profiles)
	for _, opt := range opts {
		opt(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, providers, func() {
		engine.Close()
		mr.Close()
	}
}

func engineTestConfig() Config {
	cfg := defaultConfig()
	cfg.Audit.Enabled = false
	return cfg
}

type testProviders struct {
	accounts     *mockAccountProvider
	virtualIDs   *mockVirtualIDProvider
	applications *mockApplicationProvider
	corpRegistry *mockCorpRegistry
	profiles     *mockProfileAggregator
}

func newTestProviders() *testProviders {
	return &testProviders{
		accounts:     newMockAccountProvider(),
		virtualIDs:   newMockVirtualIDProvider(),
		applications: newMockApplicationProvider(),
		corpRegistry: &mockCorpRegistry{corps: map[string]CorpProfile{}},
		profiles:     &mockProfileAggregator{ages: map[string]int{}},
	}
}

// seedAccount stores a record directly in the mock account store.
func (p *testProviders) seedAccount(record AccountRecord) {
	p.accounts.mu.Lock()
	defer p.accounts.mu.Unlock()
	p.accounts.byID[record.ID] = record
}

type mockAccountProvider struct {
	mu   sync.Mutex
	byID map[string]AccountRecord

	createErr error
	updateErr error
	deleteErr error

	createCalls int
	updateCalls int
	deleteCalls int
	signInCalls int
}

func newMockAccountProvider() *mockAccountProvider {
	return &mockAccountProvider{byID: map[string]AccountRecord{}}
}

func (m *mockAccountProvider) Available(_ context.Context, q AvailabilityQuery) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.byID {
		if q.MailAddress != "" && record.MailAddress == q.MailAddress {
			return false, nil
		}
		if q.UserID != "" && record.UserID == q.UserID {
			return false, nil
		}
		if q.CorpNumber != "" && record.ID == q.CorpNumber {
			return false, nil
		}
	}
	return true, nil
}

func (m *mockAccountProvider) CreateAccount(_ context.Context, record AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	m.byID[record.ID] = record
	return nil
}

func (m *mockAccountProvider) GetAccount(_ context.Context, userID string) (*PublicProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.byID {
		if record.UserID == userID {
			return &PublicProfile{
				UserID:      record.UserID,
				Name:        record.Name,
				AccountType: record.AccountType,
			}, nil
		}
	}
	return nil, nil
}

func (m *mockAccountProvider) SGetAccount(_ context.Context, systemID string) (*AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.byID[systemID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *mockAccountProvider) UpdateAccount(_ context.Context, systemID string, patch AccountUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	record, ok := m.byID[systemID]
	if !ok {
		return errors.New("not found")
	}
	if patch.UserID != "" {
		record.UserID = patch.UserID
	}
	if patch.Name != "" {
		record.Name = patch.Name
	}
	if patch.Password != "" {
		record.Password = patch.Password
	}
	if patch.MailAddress != "" {
		record.MailAddress = patch.MailAddress
	}
	m.byID[systemID] = record
	return nil
}

func (m *mockAccountProvider) DeleteAccount(_ context.Context, systemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	if _, ok := m.byID[systemID]; !ok {
		return false, nil
	}
	delete(m.byID, systemID)
	return true, nil
}

func (m *mockAccountProvider) SignIn(_ context.Context, identifier, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signInCalls++
	for _, record := range m.byID {
		if record.ID != identifier && record.UserID != identifier && record.MailAddress != identifier {
			continue
		}
		if record.Password != password {
			return "", nil
		}
		return record.ID, nil
	}
	return "", nil
}

type mockVirtualIDProvider struct {
	mu     sync.Mutex
	byVID  map[string]VirtualIDBinding
	byPair map[string]string

	createErr        error
	deleteAccountErr error
	deleteAppErr     error
}

func newMockVirtualIDProvider() *mockVirtualIDProvider {
	return &mockVirtualIDProvider{
		byVID:  map[string]VirtualIDBinding{},
		byPair: map[string]string{},
	}
}

func vidPairKey(systemID, appID string) string {
	return systemID + "|" + appID
}

func (m *mockVirtualIDProvider) GetVirtualID(_ context.Context, systemID, appID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byPair[vidPairKey(systemID, appID)], nil
}

func (m *mockVirtualIDProvider) CreateVirtualID(_ context.Context, binding VirtualIDBinding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.byVID[binding.VirtualID] = binding
	m.byPair[vidPairKey(binding.SystemID, binding.AppID)] = binding.VirtualID
	return nil
}

func (m *mockVirtualIDProvider) Resolve(_ context.Context, virtualID string) (*VirtualIDBinding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	binding, ok := m.byVID[virtualID]
	if !ok {
		return nil, nil
	}
	return &binding, nil
}

func (m *mockVirtualIDProvider) VirtualIDsOfAccount(_ context.Context, systemID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var vids []string
	for vid, binding := range m.byVID {
		if binding.SystemID == systemID {
			vids = append(vids, vid)
		}
	}
	return vids, nil
}

func (m *mockVirtualIDProvider) VirtualIDsOfApp(_ context.Context, appID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var vids []string
	for vid, binding := range m.byVID {
		if binding.AppID == appID {
			vids = append(vids, vid)
		}
	}
	return vids, nil
}

func (m *mockVirtualIDProvider) DeleteAccount(_ context.Context, systemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteAccountErr != nil {
		return m.deleteAccountErr
	}
	for vid, binding := range m.byVID {
		if binding.SystemID == systemID {
			delete(m.byVID, vid)
			delete(m.byPair, vidPairKey(binding.SystemID, binding.AppID))
		}
	}
	return nil
}

func (m *mockVirtualIDProvider) DeleteApp(_ context.Context, appID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteAppErr != nil {
		return m.deleteAppErr
	}
	for vid, binding := range m.byVID {
		if binding.AppID == appID {
			delete(m.byVID, vid)
			delete(m.byPair, vidPairKey(binding.SystemID, binding.AppID))
		}
	}
	return nil
}

type mockApp struct {
	info   ApplicationInformation
	secret string
	dev    DeveloperInfo
}

type mockApplicationProvider struct {
	mu   sync.Mutex
	apps map[string]mockApp

	deleteAppCalls int
}

func newMockApplicationProvider() *mockApplicationProvider {
	return &mockApplicationProvider{apps: map[string]mockApp{}}
}

func (m *mockApplicationProvider) register(app ApplicationInformation, secret string, dev DeveloperInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[app.AppID] = mockApp{info: app, secret: secret, dev: dev}
}

func (m *mockApplicationProvider) AuthApp(_ context.Context, clientID, clientSecret, redirectURI string) (*DeveloperInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[clientID]
	if !ok || app.secret != clientSecret {
		return nil, nil
	}
	for _, uri := range app.info.RedirectURIs {
		if uri == redirectURI {
			dev := app.dev
			return &dev, nil
		}
	}
	return nil, nil
}

func (m *mockApplicationProvider) GetApp(_ context.Context, appID string) (*ApplicationInformation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[appID]
	if !ok {
		return nil, nil
	}
	info := app.info
	return &info, nil
}

func (m *mockApplicationProvider) GetApps(_ context.Context, developerID string) ([]ApplicationInformation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ApplicationInformation
	for _, app := range m.apps {
		if app.info.DeveloperID == developerID {
			out = append(out, app.info)
		}
	}
	return out, nil
}

func (m *mockApplicationProvider) DeleteApp(_ context.Context, appID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteAppCalls++
	if _, ok := m.apps[appID]; !ok {
		return false, nil
	}
	delete(m.apps, appID)
	return true, nil
}

func (m *mockApplicationProvider) DeleteApps(_ context.Context, developerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, app := range m.apps {
		if app.info.DeveloperID == developerID {
			delete(m.apps, id)
		}
	}
	return nil
}

type mockCorpRegistry struct {
	mu    sync.Mutex
	corps map[string]CorpProfile
	err   error
}

func (m *mockCorpRegistry) Profile(_ context.Context, corpNumber string) (*CorpProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	profile, ok := m.corps[corpNumber]
	if !ok {
		return nil, fmt.Errorf("corp %s not found", corpNumber)
	}
	return &profile, nil
}

type mockProfileAggregator struct {
	mu   sync.Mutex
	ages map[string]int
	err  error
}

func (m *mockProfileAggregator) Age(_ context.Context, systemID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	age, ok := m.ages[systemID]
	if !ok {
		return 0, errors.New("no profile")
	}
	return age, nil
}

// registerAccount runs the full two-phase registration and returns the system id.
func registerAccount(t *testing.T, engine *Engine, mail, userID, password string) string {
	t.Helper()

	ctx := context.Background()
	pre, err := engine.PreEntry(ctx, mail)
	if err != nil {
		t.Fatalf("PreEntry failed: %v", err)
	}
	err = engine.Entry(ctx, pre.ID, EntryProfile{
		UserID:   userID,
		Name:     "Test User",
		Password: password,
	})
	if err != nil {
		t.Fatalf("Entry failed: %v", err)
	}

	systemID, err := engine.SignIn(ctx, userID, password)
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	return systemID
}

// issueFirstPartyPair signs the account in as an unbound subject and issues a pair.
func issueFirstPartyPair(t *testing.T, engine *Engine, systemID string, scopes ...string) (*TokenPair, string) {
	t.Helper()

	ctx := context.Background()
	vid, err := engine.GetOrCreateVirtualID(ctx, systemID, "")
	if err != nil {
		t.Fatalf("GetOrCreateVirtualID failed: %v", err)
	}
	pair, err := engine.IssueToken(ctx, IssueTokenRequest{SubjectID: vid, Scopes: scopes})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return pair, vid
}
