package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sourcehub/internal/auth"
	"github.com/MrSnakeDoc/sourcehub/internal/cache"
	"github.com/MrSnakeDoc/sourcehub/internal/credentials"
	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
	"github.com/MrSnakeDoc/sourcehub/internal/sources"
	"github.com/MrSnakeDoc/sourcehub/internal/store/memory"
)

var errUnreachable = &domain.NetworkError{Op: "GET", URL: "http://down", Err: errors.New("connection refused")}

// fakeAdapter answers from fixed data and counts calls.
type fakeAdapter struct {
	id   string
	kind domain.SourceKind

	mu      sync.Mutex
	down    bool
	listErr error
	teams   []domain.Team
	skills  []domain.Skill
	gate    chan struct{}
	entered chan struct{}

	healthCalls atomic.Int32
	listCalls   atomic.Int32
}

func (f *fakeAdapter) SourceID() string                     { return f.id }
func (f *fakeAdapter) Kind() domain.SourceKind              { return f.kind }
func (f *fakeAdapter) Status() domain.SourceStatus          { return domain.StatusConnecting }
func (f *fakeAdapter) IsAvailable(ctx context.Context) bool { return f.CheckHealth(ctx).Healthy }

func (f *fakeAdapter) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeAdapter) CheckHealth(context.Context) domain.HealthStatus {
	f.healthCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return domain.HealthStatus{Status: domain.StatusOffline, Error: errUnreachable.Error(), CheckedAt: time.Now()}
	}
	return domain.HealthStatus{Healthy: true, Status: domain.StatusOnline, Version: "test", CheckedAt: time.Now()}
}

func page[T any](items []T, q domain.ListQuery) *domain.Page[T] {
	if items == nil {
		items = []T{}
	}
	return &domain.Page[T]{Items: items, Total: int64(len(items)), Page: q.Page, Limit: q.Limit}
}

// hold makes list calls block until release is called. entered receives once per call
// that reached the gate.
func (f *fakeAdapter) hold() (entered <-chan struct{}, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 8)
	gate := f.gate
	return f.entered, func() {
		f.mu.Lock()
		f.gate = nil
		f.mu.Unlock()
		close(gate)
	}
}

func (f *fakeAdapter) fail() error {
	f.listCalls.Add(1)
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listErr
}

func (f *fakeAdapter) ListTeams(_ context.Context, q domain.ListQuery) (*domain.Page[domain.Team], error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return page(f.teams, q), nil
}

func (f *fakeAdapter) ListSkills(_ context.Context, q domain.ListQuery) (*domain.Page[domain.Skill], error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return page(f.skills, q), nil
}

func (f *fakeAdapter) ListRecipes(_ context.Context, q domain.ListQuery) (*domain.Page[domain.Recipe], error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return page[domain.Recipe](nil, q), nil
}

func (f *fakeAdapter) ListExtensions(_ context.Context, q domain.ListQuery) (*domain.Page[domain.Extension], error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return page[domain.Extension](nil, q), nil
}

func (f *fakeAdapter) GetTeam(context.Context, string) *domain.Team           { return nil }
func (f *fakeAdapter) GetSkill(context.Context, string) *domain.Skill         { return nil }
func (f *fakeAdapter) GetRecipe(context.Context, string) *domain.Recipe       { return nil }
func (f *fakeAdapter) GetExtension(context.Context, string) *domain.Extension { return nil }

// fakeFleet hands out one fakeAdapter per source id, created on first use.
type fakeFleet struct {
	mu       sync.Mutex
	adapters map[string]*fakeAdapter
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{adapters: make(map[string]*fakeAdapter)}
}

func (f *fakeFleet) get(src domain.DataSource) *fakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.adapters[src.ID]
	if !ok {
		a = &fakeAdapter{id: src.ID, kind: src.Kind}
		f.adapters[src.ID] = a
	}
	return a
}

func (f *fakeFleet) adapter(id string) *fakeAdapter {
	return f.get(domain.DataSource{ID: id})
}

func (f *fakeFleet) factory() sources.Factory {
	return func(src domain.DataSource) (sources.Adapter, error) {
		return f.get(src), nil
	}
}

type fakeAuth struct {
	test   auth.TestResult
	verify auth.VerifyResult
}

func (f fakeAuth) Verify(context.Context, domain.DataSource) auth.VerifyResult { return f.verify }
func (f fakeAuth) TestConnection(context.Context, string, domain.AuthScheme, string) auth.TestResult {
	return f.test
}

type fixture struct {
	store *memory.Store
	creds *credentials.MemoryStore
	fleet *fakeFleet
	opts  Options
}

func newFixture() *fixture {
	f := &fixture{
		store: memory.NewStore(),
		creds: credentials.NewMemoryStore(),
		fleet: newFakeFleet(),
	}
	f.opts = Options{
		Store:          f.store,
		Credentials:    f.creds,
		Auth:           fakeAuth{test: auth.TestResult{Success: true}, verify: auth.VerifyResult{Success: true}},
		Logger:         logger.NewNop(),
		AdapterFactory: f.fleet.factory(),
		Legacy:         f.store,
	}
	return f
}

// manager builds a fresh, initialized manager over the fixture's shared state.
func (f *fixture) manager(t *testing.T) *Manager {
	t.Helper()
	opts := f.opts
	opts.Cache = cache.New(cache.Options{})
	m, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(m.Close)
	return m
}

func remote(id string, kind domain.SourceKind) domain.DataSource {
	scheme := domain.AuthSchemeAPIKey
	if kind == domain.SourceKindLAN {
		scheme = domain.AuthSchemeSecretKey
	}
	return domain.NewRemoteSource(id, kind, "Source "+id, domain.Connection{
		BaseURL:       "https://" + id + ".example.com",
		AuthScheme:    scheme,
		CredentialRef: id,
	}, time.Now())
}
