// Package manager owns the source registry: which sources exist, which one is active,
// their health, and the fan-out queries across them.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/sourcehub/internal/auth"
	"github.com/MrSnakeDoc/sourcehub/internal/cache"
	"github.com/MrSnakeDoc/sourcehub/internal/credentials"
	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
	"github.com/MrSnakeDoc/sourcehub/internal/sources"
	"github.com/MrSnakeDoc/sourcehub/internal/sources/legacy"
)

// Store persists the registry between runs.
type Store interface {
	SaveSources(ctx context.Context, sources []domain.DataSource) error
	LoadSources(ctx context.Context) ([]domain.DataSource, error)
	SaveActiveSource(ctx context.Context, id string) error
	LoadActiveSource(ctx context.Context) (string, error)
	MigrationVersion(ctx context.Context) (int, error)
	SetMigrationVersion(ctx context.Context, v int) error
	// RetireSourceID records a removed source's id so it is never registered again.
	RetireSourceID(ctx context.Context, id string) error
	RetiredSourceIDs(ctx context.Context) ([]string, error)
}

// Authenticator probes credentials. *auth.Adapter satisfies it.
type Authenticator interface {
	Verify(ctx context.Context, source domain.DataSource) auth.VerifyResult
	TestConnection(ctx context.Context, baseURL string, scheme domain.AuthScheme, rawCredential string) auth.TestResult
}

// Options wire a Manager. Store, Credentials, Auth and AdapterFactory are required.
type Options struct {
	Store          Store
	Credentials    credentials.Store
	Auth           Authenticator
	Cache          *cache.Cache
	Logger         logger.Logger
	AdapterFactory sources.Factory
	// Legacy is read once by the migration; nil skips the import.
	Legacy legacy.Reader
	Clock  func() time.Time
	// Strict turns contract violations, such as a registered source without an adapter,
	// into panics.
	Strict bool
	// NewID generates ids for sources registered from a candidate.
	NewID func(kind domain.SourceKind) string
}

// Manager is safe for concurrent use.
type Manager struct {
	store   Store
	creds   credentials.Store
	auth    Authenticator
	cache   *cache.Cache
	logger  logger.Logger
	factory sources.Factory
	legacy  legacy.Reader
	now     func() time.Time
	strict  bool
	newID   func(kind domain.SourceKind) string

	mu       sync.RWMutex
	order    []string
	sources  map[string]*domain.DataSource
	adapters map[string]sources.Adapter
	health   map[string]domain.HealthStatus
	active   string
	retired  map[string]struct{}

	// persistMu orders registry writes so they land in mutation order.
	persistMu sync.Mutex

	initOnce sync.Once
	initErr  error

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	events eventBus
}

// New creates a manager holding only the local source. Call Initialize before use.
func New(opts Options) (*Manager, error) {
	if opts.Store == nil || opts.Credentials == nil || opts.Auth == nil || opts.AdapterFactory == nil {
		return nil, errors.New("manager: store, credentials, auth and adapter factory are required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(cache.Options{Logger: opts.Logger})
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func(kind domain.SourceKind) string {
			return string(kind) + "-" + uuid.NewString()
		}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    opts.Store,
		creds:    opts.Credentials,
		auth:     opts.Auth,
		cache:    opts.Cache,
		logger:   opts.Logger.With(logger.Component("manager")),
		factory:  opts.AdapterFactory,
		legacy:   opts.Legacy,
		now:      opts.Clock,
		strict:   opts.Strict,
		newID:    opts.NewID,
		sources:  make(map[string]*domain.DataSource),
		adapters: make(map[string]sources.Adapter),
		health:   make(map[string]domain.HealthStatus),
		active:   domain.LocalSourceID,
		retired:  make(map[string]struct{}),
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}

	local := domain.NewLocalSource(m.now())
	if err := m.addLocked(local); err != nil {
		bgCancel()
		return nil, fmt.Errorf("failed to create local adapter: %w", err)
	}
	return m, nil
}

// Initialize runs the legacy migration, loads the persisted registry, restores the active
// source, checks the local source and starts checking every other source in the
// background. Only the first call does any work; later calls return its result.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.initErr = m.initialize(ctx)
	})
	return m.initErr
}

func (m *Manager) initialize(ctx context.Context) error {
	if err := m.migrate(ctx); err != nil {
		// the marker is not set, so the next start retries
		m.logger.Error("legacy migration failed", logger.Error(err))
	}

	persisted, err := m.store.LoadSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	retired, err := m.store.RetiredSourceIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load retired source ids: %w", err)
	}

	m.mu.Lock()
	for _, id := range retired {
		m.retired[id] = struct{}{}
	}
	for _, src := range persisted {
		if src.IsLocal() {
			continue
		}
		if err := src.Validate(); err != nil {
			m.logger.Warn("skipping invalid persisted source", logger.String("source_id", src.ID), logger.Error(err))
			continue
		}
		if _, exists := m.sources[src.ID]; exists {
			continue
		}
		src.Status = domain.StatusConnecting
		if err := m.addLocked(src); err != nil {
			m.logger.Warn("skipping persisted source without adapter", logger.String("source_id", src.ID), logger.Error(err))
		}
	}
	m.mu.Unlock()

	activeID, err := m.store.LoadActiveSource(ctx)
	if err != nil {
		m.logger.Warn("failed to load active source, using local", logger.Error(err))
	}
	m.mu.Lock()
	if _, ok := m.sources[activeID]; ok {
		m.active = activeID
	} else {
		if activeID != "" {
			m.logger.Info("saved active source no longer exists, using local", logger.String("source_id", activeID))
		}
		m.active = domain.LocalSourceID
	}
	count := len(m.order)
	m.mu.Unlock()

	m.logger.Info("registry loaded",
		logger.Int("sources", count),
		logger.String("active", m.ActiveSource().ID))

	if _, err := m.CheckHealth(ctx, domain.LocalSourceID); err != nil {
		m.logger.Warn("local health check failed", logger.Error(err))
	}

	others := m.remoteIDs()
	if len(others) > 0 {
		m.bg.Add(1)
		go func() {
			defer m.bg.Done()
			m.checkHealthOf(m.bgCtx, others)
		}()
	}
	return nil
}

// Close stops background work and waits for it.
func (m *Manager) Close() {
	m.bgCancel()
	m.bg.Wait()
}

// addLocked inserts src and its adapter. Caller holds mu, or owns m exclusively.
func (m *Manager) addLocked(src domain.DataSource) error {
	adapter, err := m.factory(src)
	if err != nil {
		return err
	}
	s := src.Clone()
	m.sources[s.ID] = &s
	m.adapters[s.ID] = adapter
	m.order = append(m.order, s.ID)
	return nil
}

func (m *Manager) removeLocked(id string) {
	delete(m.sources, id)
	delete(m.adapters, id)
	delete(m.health, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Manager) snapshotLocked() []domain.DataSource {
	out := make([]domain.DataSource, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sources[id].Clone())
	}
	return out
}

// persistLocked writes snap. Caller holds persistMu but not mu. Persistence is best
// effort: memory stays the source of truth.
func (m *Manager) persistLocked(ctx context.Context, snap []domain.DataSource) {
	if err := m.store.SaveSources(ctx, snap); err != nil {
		m.logger.Error("failed to persist registry", logger.Error(err))
	}
}

func (m *Manager) remoteIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.order))
	for _, id := range m.order {
		if id != domain.LocalSourceID {
			ids = append(ids, id)
		}
	}
	return ids
}

// contractViolation reports a broken internal invariant.
func (m *Manager) contractViolation(msg string, sourceID string) error {
	if m.strict {
		panic(fmt.Sprintf("manager: %s (source %s)", msg, sourceID))
	}
	m.logger.Error("contract violation: "+msg, logger.String("source_id", sourceID))
	return fmt.Errorf("%s: %s", msg, sourceID)
}

// ─────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────

// Sources returns every registered source in registration order, local first.
func (m *Manager) Sources() []domain.DataSource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Source returns one source.
func (m *Manager) Source(id string) (domain.DataSource, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sources[id]
	if !ok {
		return domain.DataSource{}, false
	}
	return s.Clone(), true
}

// RegisterSource adds a cloud or LAN source and persists the registry. The id of a
// removed source is never accepted again.
func (m *Manager) RegisterSource(ctx context.Context, src domain.DataSource) error {
	if src.ID == domain.LocalSourceID {
		return domain.ErrLocalImmutable
	}
	if err := src.Validate(); err != nil {
		return err
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = m.now()
	}
	src.Capabilities = domain.CapabilitiesFor(src.Kind)
	src.Status = domain.StatusConnecting

	m.persistMu.Lock()
	m.mu.Lock()
	if _, exists := m.sources[src.ID]; exists {
		m.mu.Unlock()
		m.persistMu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSourceExists, src.ID)
	}
	if _, gone := m.retired[src.ID]; gone {
		m.mu.Unlock()
		m.persistMu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSourceIDRetired, src.ID)
	}
	if err := m.addLocked(src); err != nil {
		m.mu.Unlock()
		m.persistMu.Unlock()
		return fmt.Errorf("failed to create adapter: %w", err)
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.persistLocked(ctx, snap)
	m.persistMu.Unlock()

	m.cache.InvalidateAll()
	m.logger.Info("source registered",
		logger.String("source_id", src.ID),
		logger.String("kind", string(src.Kind)))
	m.emit(domain.EventSourceAdded, src.ID)
	return nil
}

// UnregisterSource removes a source and its credential. The local source cannot be
// removed. Removing the active source makes local active.
func (m *Manager) UnregisterSource(ctx context.Context, id string) error {
	if id == domain.LocalSourceID {
		return domain.ErrLocalImmutable
	}

	m.persistMu.Lock()
	m.mu.Lock()
	src, ok := m.sources[id]
	if !ok {
		m.mu.Unlock()
		m.persistMu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	ref := src.Connection.CredentialRef
	m.removeLocked(id)
	m.retired[id] = struct{}{}
	wasActive := m.active == id
	if wasActive {
		m.active = domain.LocalSourceID
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.persistLocked(ctx, snap)
	if err := m.store.RetireSourceID(ctx, id); err != nil {
		m.logger.Error("failed to persist retired source id", logger.String("source_id", id), logger.Error(err))
	}
	if wasActive {
		if err := m.store.SaveActiveSource(ctx, domain.LocalSourceID); err != nil {
			m.logger.Error("failed to persist active source", logger.Error(err))
		}
	}
	m.persistMu.Unlock()

	if ref != "" {
		if err := m.creds.Remove(ctx, ref); err != nil {
			m.logger.Warn("failed to remove credential", logger.String("source_id", id), logger.Error(err))
		}
	}
	m.cache.InvalidateAll()

	m.logger.Info("source unregistered", logger.String("source_id", id))
	m.emit(domain.EventSourceRemoved, id)
	if wasActive {
		m.emit(domain.EventActiveChanged, domain.LocalSourceID)
	}
	return nil
}

// UpdateSource applies patch to a cloud or LAN source. Connection changes rebuild the
// adapter and put the source back to connecting until the next health check.
func (m *Manager) UpdateSource(ctx context.Context, id string, patch domain.SourcePatch) (domain.DataSource, error) {
	if id == domain.LocalSourceID {
		return domain.DataSource{}, domain.ErrLocalImmutable
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	cur, ok := m.sources[id]
	if !ok {
		m.mu.Unlock()
		return domain.DataSource{}, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	next := patch.Apply(*cur)
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return domain.DataSource{}, err
	}
	if patch.TouchesConnection() {
		adapter, err := m.factory(next)
		if err != nil {
			m.mu.Unlock()
			return domain.DataSource{}, fmt.Errorf("failed to create adapter: %w", err)
		}
		next.Status = domain.StatusConnecting
		m.adapters[id] = adapter
		delete(m.health, id)
	}
	*cur = next
	out := cur.Clone()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.persistLocked(ctx, snap)
	if patch.TouchesConnection() {
		m.cache.InvalidateAll()
	}
	return out, nil
}

// mutate applies fn to a source in memory without persisting. Used for telemetry.
func (m *Manager) mutate(id string, fn func(*domain.DataSource)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sources[id]; ok {
		fn(s)
	}
}

// ─────────────────────────────────────────────────────────────────
// Active source
// ─────────────────────────────────────────────────────────────────

// SetActiveSource makes id the active source and persists the choice.
func (m *Manager) SetActiveSource(ctx context.Context, id string) error {
	m.persistMu.Lock()
	m.mu.Lock()
	if _, ok := m.sources[id]; !ok {
		m.mu.Unlock()
		m.persistMu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrSourceNotFound, id)
	}
	changed := m.active != id
	m.active = id
	m.mu.Unlock()

	err := m.store.SaveActiveSource(ctx, id)
	m.persistMu.Unlock()
	if err != nil {
		m.logger.Error("failed to persist active source", logger.Error(err))
	}

	if changed {
		m.emit(domain.EventActiveChanged, id)
	}
	return nil
}

// ActiveSource returns the active source.
func (m *Manager) ActiveSource() domain.DataSource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sources[m.active]; ok {
		return s.Clone()
	}
	return m.sources[domain.LocalSourceID].Clone()
}

// ResetToLocal makes the local source active.
func (m *Manager) ResetToLocal(ctx context.Context) error {
	return m.SetActiveSource(ctx, domain.LocalSourceID)
}

// ─────────────────────────────────────────────────────────────────
// Registration from a candidate
// ─────────────────────────────────────────────────────────────────

// RegistrationRequest describes a source the user wants to add.
type RegistrationRequest struct {
	Kind       domain.SourceKind `json:"kind"`
	Name       string            `json:"name"`
	BaseURL    string            `json:"baseUrl"`
	AuthScheme domain.AuthScheme `json:"authScheme,omitempty"`
	Credential string            `json:"credential"`
}

func (r RegistrationRequest) scheme() domain.AuthScheme {
	if r.AuthScheme != "" {
		return r.AuthScheme
	}
	if r.Kind == domain.SourceKindCloud {
		return domain.AuthSchemeAPIKey
	}
	return domain.AuthSchemeSecretKey
}

// TestConnection probes a candidate without registering it.
func (m *Manager) TestConnection(ctx context.Context, req RegistrationRequest) auth.TestResult {
	return m.auth.TestConnection(ctx, req.BaseURL, req.scheme(), req.Credential)
}

// RegisterFromCandidate tests the candidate, stores its credential and registers it.
// Connection test failures are returned as is.
func (m *Manager) RegisterFromCandidate(ctx context.Context, req RegistrationRequest) (domain.DataSource, error) {
	if req.Kind != domain.SourceKindCloud && req.Kind != domain.SourceKindLAN {
		return domain.DataSource{}, fmt.Errorf("cannot register a source of kind %q", string(req.Kind))
	}
	if req.Name == "" {
		req.Name = req.BaseURL
	}

	test := m.TestConnection(ctx, req)
	if test.Err != nil {
		return domain.DataSource{}, test.Err
	}
	if !test.Success {
		return domain.DataSource{}, errors.New("connection test failed")
	}

	id := m.newID(req.Kind)
	if err := m.creds.Store(ctx, id, req.Credential); err != nil {
		return domain.DataSource{}, err
	}

	src := domain.NewRemoteSource(id, req.Kind, req.Name, domain.Connection{
		BaseURL:       req.BaseURL,
		AuthScheme:    req.scheme(),
		CredentialRef: id,
	}, m.now())
	src.ResourceCounts.Teams = test.TeamsCount

	if err := m.RegisterSource(ctx, src); err != nil {
		if rmErr := m.creds.Remove(ctx, id); rmErr != nil {
			m.logger.Warn("failed to roll back credential", logger.String("source_id", id), logger.Error(rmErr))
		}
		return domain.DataSource{}, err
	}

	if res := m.auth.Verify(ctx, src); res.Success && res.Identity != nil {
		m.mutate(id, func(s *domain.DataSource) {
			u := *res.Identity
			s.UserInfo = &u
		})
	}
	if _, err := m.CheckHealth(ctx, id); err != nil {
		m.logger.Warn("post-registration health check failed", logger.String("source_id", id), logger.Error(err))
	}

	out, _ := m.Source(id)
	return out, nil
}

// ListInstalled lists resources installed on this machine through the local source.
func (m *Manager) ListInstalled(ctx context.Context) ([]domain.InstalledResource, error) {
	m.mu.RLock()
	adapter, ok := m.adapters[domain.LocalSourceID]
	m.mu.RUnlock()
	if !ok {
		return nil, m.contractViolation("no adapter for registered source", domain.LocalSourceID)
	}
	lister, ok := adapter.(sources.InstalledLister)
	if !ok {
		return nil, errors.New("local adapter cannot list installed resources")
	}
	return lister.ListInstalled(ctx)
}
