package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/httpclient"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

// Timeouts per call type.
const (
	HealthTimeout = 5 * time.Second
	QueryTimeout  = 10 * time.Second
)

// remoteAdapter implements Adapter over the shared REST surface.
type remoteAdapter struct {
	source domain.DataSource
	deps   Deps
	logger logger.Logger
	status atomic.Value // domain.SourceStatus
}

func newRemoteAdapter(source domain.DataSource, deps Deps) *remoteAdapter {
	a := &remoteAdapter{
		source: source.Clone(),
		deps:   deps,
		logger: deps.Logger.With(
			logger.Component("source"),
			logger.String("source_id", source.ID),
			logger.String("kind", string(source.Kind)),
		),
	}
	a.status.Store(domain.StatusConnecting)
	return a
}

func (a *remoteAdapter) SourceID() string        { return a.source.ID }
func (a *remoteAdapter) Kind() domain.SourceKind { return a.source.Kind }

func (a *remoteAdapter) Status() domain.SourceStatus {
	return a.status.Load().(domain.SourceStatus)
}

// IsAvailable probes /health and records the outcome as online or offline only.
func (a *remoteAdapter) IsAvailable(ctx context.Context) bool {
	if a.CheckHealth(ctx).Healthy {
		return true
	}
	a.status.Store(domain.StatusOffline)
	return false
}

// CheckHealth probes /health without authentication.
func (a *remoteAdapter) CheckHealth(ctx context.Context) domain.HealthStatus {
	start := time.Now()
	hs := domain.HealthStatus{CheckedAt: start}

	base, err := a.deps.Auth.BaseURL(ctx, a.source)
	if err != nil {
		hs.Status = domain.StatusOffline
		hs.Error = err.Error()
		a.status.Store(hs.Status)
		return hs
	}

	var body map[string]any
	_, err = a.deps.Client.GetJSON(ctx, httpclient.JoinURL(base, domain.HealthPath), nil, HealthTimeout, &body)
	hs.LatencyMs = time.Since(start).Milliseconds()

	switch {
	case err == nil:
		hs.Healthy = true
		hs.Status = domain.StatusOnline
		hs.Version, hs.DatabaseOK = parseHealthBody(body)
	case domain.IsUnreachable(err):
		hs.Status = domain.StatusOffline
		hs.Error = err.Error()
	default:
		hs.Status = domain.StatusError
		hs.Error = err.Error()
	}

	if !hs.Healthy {
		a.logger.Debug("health check failed",
			logger.String("status", string(hs.Status)),
			logger.Int64("latency_ms", hs.LatencyMs),
			logger.String("error", hs.Error))
	}

	a.status.Store(hs.Status)
	return hs
}

func (a *remoteAdapter) ListTeams(ctx context.Context, q domain.ListQuery) (*domain.Page[domain.Team], error) {
	return list[domain.Team](ctx, a, domain.ResourceTeams, q)
}

func (a *remoteAdapter) ListSkills(ctx context.Context, q domain.ListQuery) (*domain.Page[domain.Skill], error) {
	return list[domain.Skill](ctx, a, domain.ResourceSkills, q)
}

func (a *remoteAdapter) ListRecipes(ctx context.Context, q domain.ListQuery) (*domain.Page[domain.Recipe], error) {
	return list[domain.Recipe](ctx, a, domain.ResourceRecipes, q)
}

func (a *remoteAdapter) ListExtensions(ctx context.Context, q domain.ListQuery) (*domain.Page[domain.Extension], error) {
	return list[domain.Extension](ctx, a, domain.ResourceExtensions, q)
}

func (a *remoteAdapter) GetTeam(ctx context.Context, id string) *domain.Team {
	return get[domain.Team](ctx, a, domain.ResourceTeams, id)
}

func (a *remoteAdapter) GetSkill(ctx context.Context, id string) *domain.Skill {
	return get[domain.Skill](ctx, a, domain.ResourceSkills, id)
}

func (a *remoteAdapter) GetRecipe(ctx context.Context, id string) *domain.Recipe {
	return get[domain.Recipe](ctx, a, domain.ResourceRecipes, id)
}

func (a *remoteAdapter) GetExtension(ctx context.Context, id string) *domain.Extension {
	return get[domain.Extension](ctx, a, domain.ResourceExtensions, id)
}

// getJSON resolves base URL and auth headers, then issues the request.
func (a *remoteAdapter) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	base, err := a.deps.Auth.BaseURL(ctx, a.source)
	if err != nil {
		return err
	}
	headers, err := a.deps.Auth.HeadersFor(ctx, a.source)
	if err != nil {
		return err
	}
	u := httpclient.JoinURL(base, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	_, err = a.deps.Client.GetJSON(ctx, u, headers, QueryTimeout, out)
	return err
}

func list[T any](ctx context.Context, a *remoteAdapter, kind domain.ResourceKind, q domain.ListQuery) (*domain.Page[T], error) {
	q.ListParams = q.ListParams.Normalize()

	var raw map[string]json.RawMessage
	if err := a.getJSON(ctx, domain.ResourcePath(kind), listValues(q), &raw); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	page := &domain.Page[T]{Items: []T{}, Page: q.Page, Limit: q.Limit}
	if items, ok := raw[string(kind)]; ok && string(items) != "null" {
		if err := json.Unmarshal(items, &page.Items); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
		}
	}
	decodeInt(raw["total"], &page.Total)
	var n int64
	if decodeInt(raw["page"], &n) {
		page.Page = int(n)
	}
	if decodeInt(raw["limit"], &n) {
		page.Limit = int(n)
	}
	if _, ok := raw["total"]; !ok {
		page.Total = int64(len(page.Items))
	}
	return page, nil
}

// get fetches one resource. Some backends wrap the object under its singular name
// ({"team": {...}, "membersCount": 3}); both shapes are accepted.
func get[T any](ctx context.Context, a *remoteAdapter, kind domain.ResourceKind, id string) *T {
	if id == "" {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := a.getJSON(ctx, domain.ResourcePath(kind)+"/"+url.PathEscape(id), nil, &raw); err != nil {
		a.logger.Debug("get by id failed",
			logger.String("resource", string(kind)),
			logger.String("id", id),
			logger.Error(err))
		return nil
	}

	singular := strings.TrimSuffix(string(kind), "s")
	body, ok := raw[singular]
	if !ok {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil
		}
		body = b
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil
	}
	return &out
}

func listValues(q domain.ListQuery) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if len(q.Tags) > 0 {
		v.Set("tags", strings.Join(q.Tags, ","))
	}
	if q.TeamID != "" {
		v.Set("teamId", q.TeamID)
	}
	return v
}

func decodeInt(raw json.RawMessage, out *int64) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// CloudAdapter talks to a hosted team server authenticated by API key.
type CloudAdapter struct{ *remoteAdapter }

// NewCloudAdapter creates an adapter for a cloud source.
func NewCloudAdapter(source domain.DataSource, deps Deps) *CloudAdapter {
	return &CloudAdapter{newRemoteAdapter(source, deps)}
}

// LANAdapter talks to a peer on the local network authenticated by its secret key.
type LANAdapter struct{ *remoteAdapter }

// NewLANAdapter creates an adapter for a LAN source.
func NewLANAdapter(source domain.DataSource, deps Deps) *LANAdapter {
	return &LANAdapter{newRemoteAdapter(source, deps)}
}
